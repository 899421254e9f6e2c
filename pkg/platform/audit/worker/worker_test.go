package worker

import (
	"context"
	"testing"
	"time"

	audit "anchorcred/pkg/platform/audit"
	"anchorcred/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_DrainsUntilClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub, inbox := NewChannelPublisher(8, nil)
	w := NewWorker(store, inbox, nil)

	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{
			Action:       audit.ActionCredentialVerified,
			CredentialID: "cred:z1",
		}))
	}
	pub.Close()

	require.NoError(t, w.Run(context.Background()))
	events, err := store.ListByCredential(context.Background(), "cred:z1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestChannelPublisher_DropsWhenFull(t *testing.T) {
	var dropped []audit.Event
	pub, _ := NewChannelPublisher(1, func(ev audit.Event) { dropped = append(dropped, ev) })

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: audit.ActionCredentialVerified}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: audit.ActionCredentialDisclosed}))

	require.Len(t, dropped, 1)
	assert.Equal(t, audit.ActionCredentialDisclosed, dropped[0].Action)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	_, inbox := NewChannelPublisher(1, nil)
	w := NewWorker(memory.NewInMemoryStore(), inbox, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)
}
