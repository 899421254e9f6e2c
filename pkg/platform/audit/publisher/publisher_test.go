package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	audit "anchorcred/pkg/platform/audit"
	"anchorcred/pkg/platform/audit/store/memory"
	"anchorcred/pkg/requestcontext"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Emit(context.Context, audit.Event) error {
	return errors.New("broker down")
}

func TestPublisher_EnrichesFromContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "")

	err := pub.Emit(ctx, audit.Event{
		Action:       audit.ActionCredentialIssued,
		CredentialID: "cred:zabc",
	})
	require.NoError(t, err)

	events, err := store.ListByCredential(ctx, "cred:zabc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, now, ev.Timestamp)
	assert.Equal(t, audit.CategoryCompliance, ev.Category)
	assert.Equal(t, "req-1", ev.RequestID)
	assert.Equal(t, "203.0.113.7", ev.ClientIP)
}

func TestPublisher_RequiresAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())
	assert.Error(t, pub.Emit(context.Background(), audit.Event{}))
}

func TestPublisher_FailureSemanticsByCategory(t *testing.T) {
	pub := New(failingSink{})

	err := pub.Emit(context.Background(), audit.Event{Action: audit.ActionCredentialRevoked})
	assert.Error(t, err, "compliance events fail closed")

	err = pub.Emit(context.Background(), audit.Event{Action: audit.ActionCredentialVerified})
	assert.NoError(t, err, "operational events are best effort")
}
