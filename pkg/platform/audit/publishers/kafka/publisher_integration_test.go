//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	audit "anchorcred/pkg/platform/audit"
	"anchorcred/pkg/testutil/containers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestPublisherAgainstRedpanda(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	const topic = "credential-audit"
	rp := containers.NewRedpandaContainer(t)
	admin := rp.Client(t)

	require.NoError(t, EnsureTopic(ctx, admin, topic, 1, 1))
	require.NoError(t, EnsureTopic(ctx, admin, topic, 1, 1), "second call is a no-op")

	producer := rp.Client(t, kgo.AllowAutoTopicCreation())
	pub, err := New(producer, topic)
	require.NoError(t, err)

	event := audit.Event{
		ID:           "evt-1",
		Category:     audit.CategoryCompliance,
		Action:       audit.ActionCredentialIssued,
		CredentialID: "cred:zExample",
		Issuer:       "did:example:issuer",
		Outcome:      "anchored",
		Timestamp:    time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Emit(ctx, event))

	consumer := rp.Client(t,
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())

	var records []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { records = append(records, r) })
	require.Len(t, records, 1)
	assert.Equal(t, "cred:zExample", string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, event, got)
}
