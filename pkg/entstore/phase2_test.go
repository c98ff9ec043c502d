package entstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciaranglansford/civic-quant/ent/processingstate"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

func TestPhase2Store_AcquireLock_ThenBusyThenRelease(t *testing.T) {
	client := newTestClient(t)
	store := NewPhase2Store(client)
	ctx := context.Background()

	now := time.Now().UTC()
	acquired, err := store.AcquireLock(ctx, "run-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)

	busy, err := store.AcquireLock(ctx, "run-2", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, busy)

	require.NoError(t, store.ReleaseLock(ctx, "run-1"))

	acquiredAgain, err := store.AcquireLock(ctx, "run-2", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquiredAgain)
}

func TestPhase2Store_AcquireLock_ExpiredLockIsRetakeable(t *testing.T) {
	client := newTestClient(t)
	store := NewPhase2Store(client)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := store.AcquireLock(ctx, "run-1", now.Add(-time.Minute))
	require.NoError(t, err)

	acquired, err := store.AcquireLock(ctx, "run-2", now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestPhase2Store_EligibleMessages_OrdersAndUnionsUnstartedAndResumable(t *testing.T) {
	client := newTestClient(t)
	store := NewPhase2Store(client)
	rawStore := NewRawMessageStore(client)
	ctx := context.Background()

	t0 := time.Now().UTC().Add(-time.Hour)
	unstarted, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID: "chan-1", UpstreamMessageID: "m1", MessageTimeUTC: t0, RawText: "a",
	}, "a")
	require.NoError(t, err)

	resumableFailed, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID: "chan-1", UpstreamMessageID: "m2", MessageTimeUTC: t0.Add(time.Minute), RawText: "b",
	}, "b")
	require.NoError(t, err)
	require.NoError(t, store.StartProcessing(ctx, resumableFailed.ID, "run-old", t0.Add(time.Hour), t0))
	require.NoError(t, store.FailProcessing(ctx, resumableFailed.ID, "validation_error:bad json"))

	completed, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID: "chan-1", UpstreamMessageID: "m3", MessageTimeUTC: t0.Add(2 * time.Minute), RawText: "c",
	}, "c")
	require.NoError(t, err)
	require.NoError(t, store.StartProcessing(ctx, completed.ID, "run-old", t0.Add(time.Hour), t0))
	require.NoError(t, store.CompleteProcessing(ctx, completed.ID, t0))

	expiredLease, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID: "chan-1", UpstreamMessageID: "m4", MessageTimeUTC: t0.Add(3 * time.Minute), RawText: "d",
	}, "d")
	require.NoError(t, err)
	require.NoError(t, store.StartProcessing(ctx, expiredLease.ID, "run-old", t0.Add(-time.Minute), t0))

	eligible, err := store.EligibleMessages(ctx, 10, time.Now().UTC())
	require.NoError(t, err)

	var ids []int
	for _, m := range eligible {
		ids = append(ids, m.RawMessageID)
	}
	assert.Contains(t, ids, unstarted.ID)
	assert.Contains(t, ids, resumableFailed.ID)
	assert.Contains(t, ids, expiredLease.ID)
	assert.NotContains(t, ids, completed.ID)

	for i := 1; i < len(eligible); i++ {
		assert.False(t, eligible[i].MessageTime.Before(eligible[i-1].MessageTime))
	}
}

func TestPhase2Store_EligibleMessages_RespectsBatchSize(t *testing.T) {
	client := newTestClient(t)
	store := NewPhase2Store(client)
	rawStore := NewRawMessageStore(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := rawStore.Insert(ctx, schema.IngestPayload{
			SourceChannelID:   "chan-1",
			UpstreamMessageID: string(rune('a' + i)),
			MessageTimeUTC:    time.Now().UTC().Add(time.Duration(i) * time.Minute),
			RawText:           "text",
		}, "text")
		require.NoError(t, err)
	}

	eligible, err := store.EligibleMessages(ctx, 3, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, eligible, 3)
}

func TestPhase2Store_StartProcessing_IncrementsAttemptCountOnRetry(t *testing.T) {
	client := newTestClient(t)
	store := NewPhase2Store(client)
	rawStore := NewRawMessageStore(client)
	ctx := context.Background()

	now := time.Now().UTC()
	msg, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID: "chan-1", UpstreamMessageID: "m1", MessageTimeUTC: now, RawText: "a",
	}, "a")
	require.NoError(t, err)

	require.NoError(t, store.StartProcessing(ctx, msg.ID, "run-1", now.Add(time.Minute), now))
	require.NoError(t, store.FailProcessing(ctx, msg.ID, "provider_error:timeout"))
	require.NoError(t, store.StartProcessing(ctx, msg.ID, "run-2", now.Add(time.Minute), now))

	row, err := client.ProcessingState.Query().Where(processingstate.RawMessageIDEQ(msg.ID)).Only(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, row.AttemptCount)
	assert.Equal(t, processingstate.StatusInProgress, row.Status)
	assert.Nil(t, row.LastError)
}
