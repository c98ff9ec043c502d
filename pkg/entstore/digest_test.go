package entstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
	"github.com/ciaranglansford/civic-quant/pkg/services"
)

func TestDigestStore_EventsForDigest_WindowAndOrdering(t *testing.T) {
	client := newTestClient(t)
	eventStore := NewEventStore(client)
	digestStore := NewDigestStore(client)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	_, err := eventStore.Insert(ctx, services.EventRecord{
		Fingerprint: "fp-old", ImpactScore: 10, BreakingWindow: schema.BreakingWindowNone, LastUpdatedAt: old,
	})
	require.NoError(t, err)

	recentID, err := eventStore.Insert(ctx, services.EventRecord{
		Fingerprint: "fp-recent", Summary1Sentence: "recent story", ImpactScore: 20,
		BreakingWindow: schema.BreakingWindowNone, LastUpdatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	staleButEventTimeInWindow, err := eventStore.Insert(ctx, services.EventRecord{
		Fingerprint: "fp-eventtime", Summary1Sentence: "event time in window", ImpactScore: 15,
		BreakingWindow: schema.BreakingWindowNone, EventTime: &now, LastUpdatedAt: old,
	})
	require.NoError(t, err)

	summaries, err := digestStore.EventsForDigest(ctx, 24, now)
	require.NoError(t, err)

	var ids []int
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, recentID)
	assert.Contains(t, ids, staleButEventTimeInWindow)

	for i := 1; i < len(summaries); i++ {
		assert.False(t, summaries[i].LastUpdatedAt.After(summaries[i-1].LastUpdatedAt))
	}
}

func TestDigestStore_HasRecentDuplicateAndRecordPublished(t *testing.T) {
	client := newTestClient(t)
	store := NewDigestStore(client)
	ctx := context.Background()

	dup, err := store.HasRecentDuplicate(ctx, "slack:digest", "hash-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, dup)

	id, err := store.RecordPublished(ctx, "slack:digest", "hash-1", "rendered digest text", time.Now().UTC())
	require.NoError(t, err)
	assert.NotZero(t, id)

	dup, err = store.HasRecentDuplicate(ctx, "slack:digest", "hash-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = store.HasRecentDuplicate(ctx, "slack:digest", "hash-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, dup)
}
