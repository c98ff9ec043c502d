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

func TestRawMessageStore_InsertAndFindExisting(t *testing.T) {
	client := newTestClient(t)
	store := NewRawMessageStore(client)
	ctx := context.Background()

	payload := schema.IngestPayload{
		SourceChannelID:   "chan-1",
		SourceChannelName: "reuters_wire",
		UpstreamMessageID: "msg-1",
		MessageTimeUTC:    time.Now().UTC(),
		RawText:           "BREAKING: something happened",
	}

	none, err := store.FindExisting(ctx, payload.SourceChannelID, payload.UpstreamMessageID)
	require.NoError(t, err)
	assert.Nil(t, none)

	rec, err := store.Insert(ctx, payload, "something happened")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotZero(t, rec.ID)

	found, err := store.FindExisting(ctx, payload.SourceChannelID, payload.UpstreamMessageID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rec.ID, found.ID)
}

func TestRawMessageStore_Insert_DuplicateIsRejected(t *testing.T) {
	client := newTestClient(t)
	store := NewRawMessageStore(client)
	ctx := context.Background()

	payload := schema.IngestPayload{
		SourceChannelID:   "chan-1",
		UpstreamMessageID: "msg-dup",
		MessageTimeUTC:    time.Now().UTC(),
		RawText:           "first",
	}

	_, err := store.Insert(ctx, payload, "first")
	require.NoError(t, err)

	_, err = store.Insert(ctx, payload, "first again")
	require.ErrorIs(t, err, services.ErrDuplicateUpstreamMessage)
}

func TestRawMessageStore_FindLinkedEvent(t *testing.T) {
	client := newTestClient(t)
	rawStore := NewRawMessageStore(client)
	eventStore := NewEventStore(client)
	ctx := context.Background()

	rec, err := rawStore.Insert(ctx, schema.IngestPayload{
		SourceChannelID:   "chan-1",
		UpstreamMessageID: "msg-2",
		MessageTimeUTC:    time.Now().UTC(),
		RawText:           "text",
	}, "text")
	require.NoError(t, err)

	none, err := rawStore.FindLinkedEvent(ctx, rec.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	eventID, err := eventStore.Insert(ctx, services.EventRecord{
		Fingerprint:    "fp-1",
		ImpactScore:    10,
		BreakingWindow: schema.BreakingWindowNone,
		LastUpdatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, eventStore.LinkMessage(ctx, eventID, rec.ID))

	linked, err := rawStore.FindLinkedEvent(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, eventID, *linked)
}
