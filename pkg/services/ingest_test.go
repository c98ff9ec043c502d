package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

type fakeRawStore struct {
	byKey      map[string]*RawMessageRecord
	linkedEvt  map[int]*int
	nextID     int
	raceOnce   bool
	insertCall int
}

func newFakeRawStore() *fakeRawStore {
	return &fakeRawStore{byKey: map[string]*RawMessageRecord{}, linkedEvt: map[int]*int{}}
}

func storeKey(sourceChannelID, upstreamMessageID string) string {
	return sourceChannelID + "|" + upstreamMessageID
}

func (f *fakeRawStore) FindExisting(ctx context.Context, sourceChannelID, upstreamMessageID string) (*RawMessageRecord, error) {
	return f.byKey[storeKey(sourceChannelID, upstreamMessageID)], nil
}

func (f *fakeRawStore) Insert(ctx context.Context, in schema.IngestPayload, normalizedText string) (*RawMessageRecord, error) {
	f.insertCall++
	if f.raceOnce && f.insertCall == 1 {
		f.raceOnce = false
		f.byKey[storeKey(in.SourceChannelID, in.UpstreamMessageID)] = &RawMessageRecord{ID: 99}
		return nil, ErrDuplicateUpstreamMessage
	}
	f.nextID++
	rec := &RawMessageRecord{ID: f.nextID}
	f.byKey[storeKey(in.SourceChannelID, in.UpstreamMessageID)] = rec
	return rec, nil
}

func (f *fakeRawStore) FindLinkedEvent(ctx context.Context, rawMessageID int) (*int, error) {
	return f.linkedEvt[rawMessageID], nil
}

func TestIngest_CreatesNewRawMessage(t *testing.T) {
	store := newFakeRawStore()
	svc := NewIngestService(store)

	resp, err := svc.Ingest(context.Background(), schema.IngestPayload{SourceChannelID: "chan-1", UpstreamMessageID: "msg-1", RawText: "  BREAKING: Fed holds rates.  "})
	require.NoError(t, err)
	assert.Equal(t, "created", resp.Status)
	assert.Equal(t, 1, resp.RawMessageID)
}

func TestIngest_SecondPostWithSameKeyIsDuplicate(t *testing.T) {
	store := newFakeRawStore()
	svc := NewIngestService(store)

	payload := schema.IngestPayload{SourceChannelID: "chan-1", UpstreamMessageID: "msg-1", RawText: "text"}
	first, err := svc.Ingest(context.Background(), payload)
	require.NoError(t, err)

	second, err := svc.Ingest(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", second.Status)
	assert.Equal(t, first.RawMessageID, second.RawMessageID)
}

func TestIngest_DuplicateResponseCarriesLinkedEventID(t *testing.T) {
	store := newFakeRawStore()
	evtID := 7
	store.linkedEvt[1] = &evtID
	store.byKey[storeKey("chan-1", "msg-1")] = &RawMessageRecord{ID: 1}
	svc := NewIngestService(store)

	resp, err := svc.Ingest(context.Background(), schema.IngestPayload{SourceChannelID: "chan-1", UpstreamMessageID: "msg-1", RawText: "text"})
	require.NoError(t, err)
	assert.Equal(t, "duplicate", resp.Status)
	require.NotNil(t, resp.EventID)
	assert.Equal(t, 7, *resp.EventID)
}

func TestIngest_RacedInsertResolvesAsDuplicate(t *testing.T) {
	store := newFakeRawStore()
	store.raceOnce = true
	svc := NewIngestService(store)

	resp, err := svc.Ingest(context.Background(), schema.IngestPayload{SourceChannelID: "chan-2", UpstreamMessageID: "msg-2", RawText: "text"})
	require.NoError(t, err)
	assert.Equal(t, "duplicate", resp.Status)
	assert.Equal(t, 99, resp.RawMessageID)
}
