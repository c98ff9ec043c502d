package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

type fakeEventStore struct {
	candidate *EventRecord
	inserted  []EventRecord
	updated   []EventRecord
	links     []struct{ eventID, rawMessageID int }
	nextID    int
}

func (f *fakeEventStore) FindCandidate(ctx context.Context, fingerprint string, start, end time.Time) (*EventRecord, error) {
	return f.candidate, nil
}

func (f *fakeEventStore) Insert(ctx context.Context, rec EventRecord) (int, error) {
	f.nextID++
	rec.ID = f.nextID
	f.inserted = append(f.inserted, rec)
	return rec.ID, nil
}

func (f *fakeEventStore) Update(ctx context.Context, rec EventRecord) error {
	f.updated = append(f.updated, rec)
	return nil
}

func (f *fakeEventStore) LinkMessage(ctx context.Context, eventID, rawMessageID int) error {
	f.links = append(f.links, struct{ eventID, rawMessageID int }{eventID, rawMessageID})
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

func TestEventService_InsertsNewEventWhenNoCandidate(t *testing.T) {
	store := &fakeEventStore{}
	svc := NewEventService(store, fixedNow)

	ext := schema.Extraction{
		EventFingerprint: "fp-1",
		Topic:            schema.TopicEquities,
		Summary1Sentence: "Company reports earnings.",
		ImpactScore:       70,
	}
	res, err := svc.Upsert(context.Background(), ext, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.EventActionCreate, res.Action)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "fp-1", store.inserted[0].Fingerprint)
	require.Len(t, store.links, 1)
	assert.Equal(t, 1, store.links[0].rawMessageID)
}

func TestEventService_RefinesSummaryWhenNonEmptyAndDifferent(t *testing.T) {
	store := &fakeEventStore{candidate: &EventRecord{ID: 5, Summary1Sentence: "old summary", ImpactScore: 50}}
	svc := NewEventService(store, fixedNow)

	ext := schema.Extraction{EventFingerprint: "fp", Summary1Sentence: "new summary", ImpactScore: 40}
	res, err := svc.Upsert(context.Background(), ext, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.EventActionUpdate, res.Action)
	require.Len(t, store.updated, 1)
	assert.Equal(t, "new summary", store.updated[0].Summary1Sentence)
}

func TestEventService_ImpactScoreOnlyRisesMonotonically(t *testing.T) {
	store := &fakeEventStore{candidate: &EventRecord{ID: 5, ImpactScore: 80}}
	svc := NewEventService(store, fixedNow)

	ext := schema.Extraction{EventFingerprint: "fp", ImpactScore: 40}
	_, err := svc.Upsert(context.Background(), ext, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, store.updated[0].ImpactScore)
}

func TestEventService_TopicFilledOnlyWhenPreviouslyEmpty(t *testing.T) {
	store := &fakeEventStore{candidate: &EventRecord{ID: 5, Topic: schema.TopicEquities}}
	svc := NewEventService(store, fixedNow)

	ext := schema.Extraction{EventFingerprint: "fp", Topic: schema.TopicCrypto}
	_, err := svc.Upsert(context.Background(), ext, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, schema.TopicEquities, store.updated[0].Topic)
}

func TestEventService_BreakingPromotesOneWayWithWindow(t *testing.T) {
	store := &fakeEventStore{candidate: &EventRecord{ID: 5, IsBreaking: false}}
	svc := NewEventService(store, fixedNow)

	ext := schema.Extraction{EventFingerprint: "fp", IsBreaking: true, BreakingWindow: schema.BreakingWindow1h}
	_, err := svc.Upsert(context.Background(), ext, 2, nil)
	require.NoError(t, err)
	assert.True(t, store.updated[0].IsBreaking)
	assert.Equal(t, schema.BreakingWindow1h, store.updated[0].BreakingWindow)
}

func TestEventService_EventTimeFilledOnlyWhenPreviouslyNil(t *testing.T) {
	existing := fixedNow().Add(-time.Hour)
	store := &fakeEventStore{candidate: &EventRecord{ID: 5, EventTime: &existing}}
	svc := NewEventService(store, fixedNow)

	newTime := fixedNow()
	ext := schema.Extraction{EventFingerprint: "fp", EventTime: &newTime}
	_, err := svc.Upsert(context.Background(), ext, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, existing, *store.updated[0].EventTime)
}

func TestEventService_LatestExtractionIDAlwaysRefreshedWhenProvided(t *testing.T) {
	store := &fakeEventStore{candidate: &EventRecord{ID: 5}}
	svc := NewEventService(store, fixedNow)

	extractionID := 42
	ext := schema.Extraction{EventFingerprint: "fp"}
	_, err := svc.Upsert(context.Background(), ext, 2, &extractionID)
	require.NoError(t, err)
	require.NotNil(t, store.updated[0].LatestExtractionID)
	assert.Equal(t, 42, *store.updated[0].LatestExtractionID)
}
