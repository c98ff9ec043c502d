// Package services implements the pipeline's stateful operations: event
// upsert, the ingest gateway, and the phase-2 batch orchestration that
// ties extraction, validation, canonicalization, triage, routing, and
// entity indexing together into one unit of work per message. The
// per-message writes are separate store calls, not a single database
// transaction.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/eventwindow"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// EventRecord is the event row shape the upsert operates on, independent
// of the storage layer.
type EventRecord struct {
	ID                 int
	Fingerprint        string
	Topic              schema.Topic
	Summary1Sentence   string
	ImpactScore        float64
	IsBreaking         bool
	BreakingWindow     schema.BreakingWindow
	EventTime          *time.Time
	LatestExtractionID *int
	LastUpdatedAt       time.Time
}

// EventStore is the persistence boundary the upsert needs. FindCandidate
// must return the event with the greatest last_updated_at among those
// sharing the fingerprint and falling inside [start, end], or nil.
type EventStore interface {
	FindCandidate(ctx context.Context, fingerprint string, start, end time.Time) (*EventRecord, error)
	Insert(ctx context.Context, rec EventRecord) (int, error)
	Update(ctx context.Context, rec EventRecord) error
	LinkMessage(ctx context.Context, eventID, rawMessageID int) error
}

// EventService upserts events from canonical extractions, applying the
// field-wise refinement rules against a merge candidate when one exists.
type EventService struct {
	store EventStore
	now   func() time.Time
}

// NewEventService builds an EventService. now defaults to time.Now when
// nil, overridable in tests for deterministic timestamps.
func NewEventService(store EventStore, now func() time.Time) *EventService {
	if now == nil {
		now = time.Now
	}
	return &EventService{store: store, now: now}
}

// UpsertResult reports the event a message was linked to and whether that
// event was newly created or refined from an existing row.
type UpsertResult struct {
	EventID int
	Action  schema.EventAction
}

// Upsert finds a merge candidate via the topic-aware window, then either
// inserts a new event or refines the candidate in place, always linking
// the raw message to the resulting event.
func (s *EventService) Upsert(ctx context.Context, ext schema.Extraction, rawMessageID int, latestExtractionID *int) (UpsertResult, error) {
	eventTime := s.now()
	if ext.EventTime != nil {
		eventTime = *ext.EventTime
	}
	window := eventwindow.Window(ext.Topic, ext.IsBreaking)

	candidate, err := s.store.FindCandidate(ctx, ext.EventFingerprint, eventTime.Add(-window), eventTime.Add(window))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("find candidate event: %w", err)
	}

	if candidate == nil {
		rec := EventRecord{
			Fingerprint:        ext.EventFingerprint,
			Topic:              ext.Topic,
			Summary1Sentence:   ext.Summary1Sentence,
			ImpactScore:        ext.ImpactScore,
			IsBreaking:         ext.IsBreaking,
			BreakingWindow:     ext.BreakingWindow,
			EventTime:          &eventTime,
			LatestExtractionID: latestExtractionID,
			LastUpdatedAt:      s.now(),
		}
		id, err := s.store.Insert(ctx, rec)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("insert event: %w", err)
		}
		if err := s.store.LinkMessage(ctx, id, rawMessageID); err != nil {
			return UpsertResult{}, fmt.Errorf("link message to new event: %w", err)
		}
		return UpsertResult{EventID: id, Action: schema.EventActionCreate}, nil
	}

	refined := refine(*candidate, ext, latestExtractionID, s.now())
	if err := s.store.Update(ctx, refined); err != nil {
		return UpsertResult{}, fmt.Errorf("update event: %w", err)
	}
	if err := s.store.LinkMessage(ctx, candidate.ID, rawMessageID); err != nil {
		return UpsertResult{}, fmt.Errorf("link message to existing event: %w", err)
	}
	return UpsertResult{EventID: candidate.ID, Action: schema.EventActionUpdate}, nil
}

// refine applies the field-wise refinement rules: replace summary only
// when non-empty and different; raise impact_score only monotonically;
// fill topic only when previously unset; promote is_breaking (with its
// window) only one-way; fill event_time only when previously unset;
// always refresh latest_extraction_id (when provided) and last_updated_at.
func refine(candidate EventRecord, ext schema.Extraction, latestExtractionID *int, now time.Time) EventRecord {
	out := candidate

	if ext.Summary1Sentence != "" && ext.Summary1Sentence != out.Summary1Sentence {
		out.Summary1Sentence = ext.Summary1Sentence
	}

	if ext.ImpactScore > out.ImpactScore {
		out.ImpactScore = ext.ImpactScore
	}

	if out.Topic == "" && ext.Topic != "" {
		out.Topic = ext.Topic
	}

	if ext.IsBreaking && !out.IsBreaking {
		out.IsBreaking = true
		out.BreakingWindow = ext.BreakingWindow
	}

	if out.EventTime == nil && ext.EventTime != nil {
		out.EventTime = ext.EventTime
	}

	if latestExtractionID != nil {
		out.LatestExtractionID = latestExtractionID
	}

	out.LastUpdatedAt = now
	return out
}
