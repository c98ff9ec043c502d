package entstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/event"
	"github.com/ciaranglansford/civic-quant/ent/eventmessage"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
	"github.com/ciaranglansford/civic-quant/pkg/services"
)

// EventStore adapts *ent.Client to services.EventStore.
type EventStore struct {
	client *ent.Client
}

// NewEventStore builds an EventStore.
func NewEventStore(client *ent.Client) *EventStore {
	return &EventStore{client: client}
}

func (s *EventStore) FindCandidate(ctx context.Context, fingerprint string, start, end time.Time) (*services.EventRecord, error) {
	row, err := s.client.Event.Query().
		Where(
			event.FingerprintEQ(fingerprint),
			event.EventTimeGTE(start),
			event.EventTimeLTE(end),
		).
		Order(ent.Desc(event.FieldLastUpdatedAt)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query candidate event: %w", err)
	}
	return toEventRecord(row), nil
}

func (s *EventStore) Insert(ctx context.Context, rec services.EventRecord) (int, error) {
	create := s.client.Event.Create().
		SetFingerprint(rec.Fingerprint).
		SetImpactScore(rec.ImpactScore).
		SetIsBreaking(rec.IsBreaking).
		SetBreakingWindow(event.BreakingWindow(rec.BreakingWindow)).
		SetLastUpdatedAt(rec.LastUpdatedAt)

	if rec.Topic != "" {
		create = create.SetTopic(event.Topic(rec.Topic))
	}
	if rec.Summary1Sentence != "" {
		create = create.SetSummary1Sentence(rec.Summary1Sentence)
	}
	if rec.EventTime != nil {
		create = create.SetEventTime(*rec.EventTime)
	}
	if rec.LatestExtractionID != nil {
		create = create.SetLatestExtractionID(*rec.LatestExtractionID)
	}

	row, err := create.Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return row.ID, nil
}

func (s *EventStore) Update(ctx context.Context, rec services.EventRecord) error {
	update := s.client.Event.UpdateOneID(rec.ID).
		SetImpactScore(rec.ImpactScore).
		SetIsBreaking(rec.IsBreaking).
		SetBreakingWindow(event.BreakingWindow(rec.BreakingWindow)).
		SetLastUpdatedAt(rec.LastUpdatedAt)

	if rec.Topic != "" {
		update = update.SetTopic(event.Topic(rec.Topic))
	}
	if rec.Summary1Sentence != "" {
		update = update.SetSummary1Sentence(rec.Summary1Sentence)
	}
	if rec.EventTime != nil {
		update = update.SetEventTime(*rec.EventTime)
	}
	if rec.LatestExtractionID != nil {
		update = update.SetLatestExtractionID(*rec.LatestExtractionID)
	}

	if _, err := update.Save(ctx); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// LinkMessage creates the EventMessage row joining rawMessageID to
// eventID, deriving link_action from whether this event already has any
// linked messages: the first link is "create", every subsequent one is
// "update".
func (s *EventStore) LinkMessage(ctx context.Context, eventID, rawMessageID int) error {
	count, err := s.client.EventMessage.Query().
		Where(eventmessage.EventIDEQ(eventID)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count existing event messages: %w", err)
	}

	action := eventmessage.LinkActionUpdate
	if count == 0 {
		action = eventmessage.LinkActionCreate
	}

	_, err = s.client.EventMessage.Create().
		SetEventID(eventID).
		SetRawMessageID(rawMessageID).
		SetLinkAction(action).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("link message to event: %w", err)
	}
	return nil
}

func toEventRecord(row *ent.Event) *services.EventRecord {
	rec := &services.EventRecord{
		ID:             row.ID,
		Fingerprint:    row.Fingerprint,
		IsBreaking:     row.IsBreaking,
		BreakingWindow: schema.BreakingWindow(row.BreakingWindow),
		LastUpdatedAt:  row.LastUpdatedAt,
	}
	if row.Topic != nil {
		rec.Topic = schema.Topic(*row.Topic)
	}
	if row.Summary1Sentence != nil {
		rec.Summary1Sentence = *row.Summary1Sentence
	}
	if row.ImpactScore != nil {
		rec.ImpactScore = *row.ImpactScore
	}
	if row.EventTime != nil {
		rec.EventTime = row.EventTime
	}
	if row.LatestExtractionID != nil {
		rec.LatestExtractionID = row.LatestExtractionID
	}
	return rec
}
