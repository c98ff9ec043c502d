// Package entstore adapts the generated ent client onto the narrow Store
// interfaces each domain package declares (services.RawMessageStore,
// services.EventStore, entityindex.Store, phase2.Store, digest's
// EventSource/PublishedPostStore), so the business logic in those
// packages stays ignorant of ent and is unit-testable without a database.
package entstore

import (
	"context"
	"fmt"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/eventmessage"
	"github.com/ciaranglansford/civic-quant/ent/rawmessage"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
	"github.com/ciaranglansford/civic-quant/pkg/services"
)

// RawMessageStore adapts *ent.Client to services.RawMessageStore.
type RawMessageStore struct {
	client *ent.Client
}

// NewRawMessageStore builds a RawMessageStore.
func NewRawMessageStore(client *ent.Client) *RawMessageStore {
	return &RawMessageStore{client: client}
}

func (s *RawMessageStore) FindExisting(ctx context.Context, sourceChannelID, upstreamMessageID string) (*services.RawMessageRecord, error) {
	row, err := s.client.RawMessage.Query().
		Where(
			rawmessage.SourceChannelIDEQ(sourceChannelID),
			rawmessage.UpstreamMessageIDEQ(upstreamMessageID),
		).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query existing raw message: %w", err)
	}
	return &services.RawMessageRecord{ID: row.ID}, nil
}

func (s *RawMessageStore) Insert(ctx context.Context, in schema.IngestPayload, normalizedText string) (*services.RawMessageRecord, error) {
	create := s.client.RawMessage.Create().
		SetSourceChannelID(in.SourceChannelID).
		SetUpstreamMessageID(in.UpstreamMessageID).
		SetMessageTimeUTC(in.MessageTimeUTC).
		SetRawText(in.RawText).
		SetNormalizedText(normalizedText)

	if in.SourceChannelName != "" {
		create = create.SetSourceChannelName(in.SourceChannelName)
	}
	if in.ForwardedFrom != "" {
		create = create.SetForwardedFrom(in.ForwardedFrom)
	}
	if entities, ok := in.RawEntities.(map[string]interface{}); ok && entities != nil {
		create = create.SetRawEntities(entities)
	}

	row, err := create.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, services.ErrDuplicateUpstreamMessage
		}
		return nil, fmt.Errorf("insert raw message: %w", err)
	}
	return &services.RawMessageRecord{ID: row.ID}, nil
}

func (s *RawMessageStore) FindLinkedEvent(ctx context.Context, rawMessageID int) (*int, error) {
	row, err := s.client.EventMessage.Query().
		Where(eventmessage.RawMessageIDEQ(rawMessageID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query linked event: %w", err)
	}
	eventID := row.EventID
	return &eventID, nil
}
