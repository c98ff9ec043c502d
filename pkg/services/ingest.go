package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ciaranglansford/civic-quant/pkg/normalize"
	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// ErrDuplicateUpstreamMessage is returned by RawMessageStore.Insert when a
// concurrent insert raced this one to the same (source_channel_id,
// upstream_message_id) pair; IngestService treats it as the successful
// "duplicate" outcome rather than an error.
var ErrDuplicateUpstreamMessage = errors.New("duplicate upstream message")

// RawMessageRecord is the minimal raw message projection ingest needs.
type RawMessageRecord struct {
	ID int
}

// RawMessageStore is the persistence boundary for raw message ingestion.
type RawMessageStore interface {
	FindExisting(ctx context.Context, sourceChannelID, upstreamMessageID string) (*RawMessageRecord, error)
	Insert(ctx context.Context, in schema.IngestPayload, normalizedText string) (*RawMessageRecord, error)
	FindLinkedEvent(ctx context.Context, rawMessageID int) (*int, error)
}

// IngestService handles the ingest endpoint's phase-1 work: idempotent
// raw message storage. Extraction, routing, and event linkage happen
// later, asynchronously, in the phase-2 batch scheduler.
type IngestService struct {
	store RawMessageStore
}

// NewIngestService builds an IngestService.
func NewIngestService(store RawMessageStore) *IngestService {
	return &IngestService{store: store}
}

// Ingest stores a raw message, returning "duplicate" with the original
// raw_message_id (and any event it has since been linked to) when the
// (source_channel_id, upstream_message_id) pair was already seen.
func (s *IngestService) Ingest(ctx context.Context, payload schema.IngestPayload) (schema.IngestResponse, error) {
	existing, err := s.store.FindExisting(ctx, payload.SourceChannelID, payload.UpstreamMessageID)
	if err != nil {
		return schema.IngestResponse{}, fmt.Errorf("check existing raw message: %w", err)
	}
	if existing != nil {
		return s.duplicateResponse(ctx, existing.ID)
	}

	normalizedText := normalize.Text(payload.RawText)
	rec, err := s.store.Insert(ctx, payload, normalizedText)
	if err != nil {
		if errors.Is(err, ErrDuplicateUpstreamMessage) {
			existing, lookupErr := s.store.FindExisting(ctx, payload.SourceChannelID, payload.UpstreamMessageID)
			if lookupErr != nil {
				return schema.IngestResponse{}, fmt.Errorf("resolve raced duplicate: %w", lookupErr)
			}
			if existing == nil {
				return schema.IngestResponse{}, pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("duplicate insert raced but no existing row found"))
			}
			return s.duplicateResponse(ctx, existing.ID)
		}
		return schema.IngestResponse{}, pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("insert raw message: %w", err))
	}

	return schema.IngestResponse{Status: "created", RawMessageID: rec.ID}, nil
}

func (s *IngestService) duplicateResponse(ctx context.Context, rawMessageID int) (schema.IngestResponse, error) {
	eventID, err := s.store.FindLinkedEvent(ctx, rawMessageID)
	if err != nil {
		return schema.IngestResponse{}, fmt.Errorf("find linked event: %w", err)
	}
	return schema.IngestResponse{
		Status:       "duplicate",
		RawMessageID: rawMessageID,
		EventID:      eventID,
	}, nil
}
