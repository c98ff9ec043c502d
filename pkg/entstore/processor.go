package entstore

import (
	"context"
	"fmt"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/extraction"
	"github.com/ciaranglansford/civic-quant/ent/routingdecision"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
	"github.com/ciaranglansford/civic-quant/pkg/services"
)

// ProcessorStore adapts *ent.Client to services.ProcessorStore.
type ProcessorStore struct {
	client *ent.Client
}

// NewProcessorStore builds a ProcessorStore.
func NewProcessorStore(client *ent.Client) *ProcessorStore {
	return &ProcessorStore{client: client}
}

func (s *ProcessorStore) LoadRawMessage(ctx context.Context, rawMessageID int) (services.RawMessageDetail, error) {
	row, err := s.client.RawMessage.Get(ctx, rawMessageID)
	if err != nil {
		return services.RawMessageDetail{}, fmt.Errorf("load raw message: %w", err)
	}
	detail := services.RawMessageDetail{
		NormalizedText: row.NormalizedText,
		MessageTimeUTC: row.MessageTimeUTC,
	}
	if row.SourceChannelName != nil {
		detail.SourceChannelName = *row.SourceChannelName
	}
	return detail, nil
}

func (s *ProcessorStore) SaveExtraction(ctx context.Context, rec services.ExtractionInsert) (int, error) {
	row, err := s.client.Extraction.Create().
		SetRawMessageID(rec.RawMessageID).
		SetExtractorName(rec.ExtractorName).
		SetSchemaVersion(rec.SchemaVersion).
		SetModelName(rec.ModelName).
		SetPromptVersion(rec.PromptVersion).
		SetProcessingRunID(rec.ProcessingRunID).
		SetLlmRawResponse(rec.LLMRawResponse).
		SetTopic(extraction.Topic(rec.PayloadCanonical.Topic)).
		SetSentiment(extraction.Sentiment(rec.PayloadCanonical.Sentiment)).
		SetConfidence(rec.PayloadCanonical.Confidence).
		SetImpactScore(rec.PayloadCanonical.ImpactScore).
		SetEventFingerprint(rec.PayloadCanonical.EventFingerprint).
		SetIsBreaking(rec.PayloadCanonical.IsBreaking).
		SetBreakingWindow(extraction.BreakingWindow(rec.PayloadCanonical.BreakingWindow)).
		SetNillableEventTime(rec.PayloadCanonical.EventTime).
		SetPayloadRaw(rec.PayloadRaw).
		SetPayloadCanonical(rec.PayloadCanonical).
		SetCanonicalizationRulesFired(rec.CanonicalizationRulesFired).
		SetMetadata(rec.Metadata).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("insert extraction: %w", err)
	}
	return row.ID, nil
}

func (s *ProcessorStore) LoadExtraction(ctx context.Context, extractionID int) (*schema.Extraction, error) {
	row, err := s.client.Extraction.Get(ctx, extractionID)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load extraction: %w", err)
	}
	payload := row.PayloadCanonical
	return &payload, nil
}

func (s *ProcessorStore) SaveRoutingDecision(ctx context.Context, rawMessageID int, decision schema.RoutingDecision) error {
	create := s.client.RoutingDecision.Create().
		SetRawMessageID(rawMessageID).
		SetStoreTo(decision.StoreTo).
		SetPublishPriority(routingdecision.PublishPriority(decision.PublishPriority)).
		SetRequiresEvidence(decision.RequiresEvidence).
		SetEventAction(routingdecision.EventAction(decision.EventAction)).
		SetTriageRules(decision.TriageRules).
		SetFlags(decision.Flags).
		SetRulesFired(decision.RulesFired)

	if decision.TriageAction != nil {
		triageAction := routingdecision.TriageAction(*decision.TriageAction)
		create = create.SetNillableTriageAction(&triageAction)
	}

	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}
	return nil
}
