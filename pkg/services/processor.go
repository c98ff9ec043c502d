package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/canonicalize"
	"github.com/ciaranglansford/civic-quant/pkg/entityindex"
	"github.com/ciaranglansford/civic-quant/pkg/eventwindow"
	"github.com/ciaranglansford/civic-quant/pkg/extractclient"
	"github.com/ciaranglansford/civic-quant/pkg/phase2"
	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
	"github.com/ciaranglansford/civic-quant/pkg/promptrender"
	"github.com/ciaranglansford/civic-quant/pkg/routing"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
	"github.com/ciaranglansford/civic-quant/pkg/triage"
	"github.com/ciaranglansford/civic-quant/pkg/validate"
)

// RawMessageDetail is the projection the processor needs to render a
// prompt and drive a single message through extraction.
type RawMessageDetail struct {
	NormalizedText    string
	MessageTimeUTC    time.Time
	SourceChannelName string
}

// ExtractionInsert is a fully-assembled extraction row ready to persist,
// carrying both the as-validated and canonicalized payloads for audit.
type ExtractionInsert struct {
	RawMessageID               int
	ExtractorName              string
	SchemaVersion              string
	ModelName                  string
	PromptVersion              string
	ProcessingRunID            string
	LLMRawResponse             string
	PayloadRaw                 schema.Extraction
	PayloadCanonical           schema.Extraction
	CanonicalizationRulesFired []string
	Metadata                   map[string]interface{}
}

// ProcessorStore is the persistence boundary the MessageProcessor needs
// beyond event upsert and entity indexing: loading the raw message's
// normalized text, persisting the extraction and routing decision rows,
// and reloading a candidate event's last extraction for triage context.
type ProcessorStore interface {
	LoadRawMessage(ctx context.Context, rawMessageID int) (RawMessageDetail, error)
	SaveExtraction(ctx context.Context, rec ExtractionInsert) (int, error)
	LoadExtraction(ctx context.Context, extractionID int) (*schema.Extraction, error)
	SaveRoutingDecision(ctx context.Context, rawMessageID int, decision schema.RoutingDecision) error
}

// MessageProcessor drives a single eligible message through extraction,
// validation, canonicalization, triage, routing, event upsert, and entity
// indexing — the unit of work phase2.RunOnce calls once per message.
type MessageProcessor struct {
	store     ProcessorStore
	events    EventStore
	entities  entityindex.Store
	extract   *extractclient.Client
	schemaVer string
	now       func() time.Time
}

// NewMessageProcessor builds a MessageProcessor. now defaults to time.Now
// when nil.
func NewMessageProcessor(store ProcessorStore, events EventStore, entities entityindex.Store, extract *extractclient.Client, schemaVersion string, now func() time.Time) *MessageProcessor {
	if now == nil {
		now = time.Now
	}
	return &MessageProcessor{store: store, events: events, entities: entities, extract: extract, schemaVer: schemaVersion, now: now}
}

// Process implements phase2.MessageProcessor.
func (p *MessageProcessor) Process(ctx context.Context, msg phase2.EligibleMessage) error {
	detail, err := p.store.LoadRawMessage(ctx, msg.RawMessageID)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("load raw message: %w", err))
	}

	rendered, err := promptrender.RenderExtractionPrompt(detail.NormalizedText, detail.MessageTimeUTC, detail.SourceChannelName)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindConfigurationError, fmt.Errorf("render prompt: %w", err))
	}

	resp, err := p.extract.Extract(ctx, rendered.PromptText)
	if err != nil {
		return err // already a *pipelineerrors.KindError (provider_error) from extractclient
	}

	validated, err := validate.ParseAndValidate([]byte(resp.RawText))
	if err != nil {
		return err // already invalid_json or schema_error
	}

	canon := canonicalize.Extraction(*validated)
	ext := canon.Extraction

	window := eventwindow.Window(ext.Topic, ext.IsBreaking)
	refTime := p.now()
	if ext.EventTime != nil {
		refTime = *ext.EventTime
	}
	candidate, err := p.events.FindCandidate(ctx, ext.EventFingerprint, refTime.Add(-window), refTime.Add(window))
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("find candidate event: %w", err))
	}

	var existingEventID *int
	var candidateCtx *triage.CandidateEventContext
	if candidate != nil {
		id := candidate.ID
		existingEventID = &id
		if candidate.LatestExtractionID != nil {
			priorExt, err := p.store.LoadExtraction(ctx, *candidate.LatestExtractionID)
			if err != nil {
				return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("load candidate's prior extraction: %w", err))
			}
			if priorExt != nil {
				candidateCtx = &triage.CandidateEventContext{
					ImpactBand:  triage.ImpactBand(priorExt.ImpactScore),
					Entities:    triage.EntitySignature(*priorExt),
					SummaryTags: nil,
					SourceClass: triage.ClassifySource(priorExt.SourceClaimed, priorExt.Summary1Sentence),
				}
			}
		}
	}

	decision := triage.Decide(ext, triage.Context{
		ExistingEventID: existingEventID,
		CandidateEvent:  candidateCtx,
	})

	routingDecision := routing.Route(routing.Input{
		Extraction:      ext,
		TriageAction:    decision.TriageAction,
		TriageRules:     decision.ReasonCodes,
		ExistingEventID: existingEventID,
	}, routing.DefaultConfig())

	runID, _ := phase2.RunIDFromContext(ctx)

	extractionID, err := p.store.SaveExtraction(ctx, ExtractionInsert{
		RawMessageID:               msg.RawMessageID,
		ExtractorName:              resp.ExtractorName,
		SchemaVersion:              p.schemaVer,
		ModelName:                  resp.ModelName,
		PromptVersion:              rendered.PromptVersion,
		ProcessingRunID:            runID,
		LLMRawResponse:             resp.RawText,
		PayloadRaw:                 *validated,
		PayloadCanonical:           ext,
		CanonicalizationRulesFired: canon.RulesFired,
		Metadata: map[string]interface{}{
			"used_external_model": resp.UsedExternalModel,
			"response_id":         resp.ResponseID,
			"latency_ms":          resp.LatencyMS,
			"retries":             resp.Retries,
		},
	})
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("save extraction: %w", err))
	}

	var eventID *int
	if routingDecision.EventAction != schema.EventActionIgnore {
		upsertSvc := NewEventService(p.events, p.now)
		result, err := upsertSvc.Upsert(ctx, ext, msg.RawMessageID, &extractionID)
		if err != nil {
			return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("upsert event: %w", err))
		}
		id := result.EventID
		eventID = &id
	}

	if err := entityindex.IndexExtraction(ctx, p.entities, msg.RawMessageID, eventID, ext); err != nil {
		return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("index entities: %w", err))
	}

	if err := p.store.SaveRoutingDecision(ctx, msg.RawMessageID, routingDecision); err != nil {
		return pipelineerrors.New(pipelineerrors.KindPersistenceError, fmt.Errorf("save routing decision: %w", err))
	}

	return nil
}
