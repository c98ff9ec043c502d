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

func insertTestRawMessage(t *testing.T, store *RawMessageStore, ctx context.Context, upstreamID string) *services.RawMessageRecord {
	t.Helper()
	rec, err := store.Insert(ctx, schema.IngestPayload{
		SourceChannelID:   "chan-1",
		SourceChannelName: "reuters_wire",
		UpstreamMessageID: upstreamID,
		MessageTimeUTC:    time.Now().UTC(),
		RawText:           "BREAKING: the fed raised rates",
	}, "the fed raised rates")
	require.NoError(t, err)
	return rec
}

func TestProcessorStore_LoadRawMessage(t *testing.T) {
	client := newTestClient(t)
	rawStore := NewRawMessageStore(client)
	store := NewProcessorStore(client)
	ctx := context.Background()

	rec := insertTestRawMessage(t, rawStore, ctx, "m1")

	detail, err := store.LoadRawMessage(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "the fed raised rates", detail.NormalizedText)
	assert.Equal(t, "reuters_wire", detail.SourceChannelName)
}

func TestProcessorStore_SaveAndLoadExtraction(t *testing.T) {
	client := newTestClient(t)
	rawStore := NewRawMessageStore(client)
	store := NewProcessorStore(client)
	ctx := context.Background()

	rec := insertTestRawMessage(t, rawStore, ctx, "m2")

	eventTime := time.Now().UTC()
	canonical := schema.Extraction{
		Topic:            schema.TopicCentralBanks,
		Sentiment:        schema.SentimentNeutral,
		Confidence:       0.9,
		ImpactScore:      42,
		EventFingerprint: "fed-rates",
		BreakingWindow:   schema.BreakingWindowNone,
		EventTime:        &eventTime,
		Summary1Sentence: "The Fed raised rates.",
	}

	extractionID, err := store.SaveExtraction(ctx, services.ExtractionInsert{
		RawMessageID:               rec.ID,
		ExtractorName:              "extract-and-score-openai-v1",
		SchemaVersion:              "v1",
		ModelName:                  "gpt-test",
		PromptVersion:              "extraction_agent_v2",
		ProcessingRunID:            "run-1",
		LLMRawResponse:             `{"topic":"central_banks"}`,
		PayloadRaw:                 canonical,
		PayloadCanonical:           canonical,
		CanonicalizationRulesFired: []string{"noop"},
		Metadata:                   map[string]interface{}{"latency_ms": 120},
	})
	require.NoError(t, err)
	assert.NotZero(t, extractionID)

	loaded, err := store.LoadExtraction(ctx, extractionID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, schema.TopicCentralBanks, loaded.Topic)
	assert.Equal(t, "fed-rates", loaded.EventFingerprint)
	require.NotNil(t, loaded.EventTime)
}

func TestProcessorStore_LoadExtraction_MissingReturnsNil(t *testing.T) {
	client := newTestClient(t)
	store := NewProcessorStore(client)
	ctx := context.Background()

	loaded, err := store.LoadExtraction(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestProcessorStore_SaveRoutingDecision(t *testing.T) {
	client := newTestClient(t)
	rawStore := NewRawMessageStore(client)
	store := NewProcessorStore(client)
	ctx := context.Background()

	rec := insertTestRawMessage(t, rawStore, ctx, "m3")

	triageAction := schema.TriagePromote
	err := store.SaveRoutingDecision(ctx, rec.ID, schema.RoutingDecision{
		StoreTo:          []string{"central_banks_events"},
		PublishPriority:  schema.PublishPriorityHigh,
		RequiresEvidence: true,
		EventAction:      schema.EventActionCreate,
		TriageAction:     &triageAction,
		RulesFired:       []string{"topic_to_dest:central_banks"},
	})
	require.NoError(t, err)
}
