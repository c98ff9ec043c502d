// Package validate parses and strictly validates the raw JSON text
// returned by the extraction model against the expected extraction
// shape: unknown fields are rejected and every field's range is checked
// before canonicalization or storage ever sees the value.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

var validTopics = map[schema.Topic]bool{
	schema.TopicMacroEcon:       true,
	schema.TopicCentralBanks:    true,
	schema.TopicRates:           true,
	schema.TopicFX:              true,
	schema.TopicCommodities:     true,
	schema.TopicEquities:        true,
	schema.TopicCompanySpecific: true,
	schema.TopicCredit:          true,
	schema.TopicCrypto:          true,
	schema.TopicWarSecurity:     true,
	schema.TopicGeopolitics:     true,
	schema.TopicOther:           true,
}

var validSentiments = map[schema.Sentiment]bool{
	schema.SentimentPositive: true,
	schema.SentimentNegative: true,
	schema.SentimentNeutral:  true,
	schema.SentimentMixed:    true,
	schema.SentimentUnknown:  true,
}

var validBreakingWindows = map[schema.BreakingWindow]bool{
	schema.BreakingWindowNone: true,
	schema.BreakingWindow15m:  true,
	schema.BreakingWindow1h:   true,
	schema.BreakingWindow4h:   true,
}

// ParseAndValidate parses raw model output into a schema.Extraction,
// rejecting malformed JSON (invalid_json), unknown top-level fields, and
// out-of-range field values (both schema_error).
func ParseAndValidate(raw []byte) (*schema.Extraction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var ext schema.Extraction
	if err := dec.Decode(&ext); err != nil {
		if strings.HasPrefix(err.Error(), "json: unknown field ") {
			return nil, pipelineerrors.New(pipelineerrors.KindSchemaError, err)
		}
		return nil, pipelineerrors.New(pipelineerrors.KindInvalidJSON, err)
	}

	if err := checkSemantics(&ext); err != nil {
		return nil, pipelineerrors.New(pipelineerrors.KindSchemaError, err)
	}

	return &ext, nil
}

func checkSemantics(ext *schema.Extraction) error {
	if !validTopics[ext.Topic] {
		return fmt.Errorf("invalid topic: %q", ext.Topic)
	}
	if !validSentiments[ext.Sentiment] {
		return fmt.Errorf("invalid sentiment: %q", ext.Sentiment)
	}
	if !validBreakingWindows[ext.BreakingWindow] {
		return fmt.Errorf("invalid breaking_window: %q", ext.BreakingWindow)
	}
	if ext.Confidence < 0 || ext.Confidence > 1 {
		return fmt.Errorf("confidence out of range [0,1]: %v", ext.Confidence)
	}
	if ext.ImpactScore < 0 || ext.ImpactScore > 100 {
		return fmt.Errorf("impact_score out of range [0,100]: %v", ext.ImpactScore)
	}
	if ext.Summary1Sentence == "" {
		return fmt.Errorf("summary_1_sentence is required")
	}
	if ext.EventFingerprint == "" {
		return fmt.Errorf("event_fingerprint is required")
	}
	return nil
}
