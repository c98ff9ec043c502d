// Package schema holds the wire- and model-facing data types shared across
// the pipeline: the upstream ingest payload, the model's extraction
// response shape, and the routing engine's decision output. These are
// plain DTOs, independent of the ent-generated storage types, so
// validation and canonicalization can operate on them before anything
// touches the database.
package schema

import "time"

// Topic is the fixed taxonomy of story subjects the extractor classifies
// every message into.
type Topic string

const (
	TopicMacroEcon       Topic = "macro_econ"
	TopicCentralBanks    Topic = "central_banks"
	TopicRates           Topic = "rates"
	TopicFX              Topic = "fx"
	TopicCommodities     Topic = "commodities"
	TopicEquities        Topic = "equities"
	TopicCompanySpecific Topic = "company_specific"
	TopicCredit          Topic = "credit"
	TopicCrypto          Topic = "crypto"
	TopicWarSecurity     Topic = "war_security"
	TopicGeopolitics     Topic = "geopolitics"
	TopicOther           Topic = "other"
)

// Sentiment is the extractor's directional read on the story.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
	SentimentUnknown  Sentiment = "unknown"
)

// BreakingWindow is the model-reported half-life over which a breaking
// story is still considered fresh for promotion. It is distinct from the
// Fingerprint/Window Resolver's merge window, which is computed from
// topic and is_breaking rather than read off the extraction.
type BreakingWindow string

const (
	BreakingWindow15m  BreakingWindow = "15m"
	BreakingWindow1h   BreakingWindow = "1h"
	BreakingWindow4h   BreakingWindow = "4h"
	BreakingWindowNone BreakingWindow = "none"
)

// PublishPriority ranks how urgently a routed item should surface downstream.
type PublishPriority string

const (
	PublishPriorityNone   PublishPriority = "none"
	PublishPriorityLow    PublishPriority = "low"
	PublishPriorityMedium PublishPriority = "medium"
	PublishPriorityHigh   PublishPriority = "high"
)

// EventAction tells the event store what to do with an extraction.
type EventAction string

const (
	EventActionCreate EventAction = "create"
	EventActionUpdate EventAction = "update"
	EventActionIgnore EventAction = "ignore"
)

// TriageAction is the Triage Engine's verdict for a single extraction.
type TriageAction string

const (
	TriageArchive TriageAction = "archive"
	TriageMonitor TriageAction = "monitor"
	TriageUpdate  TriageAction = "update"
	TriagePromote TriageAction = "promote"
)

// IngestPayload is the upstream feed message as received, before
// normalization or extraction.
type IngestPayload struct {
	SourceChannelID   string    `json:"source_channel_id"`
	SourceChannelName string    `json:"source_channel_name,omitempty"`
	UpstreamMessageID string    `json:"upstream_message_id"`
	MessageTimeUTC    time.Time `json:"message_time_utc"`
	RawText           string    `json:"raw_text"`
	RawEntities       any       `json:"raw_entities,omitempty"`
	ForwardedFrom     string    `json:"forwarded_from,omitempty"`
}

// ExtractionEntities is the set of normalized entities the extractor
// pulled out of a message.
type ExtractionEntities struct {
	Countries []string `json:"countries,omitempty"`
	Orgs      []string `json:"orgs,omitempty"`
	People    []string `json:"people,omitempty"`
	Tickers   []string `json:"tickers,omitempty"`
}

// MarketStat is a single numeric data point the extractor attached to
// the story (e.g. a reported rate, percentage move, or price level).
type MarketStat struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Context string  `json:"context,omitempty"`
}

// Extraction is the model's structured read of a single message. The
// same shape is used both for the as-validated payload and, after the
// canonicalizer runs, for the canonical payload — only field values
// differ between the two persisted copies.
type Extraction struct {
	Topic                       Topic              `json:"topic"`
	Entities                    ExtractionEntities `json:"entities"`
	AffectedCountriesFirstOrder []string           `json:"affected_countries_first_order,omitempty"`
	MarketStats                 []MarketStat       `json:"market_stats,omitempty"`
	Sentiment                   Sentiment          `json:"sentiment"`
	Confidence                  float64            `json:"confidence"`
	ImpactScore                 float64            `json:"impact_score"`
	IsBreaking                  bool               `json:"is_breaking"`
	BreakingWindow              BreakingWindow     `json:"breaking_window"`
	EventTime                   *time.Time         `json:"event_time,omitempty"`
	SourceClaimed               *string            `json:"source_claimed,omitempty"`
	Summary1Sentence            string             `json:"summary_1_sentence"`
	Keywords                    []string           `json:"keywords,omitempty"`
	EventFingerprint            string             `json:"event_fingerprint"`
}

// RoutingDecision is the routing engine's output for a single extraction.
type RoutingDecision struct {
	StoreTo          []string        `json:"store_to"`
	PublishPriority  PublishPriority `json:"publish_priority"`
	RequiresEvidence bool            `json:"requires_evidence"`
	EventAction      EventAction     `json:"event_action"`
	TriageAction     *TriageAction   `json:"triage_action,omitempty"`
	TriageRules      []string        `json:"triage_rules,omitempty"`
	Flags            []string        `json:"flags,omitempty"`
	RulesFired       []string        `json:"rules_fired,omitempty"`
}

// IngestResponse is returned to the upstream caller after a message has
// been accepted (whether newly processed or recognized as a duplicate).
type IngestResponse struct {
	Status       string       `json:"status"`
	RawMessageID int          `json:"raw_message_id"`
	EventID      *int         `json:"event_id,omitempty"`
	EventAction  *EventAction `json:"event_action,omitempty"`
}

// HealthResponse holds the status field of the health endpoint's body. The
// handler builds that body with gin.H and also returns database and
// version (and error when unhealthy) alongside status.
type HealthResponse struct {
	Status string `json:"status"`
}
