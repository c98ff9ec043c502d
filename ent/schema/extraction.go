package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// Extraction holds the schema definition for the validated, canonicalized
// model output for a single raw message. Both the as-validated and the
// post-canonicalization payloads are kept for audit, alongside a handful
// of promoted columns needed for the event-merge and indexing queries.
type Extraction struct {
	ent.Schema
}

// Fields of the Extraction.
func (Extraction) Fields() []ent.Field {
	return []ent.Field{
		field.Int("raw_message_id").
			Immutable(),
		field.String("extractor_name").
			Immutable(),
		field.String("schema_version").
			Immutable(),
		field.String("model_name").
			Immutable(),
		field.String("prompt_version").
			Immutable(),
		field.String("processing_run_id").
			Immutable(),
		field.Text("llm_raw_response").
			Immutable(),
		field.Time("validated_at").
			Default(time.Now).
			Immutable(),

		// Promoted fields, mirrored from payload_canonical for indexing.
		field.Enum("topic").
			Values(
				"macro_econ", "central_banks", "rates", "fx", "commodities",
				"equities", "company_specific", "credit", "crypto",
				"war_security", "geopolitics", "other",
			),
		field.Enum("sentiment").
			Values("positive", "negative", "neutral", "mixed", "unknown"),
		field.Float("confidence"),
		field.Float("impact_score"),
		field.String("event_fingerprint").
			NotEmpty(),
		field.Time("event_time").
			Optional().
			Nillable(),
		field.Bool("is_breaking").
			Default(false),
		field.Enum("breaking_window").
			Values("15m", "1h", "4h", "none").
			Default("none"),

		field.JSON("payload_raw", schema.Extraction{}).
			Immutable().
			Comment("validated model output, prior to canonicalization"),
		field.JSON("payload_canonical", schema.Extraction{}).
			Comment("payload after the canonicalizer pass"),
		field.JSON("canonicalization_rules_fired", []string{}).
			Optional(),
		field.JSON("metadata", map[string]interface{}{}).
			Optional().
			Comment("used_external_model, response_id, latency_ms, retries"),
	}
}

// Edges of the Extraction.
func (Extraction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("raw_message", RawMessage.Type).
			Ref("extraction").
			Field("raw_message_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Extraction.
func (Extraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("raw_message_id").
			Unique(),
		index.Fields("event_fingerprint"),
		index.Fields("topic", "event_time"),
		index.Fields("topic", "event_time", "impact_score"),
	}
}
