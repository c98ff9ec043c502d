package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RawMessage holds the schema definition for an ingested, as-received feed
// message and its deterministic normalized form.
type RawMessage struct {
	ent.Schema
}

// Fields of the RawMessage.
func (RawMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("source_channel_id").
			Immutable().
			NotEmpty(),
		field.String("source_channel_name").
			Optional().
			Nillable().
			Immutable(),
		field.String("upstream_message_id").
			Immutable().
			NotEmpty().
			Comment("Identifier assigned by the upstream feed; unique per source_channel_id"),
		field.Time("message_time_utc").
			Immutable(),
		field.Text("raw_text").
			Immutable(),
		field.Text("normalized_text").
			Immutable(),
		field.JSON("raw_entities", map[string]interface{}{}).
			Optional().
			Immutable(),
		field.String("forwarded_from").
			Optional().
			Nillable().
			Immutable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the RawMessage.
func (RawMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("processing_state", ProcessingState.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("extraction", Extraction.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("routing_decision", RoutingDecision.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("event_messages", EventMessage.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("entity_mentions", EntityMention.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the RawMessage.
func (RawMessage) Indexes() []ent.Index {
	return []ent.Index{
		// I1: (source_channel_id, upstream_message_id) is globally unique.
		index.Fields("source_channel_id", "upstream_message_id").
			Unique(),
		index.Fields("message_time_utc"),
	}
}
