package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// RoutingDecision holds the schema definition for the routing engine's
// output for a single extraction: destinations, priority, flags and the
// rules that fired to produce them.
type RoutingDecision struct {
	ent.Schema
}

// Fields of the RoutingDecision.
func (RoutingDecision) Fields() []ent.Field {
	return []ent.Field{
		field.Int("raw_message_id").
			Immutable(),
		field.JSON("store_to", []string{}),
		field.Enum("publish_priority").
			Values("none", "low", "medium", "high"),
		field.Bool("requires_evidence").
			Default(false),
		field.Enum("event_action").
			Values("create", "update", "ignore"),
		field.Enum("triage_action").
			Values("archive", "monitor", "update", "promote").
			Optional().
			Nillable(),
		field.JSON("triage_rules", []string{}).
			Optional(),
		field.JSON("flags", []string{}).
			Optional(),
		field.JSON("rules_fired", []string{}).
			Optional(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the RoutingDecision.
func (RoutingDecision) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("raw_message", RawMessage.Type).
			Ref("routing_decision").
			Field("raw_message_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the RoutingDecision.
func (RoutingDecision) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("raw_message_id").
			Unique(),
	}
}
