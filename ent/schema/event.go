package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for a deduplicated, fingerprint-keyed
// story that one or more raw messages are merged into.
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.String("fingerprint").
			Immutable().
			NotEmpty(),
		field.Enum("topic").
			Values(
				"macro_econ", "central_banks", "rates", "fx", "commodities",
				"equities", "company_specific", "credit", "crypto",
				"war_security", "geopolitics", "other",
			).
			Optional().
			Nillable(),
		field.Text("summary_1_sentence").
			Optional().
			Nillable(),
		field.Float("impact_score").
			Optional().
			Nillable(),
		field.Time("event_time").
			Optional().
			Nillable(),
		field.Bool("is_breaking").
			Default(false),
		field.Enum("breaking_window").
			Values("15m", "1h", "4h", "none").
			Default("none"),
		field.Int("latest_extraction_id").
			Optional().
			Nillable(),
		field.Time("last_updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Event.
func (Event) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("event_messages", EventMessage.Type),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		// I4: candidate lookup scans by fingerprint within an event-time window.
		index.Fields("fingerprint"),
		index.Fields("fingerprint", "event_time"),
		index.Fields("last_updated_at"),
	}
}
