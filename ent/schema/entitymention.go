package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EntityMention holds the schema definition for a single normalized entity
// reference (country/org/person/ticker) extracted from a raw message,
// optionally linked to the event it contributed to.
type EntityMention struct {
	ent.Schema
}

// Fields of the EntityMention.
func (EntityMention) Fields() []ent.Field {
	return []ent.Field{
		field.Int("raw_message_id").
			Immutable(),
		field.Enum("entity_type").
			Values("country", "org", "person", "ticker").
			Immutable(),
		field.String("entity_value").
			Immutable().
			NotEmpty(),
		field.Int("event_id").
			Optional().
			Nillable().
			Comment("upgraded in place once the owning event is known; never downgraded to nil"),
		field.Enum("topic").
			Optional().
			Nillable().
			Values(
				"macro_econ", "central_banks", "rates", "fx", "commodities",
				"equities", "company_specific", "credit", "crypto",
				"war_security", "geopolitics", "other",
			),
		field.Bool("is_breaking").
			Default(false),
		field.Time("event_time").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the EntityMention.
func (EntityMention) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("raw_message", RawMessage.Type).
			Ref("entity_mentions").
			Field("raw_message_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the EntityMention.
func (EntityMention) Indexes() []ent.Index {
	return []ent.Index{
		// I6: one mention row per (raw_message_id, entity_type, entity_value).
		index.Fields("raw_message_id", "entity_type", "entity_value").
			Unique(),
		index.Fields("entity_type", "entity_value"),
	}
}
