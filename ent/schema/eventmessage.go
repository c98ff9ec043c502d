package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventMessage holds the schema definition for the link between an Event
// and one of the raw messages merged into it.
type EventMessage struct {
	ent.Schema
}

// Fields of the EventMessage.
func (EventMessage) Fields() []ent.Field {
	return []ent.Field{
		field.Int("event_id").
			Immutable(),
		field.Int("raw_message_id").
			Immutable(),
		field.Enum("link_action").
			Values("create", "update").
			Comment("whether this message created the event or updated an existing one"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the EventMessage.
func (EventMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("event", Event.Type).
			Ref("event_messages").
			Field("event_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.From("raw_message", RawMessage.Type).
			Ref("event_messages").
			Field("raw_message_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the EventMessage.
func (EventMessage) Indexes() []ent.Index {
	return []ent.Index{
		// I5: a raw message links to at most one event.
		index.Fields("event_id", "raw_message_id").
			Unique(),
		index.Fields("raw_message_id").
			Unique(),
	}
}
