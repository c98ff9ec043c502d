package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProcessingState holds the schema definition for the per-message phase2
// extraction lifecycle: pending/in_progress/completed/failed plus lease
// bookkeeping for lease-based at-most-once batch claiming.
type ProcessingState struct {
	ent.Schema
}

// Fields of the ProcessingState.
func (ProcessingState) Fields() []ent.Field {
	return []ent.Field{
		field.Int("raw_message_id").
			Immutable(),
		field.Enum("status").
			Values("pending", "in_progress", "completed", "failed").
			Default("pending"),
		field.Int("attempt_count").
			Default(0).
			NonNegative(),
		field.Time("last_attempted_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Time("lease_expires_at").
			Optional().
			Nillable().
			Comment("cleared on completion; set to now+lease_seconds when claimed"),
		field.String("processing_run_id").
			Optional().
			Nillable().
			Comment("owner of the current lease, a uuid per scheduler run"),
		field.Text("last_error").
			Optional().
			Nillable(),
	}
}

// Edges of the ProcessingState.
func (ProcessingState) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("raw_message", RawMessage.Type).
			Ref("processing_state").
			Field("raw_message_id").
			Unique().
			Required().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ProcessingState.
func (ProcessingState) Indexes() []ent.Index {
	return []ent.Index{
		// I2: one processing state per raw message.
		index.Fields("raw_message_id").
			Unique(),
		// I3: eligibility scan keys on status and lease expiry.
		index.Fields("status", "lease_expires_at"),
	}
}
