package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// AdvisoryLock holds the schema definition for a single named mutual-
// exclusion row used to serialize the phase2 batch scheduler across
// concurrent process instances (I8).
type AdvisoryLock struct {
	ent.Schema
}

// Fields of the AdvisoryLock.
func (AdvisoryLock) Fields() []ent.Field {
	return []ent.Field{
		field.String("lock_name").
			Immutable().
			NotEmpty().
			Unique(),
		field.Time("locked_until").
			Optional().
			Nillable(),
		field.String("owner_run_id").
			Optional().
			Nillable(),
	}
}
