package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PublishedPost holds the schema definition for a record of a digest (or
// other outbound) post that was actually sent to a destination, keyed by
// a content hash so repeat sends within a window can be suppressed (I7).
type PublishedPost struct {
	ent.Schema
}

// Fields of the PublishedPost.
func (PublishedPost) Fields() []ent.Field {
	return []ent.Field{
		field.String("destination").
			Immutable().
			NotEmpty(),
		field.String("content_hash").
			Immutable().
			NotEmpty().
			Comment("sha256 hex of the rendered post content"),
		field.Text("content").
			Immutable(),
		field.Time("published_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the PublishedPost.
func (PublishedPost) Indexes() []ent.Index {
	return []ent.Index{
		// I7: dedup window scans by destination + content hash.
		index.Fields("destination", "content_hash"),
		index.Fields("published_at"),
	}
}
