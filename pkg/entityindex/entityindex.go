// Package entityindex maintains the entity_mentions table: one row per
// (raw_message_id, entity_type, entity_value) tuple seen in a canonical
// extraction, used to look up every message that has ever mentioned a
// given country, org, person, or ticker.
package entityindex

import (
	"context"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// EntityType is one of the four entity kinds the indexer tracks.
type EntityType string

const (
	EntityTypeCountry EntityType = "country"
	EntityTypeOrg     EntityType = "org"
	EntityTypePerson  EntityType = "person"
	EntityTypeTicker  EntityType = "ticker"
)

// Mention is the fields the indexer needs to upsert for a single entity
// occurrence.
type Mention struct {
	RawMessageID int
	EventID      *int
	EntityType   EntityType
	EntityValue  string
	Topic        schema.Topic
	IsBreaking   bool
	EventTime    *time.Time
}

// Store is the persistence boundary the indexer needs. FindByKey looks up
// an existing mention by its natural key; Insert and UpdateEventID perform
// the two halves of the upsert.
type Store interface {
	FindByKey(ctx context.Context, rawMessageID int, entityType EntityType, entityValue string) (*Mention, error)
	Insert(ctx context.Context, m Mention) error
	UpdateEventID(ctx context.Context, rawMessageID int, entityType EntityType, entityValue string, eventID int) error
}

// IndexExtraction upserts an EntityMention for every country, org, person,
// and ticker entity in the extraction. On first sight of a
// (raw_message_id, entity_type, entity_value) tuple it inserts the row
// with the extraction's topic/is_breaking/event_time; on a repeat it only
// upgrades event_id, and only when a new one is actually known — event_id
// is never downgraded back to nil.
func IndexExtraction(ctx context.Context, store Store, rawMessageID int, eventID *int, ext schema.Extraction) error {
	mentions := collectMentions(rawMessageID, eventID, ext)
	for _, m := range mentions {
		existing, err := store.FindByKey(ctx, m.RawMessageID, m.EntityType, m.EntityValue)
		if err != nil {
			return err
		}
		if existing != nil {
			if m.EventID != nil {
				if err := store.UpdateEventID(ctx, m.RawMessageID, m.EntityType, m.EntityValue, *m.EventID); err != nil {
					return err
				}
			}
			continue
		}
		if err := store.Insert(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func collectMentions(rawMessageID int, eventID *int, ext schema.Extraction) []Mention {
	var out []Mention
	appendType := func(entityType EntityType, values []string) {
		for _, v := range values {
			if v == "" {
				continue
			}
			out = append(out, Mention{
				RawMessageID: rawMessageID,
				EventID:      eventID,
				EntityType:   entityType,
				EntityValue:  v,
				Topic:        ext.Topic,
				IsBreaking:   ext.IsBreaking,
				EventTime:    ext.EventTime,
			})
		}
	}
	appendType(EntityTypeCountry, ext.Entities.Countries)
	appendType(EntityTypeOrg, ext.Entities.Orgs)
	appendType(EntityTypePerson, ext.Entities.People)
	appendType(EntityTypeTicker, ext.Entities.Tickers)
	return out
}
