package entstore

import (
	"context"
	"fmt"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/entitymention"
	"github.com/ciaranglansford/civic-quant/pkg/entityindex"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// EntityMentionStore adapts *ent.Client to entityindex.Store.
type EntityMentionStore struct {
	client *ent.Client
}

// NewEntityMentionStore builds an EntityMentionStore.
func NewEntityMentionStore(client *ent.Client) *EntityMentionStore {
	return &EntityMentionStore{client: client}
}

func (s *EntityMentionStore) FindByKey(ctx context.Context, rawMessageID int, entityType entityindex.EntityType, entityValue string) (*entityindex.Mention, error) {
	row, err := s.client.EntityMention.Query().
		Where(
			entitymention.RawMessageIDEQ(rawMessageID),
			entitymention.EntityTypeEQ(entitymention.EntityType(entityType)),
			entitymention.EntityValueEQ(entityValue),
		).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query entity mention: %w", err)
	}

	m := &entityindex.Mention{
		RawMessageID: row.RawMessageID,
		EventID:      row.EventID,
		EntityType:   entityindex.EntityType(row.EntityType),
		EntityValue:  row.EntityValue,
		IsBreaking:   row.IsBreaking,
		EventTime:    row.EventTime,
	}
	if row.Topic != nil {
		m.Topic = schema.Topic(*row.Topic)
	}
	return m, nil
}

func (s *EntityMentionStore) Insert(ctx context.Context, m entityindex.Mention) error {
	create := s.client.EntityMention.Create().
		SetRawMessageID(m.RawMessageID).
		SetEntityType(entitymention.EntityType(m.EntityType)).
		SetEntityValue(m.EntityValue).
		SetIsBreaking(m.IsBreaking)

	if m.EventID != nil {
		create = create.SetEventID(*m.EventID)
	}
	if m.Topic != "" {
		create = create.SetTopic(entitymention.Topic(m.Topic))
	}
	if m.EventTime != nil {
		create = create.SetEventTime(*m.EventTime)
	}

	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("insert entity mention: %w", err)
	}
	return nil
}

func (s *EntityMentionStore) UpdateEventID(ctx context.Context, rawMessageID int, entityType entityindex.EntityType, entityValue string, eventID int) error {
	n, err := s.client.EntityMention.Update().
		Where(
			entitymention.RawMessageIDEQ(rawMessageID),
			entitymention.EntityTypeEQ(entitymention.EntityType(entityType)),
			entitymention.EntityValueEQ(entityValue),
		).
		SetEventID(eventID).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("update entity mention event id: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update entity mention event id: no matching row")
	}
	return nil
}
