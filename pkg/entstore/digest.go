package entstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/event"
	"github.com/ciaranglansford/civic-quant/ent/publishedpost"
	"github.com/ciaranglansford/civic-quant/pkg/digest"
	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// DigestStore adapts *ent.Client to both digest.EventSource and
// digest.PublishedPostStore.
type DigestStore struct {
	client *ent.Client
}

// NewDigestStore builds a DigestStore.
func NewDigestStore(client *ent.Client) *DigestStore {
	return &DigestStore{client: client}
}

// EventsForDigest returns events either updated or timed within the
// trailing window, newest last_updated_at first.
func (s *DigestStore) EventsForDigest(ctx context.Context, windowHours int, now time.Time) ([]digest.EventSummary, error) {
	cutoff := now.Add(-time.Duration(windowHours) * time.Hour)

	rows, err := s.client.Event.Query().
		Where(event.Or(
			event.LastUpdatedAtGTE(cutoff),
			event.And(event.EventTimeNotNil(), event.EventTimeGTE(cutoff)),
		)).
		Order(ent.Desc(event.FieldLastUpdatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query events for digest: %w", err)
	}

	out := make([]digest.EventSummary, 0, len(rows))
	for _, row := range rows {
		summary := digest.EventSummary{
			ID:            row.ID,
			ImpactScore:   row.ImpactScore,
			LastUpdatedAt: row.LastUpdatedAt,
		}
		if row.Topic != nil {
			summary.Topic = schema.Topic(*row.Topic)
		}
		if row.Summary1Sentence != nil {
			summary.Summary1Sentence = *row.Summary1Sentence
		}
		out = append(out, summary)
	}
	return out, nil
}

// HasRecentDuplicate reports whether a post with the same destination and
// content hash was published within the trailing window.
func (s *DigestStore) HasRecentDuplicate(ctx context.Context, destination, contentHash string, within time.Duration) (bool, error) {
	cutoff := time.Now().Add(-within)
	exists, err := s.client.PublishedPost.Query().
		Where(
			publishedpost.DestinationEQ(destination),
			publishedpost.ContentHashEQ(contentHash),
			publishedpost.PublishedAtGTE(cutoff),
		).
		Exist(ctx)
	if err != nil {
		return false, fmt.Errorf("query recent published post: %w", err)
	}
	return exists, nil
}

// RecordPublished inserts the PublishedPost row for a successful send.
func (s *DigestStore) RecordPublished(ctx context.Context, destination, contentHash, content string, publishedAt time.Time) (int, error) {
	row, err := s.client.PublishedPost.Create().
		SetDestination(destination).
		SetContentHash(contentHash).
		SetContent(content).
		SetPublishedAt(publishedAt).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("record published post: %w", err)
	}
	return row.ID, nil
}
