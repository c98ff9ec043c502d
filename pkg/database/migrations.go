package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search on message and summary
// text that ent's schema DSL has no first-class way to express.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	// GIN index for normalized raw message text.
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_raw_messages_normalized_text_gin
		ON raw_messages USING gin(to_tsvector('english', normalized_text))`)
	if err != nil {
		return fmt.Errorf("failed to create normalized_text GIN index: %w", err)
	}

	// GIN index for event summaries.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_events_summary_gin
		ON events USING gin(to_tsvector('english', COALESCE(summary_1_sentence, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create summary GIN index: %w", err)
	}

	return nil
}
