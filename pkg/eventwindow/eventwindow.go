// Package eventwindow resolves the topic-aware time window used to find
// a candidate Event that a new extraction should merge into.
package eventwindow

import (
	"context"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// Window returns the merge window half-width for the given topic and
// breaking flag. macro_econ gets the widest window since macro releases
// are revised and re-reported over days; breaking news gets the
// narrowest since a breaking story's relevance decays fast; everything
// else gets the default.
func Window(topic schema.Topic, isBreaking bool) time.Duration {
	switch {
	case topic == schema.TopicMacroEcon:
		return 48 * time.Hour
	case isBreaking:
		return 6 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Candidate is the minimal event projection the resolver needs to pick
// a merge target.
type Candidate struct {
	ID            int
	LastUpdatedAt time.Time
}

// CandidateLookup finds events sharing the given fingerprint whose
// event_time falls within the topic-aware window around refTime. Results
// must be ordered by last_updated_at descending; Resolve trusts that
// ordering and takes the first match.
type CandidateLookup interface {
	FindByFingerprintInWindow(ctx context.Context, fingerprint string, start, end time.Time) ([]Candidate, error)
}

// Resolve returns the best merge candidate for an extraction, or nil if
// none exists. eventTime defaults to "now" when the extraction carries
// no event_time of its own.
func Resolve(ctx context.Context, lookup CandidateLookup, ext schema.Extraction, now time.Time) (*Candidate, error) {
	refTime := now
	if ext.EventTime != nil {
		refTime = *ext.EventTime
	}

	window := Window(ext.Topic, ext.IsBreaking)
	start := refTime.Add(-window)
	end := refTime.Add(window)

	candidates, err := lookup.FindByFingerprintInWindow(ctx, ext.EventFingerprint, start, end)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}
