// Package digest builds and publishes a periodic VIP summary of recent
// events, deduplicating against anything already published with the same
// content hash within the digest window.
package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ciaranglansford/civic-quant/pkg/schema"
)

// Destination is the fixed publish target for the VIP digest.
const Destination = "vip_telegram"

var topicLabels = map[schema.Topic]string{
	schema.TopicMacroEcon:       "Macro Econ",
	schema.TopicCentralBanks:    "Central Banks",
	schema.TopicEquities:        "Equities",
	schema.TopicCredit:          "Credit",
	schema.TopicRates:           "Rates",
	schema.TopicFX:              "FX",
	schema.TopicCommodities:     "Commodities",
	schema.TopicCrypto:          "Crypto",
	schema.TopicWarSecurity:     "War / Security",
	schema.TopicGeopolitics:     "Geopolitics",
	schema.TopicCompanySpecific: "Company Specific",
	schema.TopicOther:           "Other",
}

func topicLabel(topic schema.Topic) string {
	if label, ok := topicLabels[topic]; ok {
		return label
	}
	if topic == "" {
		return "Other"
	}
	return string(topic)
}

// EventSummary is the event projection the digest builder renders.
type EventSummary struct {
	ID               int
	Topic            schema.Topic
	Summary1Sentence string
	ImpactScore      *float64
	LastUpdatedAt    time.Time
}

// Publisher sends the finished digest text to its outbound destination.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// EventSource supplies the candidate event set for a digest window.
type EventSource interface {
	EventsForDigest(ctx context.Context, windowHours int, now time.Time) ([]EventSummary, error)
}

// PublishedPostStore records (and checks for) previously published
// digest posts, keyed by destination + content hash.
type PublishedPostStore interface {
	HasRecentDuplicate(ctx context.Context, destination, contentHash string, within time.Duration) (bool, error)
	RecordPublished(ctx context.Context, destination, contentHash, content string, publishedAt time.Time) (int, error)
}

// Runner ties the event source, builder, duplicate check, and publisher
// together into one digest cycle.
type Runner struct {
	events    EventSource
	posts     PublishedPostStore
	publisher Publisher
	now       func() time.Time
}

// NewRunner builds a digest Runner. now defaults to time.Now when nil.
func NewRunner(events EventSource, posts PublishedPostStore, publisher Publisher, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{events: events, posts: posts, publisher: publisher, now: now}
}

// Result reports the outcome of one digest run.
type Result struct {
	Status          string
	ContentHash     string
	PublishedPostID *int
	EventIDs        []int
}

// Run builds the digest text for the given window, skips it if an
// identical post already went out within the window, otherwise publishes
// it and records the PublishedPost row.
func (r *Runner) Run(ctx context.Context, windowHours int) (Result, error) {
	now := r.now()
	events, err := r.events.EventsForDigest(ctx, windowHours, now)
	if err != nil {
		return Result{}, fmt.Errorf("load events for digest: %w", err)
	}

	text := BuildDigest(events, windowHours, now)
	hash := ContentHash(text)

	eventIDs := make([]int, 0, len(events))
	for _, e := range events {
		eventIDs = append(eventIDs, e.ID)
	}

	dup, err := r.posts.HasRecentDuplicate(ctx, Destination, hash, time.Duration(windowHours)*time.Hour)
	if err != nil {
		return Result{}, fmt.Errorf("check recent duplicate: %w", err)
	}
	if dup {
		return Result{Status: "skipped_duplicate", ContentHash: hash, EventIDs: eventIDs}, nil
	}

	if err := r.publisher.Publish(ctx, text); err != nil {
		return Result{}, fmt.Errorf("publish digest: %w", err)
	}

	postID, err := r.posts.RecordPublished(ctx, Destination, hash, text, now)
	if err != nil {
		return Result{}, fmt.Errorf("record published post: %w", err)
	}

	id := postID
	return Result{Status: "published", ContentHash: hash, PublishedPostID: &id, EventIDs: eventIDs}, nil
}

// ContentHash is the sha256 hex digest used to deduplicate published
// posts within a digest window.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BuildDigest renders the event set into the VIP digest text: a header,
// per-topic counts, then one line per event grouped by topic label.
func BuildDigest(events []EventSummary, windowHours int, now time.Time) string {
	byTopic := make(map[string][]EventSummary)
	for _, e := range events {
		label := topicLabel(e.Topic)
		byTopic[label] = append(byTopic[label], e)
	}

	var labels []string
	for label := range byTopic {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	fmt.Fprintf(&b, "Civicquant Digest — last %dh (generated %s)\n\n", windowHours, now.UTC().Format("2006-01-02 15:04 UTC"))

	if len(labels) == 0 {
		b.WriteString("Counts: 0\n\n")
	} else {
		counts := make([]string, 0, len(labels))
		for _, label := range labels {
			counts = append(counts, fmt.Sprintf("%s: %d", label, len(byTopic[label])))
		}
		fmt.Fprintf(&b, "Counts: %s\n\n", strings.Join(counts, ", "))
	}

	for _, label := range labels {
		fmt.Fprintf(&b, "== %s ==\n", label)
		for _, e := range byTopic[label] {
			summary := strings.TrimSpace(e.Summary1Sentence)
			if summary == "" {
				summary = "(no summary)"
			}
			impact := "n/a"
			if e.ImpactScore != nil {
				impact = fmt.Sprintf("%v", *e.ImpactScore)
			}
			fmt.Fprintf(&b, "- %s (impact=%s, corroboration=unknown)\n", summary, impact)
		}
		b.WriteString("\n")
	}

	b.WriteString("Note: informational only; no investment advice. Uncorroborated items may be included and are labeled accordingly.\n")
	return strings.TrimSpace(b.String()) + "\n"
}
