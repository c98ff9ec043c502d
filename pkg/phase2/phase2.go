// Package phase2 implements the processing-state machine and batch
// scheduler that drives extraction, canonicalization, triage, routing,
// event upsert, and entity indexing for messages ingested by phase 1. At
// most one run materially progresses phase 2 at a time, enforced by a
// named advisory lock; per-message leases are the finer-grain hedge
// against a crashed lock-holder.
package phase2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
)

// EligibleMessage is the minimal projection the scheduler needs to drive
// a single message through the pipeline.
type EligibleMessage struct {
	RawMessageID int
	MessageTime  time.Time
}

// Store is the persistence boundary for lock management, eligibility,
// and per-message state transitions.
type Store interface {
	// AcquireLock attempts to take the named phase2_extraction advisory
	// lock for runID, expiring at lockUntil. It returns false without
	// error if another run currently holds it.
	AcquireLock(ctx context.Context, runID string, lockUntil time.Time) (bool, error)
	// ReleaseLock clears the lock's locked_until, but only if runID is
	// still the recorded owner.
	ReleaseLock(ctx context.Context, runID string) error

	// EligibleMessages returns up to batchSize messages ordered by
	// (message_time asc, id asc) whose ProcessingState is missing, or
	// status in {pending, failed}, or (in_progress with an expired
	// lease).
	EligibleMessages(ctx context.Context, batchSize int, now time.Time) ([]EligibleMessage, error)

	// StartProcessing transitions a message to in_progress, stamping
	// processing_run_id, last_attempted_at, lease_expires_at, and
	// incrementing attempt_count; clears last_error.
	StartProcessing(ctx context.Context, rawMessageID int, runID string, leaseExpiresAt, now time.Time) error
	// CompleteProcessing transitions a message to completed.
	CompleteProcessing(ctx context.Context, rawMessageID int, now time.Time) error
	// FailProcessing transitions a message to failed, recording a
	// category-prefixed last_error.
	FailProcessing(ctx context.Context, rawMessageID int, lastError string) error
}

// MessageProcessor runs the full extraction-through-entity-indexing
// pipeline for a single eligible message. It returns a *pipelineerrors.KindError
// on any categorized failure.
type MessageProcessor interface {
	Process(ctx context.Context, msg EligibleMessage) error
}

// Config gates whether a run is allowed to start at all.
type Config struct {
	Enabled           bool
	ModelAPIKeySet    bool
	BatchSize         int
	LeaseSeconds      int
	SchedulerLockSecs int
}

// RunSummary is what the admin endpoint reports back for a completed (or
// aborted) run.
type RunSummary struct {
	ProcessingRunID string `json:"processing_run_id"`
	Selected        int    `json:"selected"`
	Processed       int    `json:"processed"`
	Completed       int    `json:"completed"`
	Failed          int    `json:"failed"`
	Skipped         int    `json:"skipped"`
}

// ErrLockBusy is returned when another run currently holds the advisory
// lock; the caller should abort cleanly with an empty summary.
var ErrLockBusy = pipelineerrors.New(pipelineerrors.KindLockBusy, errors.New("phase2_extraction lock is held by another run"))

// RunOnce acquires the advisory lock, pulls one eligible batch, and drives
// each message through proc, recording a category-prefixed last_error on
// failure so the scheduler counters reflect validation/provider/persistence
// faults distinctly. It refuses to start if the configuration gate fails.
func RunOnce(ctx context.Context, store Store, proc MessageProcessor, cfg Config, runID string, now func() time.Time) (RunSummary, error) {
	if !cfg.Enabled {
		return RunSummary{}, pipelineerrors.New(pipelineerrors.KindConfigurationError, errors.New("phase2_extraction_enabled is false"))
	}
	if !cfg.ModelAPIKeySet {
		return RunSummary{}, pipelineerrors.New(pipelineerrors.KindConfigurationError, errors.New("model API key is not configured"))
	}

	start := now()
	lockUntil := start.Add(time.Duration(cfg.SchedulerLockSecs) * time.Second)
	acquired, err := store.AcquireLock(ctx, runID, lockUntil)
	if err != nil {
		return RunSummary{}, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		slog.Info("phase2 run aborted, lock busy", "run_id", runID)
		return RunSummary{}, ErrLockBusy
	}
	defer func() {
		if err := store.ReleaseLock(ctx, runID); err != nil {
			slog.Error("failed to release phase2 advisory lock", "run_id", runID, "error", err)
		}
	}()

	messages, err := store.EligibleMessages(ctx, cfg.BatchSize, now())
	if err != nil {
		return RunSummary{}, fmt.Errorf("query eligible messages: %w", err)
	}

	summary := RunSummary{ProcessingRunID: runID, Selected: len(messages)}
	ctx = withRunID(ctx, runID)

	for _, msg := range messages {
		leaseExpires := now().Add(time.Duration(cfg.LeaseSeconds) * time.Second)
		if err := store.StartProcessing(ctx, msg.RawMessageID, runID, leaseExpires, now()); err != nil {
			slog.Error("failed to start processing message", "raw_message_id", msg.RawMessageID, "error", err)
			summary.Skipped++
			continue
		}
		summary.Processed++

		if err := proc.Process(ctx, msg); err != nil {
			lastError := categorizeError(err)
			if failErr := store.FailProcessing(ctx, msg.RawMessageID, lastError); failErr != nil {
				slog.Error("failed to record failed processing state", "raw_message_id", msg.RawMessageID, "error", failErr)
			}
			summary.Failed++
			continue
		}

		if err := store.CompleteProcessing(ctx, msg.RawMessageID, now()); err != nil {
			slog.Error("failed to mark message completed", "raw_message_id", msg.RawMessageID, "error", err)
			summary.Failed++
			continue
		}
		summary.Completed++
	}

	return summary, nil
}

// categorizeError renders a pipeline error as the category-prefixed
// last_error string the spec requires: validation_error:<detail>,
// provider_error:<detail>, or persistence_error:<Kind>.
func categorizeError(err error) string {
	if pipelineerrors.Is(err, pipelineerrors.KindInvalidJSON) || pipelineerrors.Is(err, pipelineerrors.KindSchemaError) {
		return "validation_error:" + err.Error()
	}
	if pipelineerrors.Is(err, pipelineerrors.KindProviderError) {
		return "provider_error:" + err.Error()
	}
	if pipelineerrors.Is(err, pipelineerrors.KindPersistenceError) {
		return "persistence_error:" + string(pipelineerrors.KindPersistenceError)
	}
	return "persistence_error:" + err.Error()
}

// Scheduler wires a Store, MessageProcessor, and Config into a
// ready-to-call RunOnce, generating a fresh processing_run_id per
// invocation — the shape the admin endpoint and cmd/civic-quant's
// phase2 subcommand both drive.
type Scheduler struct {
	store Store
	proc  MessageProcessor
	cfg   Config
}

// NewScheduler builds a Scheduler.
func NewScheduler(store Store, proc MessageProcessor, cfg Config) *Scheduler {
	return &Scheduler{store: store, proc: proc, cfg: cfg}
}

// RunOnce drives a single phase-2 batch under a freshly generated run id.
func (s *Scheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	return RunOnce(ctx, s.store, s.proc, s.cfg, uuid.NewString(), time.Now)
}

type runIDContextKey struct{}

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey{}, runID)
}

// RunIDFromContext returns the processing_run_id the current phase2 batch
// is running under, set by RunOnce before it calls MessageProcessor.Process.
func RunIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDContextKey{}).(string)
	return v, ok
}
