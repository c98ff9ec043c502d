package entstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ciaranglansford/civic-quant/ent"
	"github.com/ciaranglansford/civic-quant/ent/advisorylock"
	"github.com/ciaranglansford/civic-quant/ent/processingstate"
	"github.com/ciaranglansford/civic-quant/ent/rawmessage"
	"github.com/ciaranglansford/civic-quant/pkg/phase2"
)

// LockName is the single named advisory lock phase 2 serializes on.
const LockName = "phase2_extraction"

// Phase2Store adapts *ent.Client to phase2.Store, covering both the
// AdvisoryLock and ProcessingState tables.
type Phase2Store struct {
	client *ent.Client
}

// NewPhase2Store builds a Phase2Store.
func NewPhase2Store(client *ent.Client) *Phase2Store {
	return &Phase2Store{client: client}
}

// AcquireLock takes the named lock for runID if it is unheld or expired.
// The row is created on first use if it is missing: migration 000002
// seeds it, but a schema built by ent's Schema.Create has no row.
func (s *Phase2Store) AcquireLock(ctx context.Context, runID string, lockUntil time.Time) (bool, error) {
	now := time.Now().UTC()

	n, err := s.client.AdvisoryLock.Update().
		Where(
			advisorylock.LockNameEQ(LockName),
			advisorylock.Or(
				advisorylock.LockedUntilIsNil(),
				advisorylock.LockedUntilLT(now),
			),
		).
		SetLockedUntil(lockUntil).
		SetOwnerRunID(runID).
		Save(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire advisory lock (update): %w", err)
	}
	if n > 0 {
		return true, nil
	}

	exists, err := s.client.AdvisoryLock.Query().
		Where(advisorylock.LockNameEQ(LockName)).
		Exist(ctx)
	if err != nil {
		return false, fmt.Errorf("check advisory lock existence: %w", err)
	}
	if exists {
		return false, nil
	}

	_, err = s.client.AdvisoryLock.Create().
		SetLockName(LockName).
		SetLockedUntil(lockUntil).
		SetOwnerRunID(runID).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("acquire advisory lock (create): %w", err)
	}
	return true, nil
}

// ReleaseLock clears locked_until only if runID is still the recorded owner.
func (s *Phase2Store) ReleaseLock(ctx context.Context, runID string) error {
	_, err := s.client.AdvisoryLock.Update().
		Where(
			advisorylock.LockNameEQ(LockName),
			advisorylock.OwnerRunIDEQ(runID),
		).
		ClearLockedUntil().
		ClearOwnerRunID().
		Save(ctx)
	if err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}
	return nil
}

// EligibleMessages unions raw messages that have never had a
// ProcessingState row created with ProcessingState rows in pending,
// failed, or an in_progress state whose lease has expired — ent's query
// builder has no anti-join primitive, so the two cases are queried
// separately and merged in Go.
func (s *Phase2Store) EligibleMessages(ctx context.Context, batchSize int, now time.Time) ([]phase2.EligibleMessage, error) {
	var out []phase2.EligibleMessage

	unstarted, err := s.client.RawMessage.Query().
		Where(rawmessage.Not(rawmessage.HasProcessingState())).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query unstarted raw messages: %w", err)
	}
	for _, rm := range unstarted {
		out = append(out, phase2.EligibleMessage{RawMessageID: rm.ID, MessageTime: rm.MessageTimeUTC})
	}

	resumable, err := s.client.ProcessingState.Query().
		Where(processingstate.Or(
			processingstate.StatusEQ(processingstate.StatusPending),
			processingstate.StatusEQ(processingstate.StatusFailed),
			processingstate.And(
				processingstate.StatusEQ(processingstate.StatusInProgress),
				processingstate.LeaseExpiresAtLT(now),
			),
		)).
		WithRawMessage().
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query resumable processing states: %w", err)
	}
	for _, ps := range resumable {
		if ps.Edges.RawMessage == nil {
			continue
		}
		out = append(out, phase2.EligibleMessage{
			RawMessageID: ps.RawMessageID,
			MessageTime:  ps.Edges.RawMessage.MessageTimeUTC,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].MessageTime.Equal(out[j].MessageTime) {
			return out[i].MessageTime.Before(out[j].MessageTime)
		}
		return out[i].RawMessageID < out[j].RawMessageID
	})

	if len(out) > batchSize {
		out = out[:batchSize]
	}
	return out, nil
}

// StartProcessing upserts the ProcessingState row: created with
// attempt_count 1 if this is the message's first attempt, otherwise
// updated in place with attempt_count incremented.
func (s *Phase2Store) StartProcessing(ctx context.Context, rawMessageID int, runID string, leaseExpiresAt, now time.Time) error {
	existing, err := s.client.ProcessingState.Query().
		Where(processingstate.RawMessageIDEQ(rawMessageID)).
		Only(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return fmt.Errorf("query processing state: %w", err)
	}

	if ent.IsNotFound(err) {
		_, err := s.client.ProcessingState.Create().
			SetRawMessageID(rawMessageID).
			SetStatus(processingstate.StatusInProgress).
			SetAttemptCount(1).
			SetProcessingRunID(runID).
			SetLastAttemptedAt(now).
			SetLeaseExpiresAt(leaseExpiresAt).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("create processing state: %w", err)
		}
		return nil
	}

	_, err = s.client.ProcessingState.UpdateOneID(existing.ID).
		SetStatus(processingstate.StatusInProgress).
		AddAttemptCount(1).
		SetProcessingRunID(runID).
		SetLastAttemptedAt(now).
		SetLeaseExpiresAt(leaseExpiresAt).
		ClearLastError().
		Save(ctx)
	if err != nil {
		return fmt.Errorf("update processing state: %w", err)
	}
	return nil
}

// CompleteProcessing transitions the message's ProcessingState to completed.
func (s *Phase2Store) CompleteProcessing(ctx context.Context, rawMessageID int, now time.Time) error {
	_, err := s.client.ProcessingState.Update().
		Where(processingstate.RawMessageIDEQ(rawMessageID)).
		SetStatus(processingstate.StatusCompleted).
		SetCompletedAt(now).
		ClearLeaseExpiresAt().
		ClearProcessingRunID().
		Save(ctx)
	if err != nil {
		return fmt.Errorf("complete processing state: %w", err)
	}
	return nil
}

// FailProcessing transitions the message's ProcessingState to failed,
// recording the category-prefixed last_error.
func (s *Phase2Store) FailProcessing(ctx context.Context, rawMessageID int, lastError string) error {
	_, err := s.client.ProcessingState.Update().
		Where(processingstate.RawMessageIDEQ(rawMessageID)).
		SetStatus(processingstate.StatusFailed).
		SetLastError(lastError).
		ClearLeaseExpiresAt().
		ClearProcessingRunID().
		Save(ctx)
	if err != nil {
		return fmt.Errorf("fail processing state: %w", err)
	}
	return nil
}
