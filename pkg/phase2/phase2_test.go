package phase2

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ciaranglansford/civic-quant/pkg/pipelineerrors"
)

type fakeStore struct {
	lockHeld       bool
	eligible       []EligibleMessage
	started        map[int]bool
	completed      map[int]bool
	failed         map[int]string
	failStart      bool
	releaseCalls   int
}

func newFakeStore(eligible []EligibleMessage) *fakeStore {
	return &fakeStore{
		eligible:  eligible,
		started:   map[int]bool{},
		completed: map[int]bool{},
		failed:    map[int]string{},
	}
}

func (f *fakeStore) AcquireLock(ctx context.Context, runID string, lockUntil time.Time) (bool, error) {
	if f.lockHeld {
		return false, nil
	}
	f.lockHeld = true
	return true, nil
}

func (f *fakeStore) ReleaseLock(ctx context.Context, runID string) error {
	f.releaseCalls++
	f.lockHeld = false
	return nil
}

func (f *fakeStore) EligibleMessages(ctx context.Context, batchSize int, now time.Time) ([]EligibleMessage, error) {
	if batchSize < len(f.eligible) {
		return f.eligible[:batchSize], nil
	}
	return f.eligible, nil
}

func (f *fakeStore) StartProcessing(ctx context.Context, rawMessageID int, runID string, leaseExpiresAt, now time.Time) error {
	if f.failStart {
		return errors.New("db unavailable")
	}
	f.started[rawMessageID] = true
	return nil
}

func (f *fakeStore) CompleteProcessing(ctx context.Context, rawMessageID int, now time.Time) error {
	f.completed[rawMessageID] = true
	return nil
}

func (f *fakeStore) FailProcessing(ctx context.Context, rawMessageID int, lastError string) error {
	f.failed[rawMessageID] = lastError
	return nil
}

type fakeProcessor struct {
	failFor map[int]error
}

func (p *fakeProcessor) Process(ctx context.Context, msg EligibleMessage) error {
	if err, ok := p.failFor[msg.RawMessageID]; ok {
		return err
	}
	return nil
}

func fixedNow() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }

func baseConfig() Config {
	return Config{Enabled: true, ModelAPIKeySet: true, BatchSize: 10, LeaseSeconds: 300, SchedulerLockSecs: 60}
}

func TestRunOnce_RefusesWhenFeatureDisabled(t *testing.T) {
	store := newFakeStore(nil)
	cfg := baseConfig()
	cfg.Enabled = false
	_, err := RunOnce(context.Background(), store, &fakeProcessor{}, cfg, "run-1", fixedNow)
	require.Error(t, err)
	assert.True(t, pipelineerrors.Is(err, pipelineerrors.KindConfigurationError))
}

func TestRunOnce_RefusesWhenAPIKeyUnset(t *testing.T) {
	store := newFakeStore(nil)
	cfg := baseConfig()
	cfg.ModelAPIKeySet = false
	_, err := RunOnce(context.Background(), store, &fakeProcessor{}, cfg, "run-1", fixedNow)
	require.Error(t, err)
	assert.True(t, pipelineerrors.Is(err, pipelineerrors.KindConfigurationError))
}

func TestRunOnce_AbortsCleanlyWhenLockBusy(t *testing.T) {
	store := newFakeStore(nil)
	store.lockHeld = true
	_, err := RunOnce(context.Background(), store, &fakeProcessor{}, baseConfig(), "run-1", fixedNow)
	require.Error(t, err)
	assert.True(t, pipelineerrors.Is(err, pipelineerrors.KindLockBusy))
}

func TestRunOnce_ProcessesEligibleBatchAndReleasesLock(t *testing.T) {
	store := newFakeStore([]EligibleMessage{{RawMessageID: 1}, {RawMessageID: 2}})
	proc := &fakeProcessor{}
	summary, err := RunOnce(context.Background(), store, proc, baseConfig(), "run-1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Selected)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, store.releaseCalls)
	assert.False(t, store.lockHeld)
}

func TestRunOnce_FailedMessageRecordsCategorizedError(t *testing.T) {
	store := newFakeStore([]EligibleMessage{{RawMessageID: 5}})
	proc := &fakeProcessor{failFor: map[int]error{5: pipelineerrors.New(pipelineerrors.KindProviderError, errors.New("timeout"))}}
	summary, err := RunOnce(context.Background(), store, proc, baseConfig(), "run-1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, store.failed[5], "provider_error:")
}

func TestRunOnce_StartFailureCountsAsSkipped(t *testing.T) {
	store := newFakeStore([]EligibleMessage{{RawMessageID: 9}})
	store.failStart = true
	summary, err := RunOnce(context.Background(), store, &fakeProcessor{}, baseConfig(), "run-1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Processed)
}

func TestRunOnce_BatchSizeBoundsSelection(t *testing.T) {
	store := newFakeStore([]EligibleMessage{{RawMessageID: 1}, {RawMessageID: 2}, {RawMessageID: 3}})
	cfg := baseConfig()
	cfg.BatchSize = 2
	summary, err := RunOnce(context.Background(), store, &fakeProcessor{}, cfg, "run-1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Selected)
}
