package status

import (
	"time"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/metrics"
)

const (
	// DefaultJobTimeout is the staleness budget applied when a job is
	// created without an explicit override.
	DefaultJobTimeout = 300 * time.Second

	// DefaultHistoryCapacity bounds the per-job audit history.
	DefaultHistoryCapacity = 100
)

// TimeoutError is the error string recorded when the monitor fails a job.
const TimeoutError = "timeout"

// Tracker is the single entry point through which stage executors report
// progress and through which the API reads job state. All transitions to a
// terminal state pass through Complete or Fail; nothing else writes records.
type Tracker struct {
	store           *Store
	weights         StageWeights
	defaultTimeout  time.Duration
	historyCapacity int
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithDefaultTimeout overrides the default per-job staleness budget.
func WithDefaultTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.defaultTimeout = d
		}
	}
}

// WithHistoryCapacity overrides the bounded history size.
func WithHistoryCapacity(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.historyCapacity = n
		}
	}
}

// NewTracker creates a tracker over the given store and stage weights.
func NewTracker(store *Store, weights StageWeights, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:           store,
		weights:         weights,
		defaultTimeout:  DefaultJobTimeout,
		historyCapacity: DefaultHistoryCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateJob registers a new job in pending state. A non-positive timeout
// selects the tracker default.
func (t *Tracker) CreateJob(jobID string, timeout time.Duration) (*JobRecord, error) {
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	now := time.Now()
	record := JobRecord{
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Timeout:   timeout,
	}
	record.appendHistory(StatusUpdate{
		Message:   "Job created",
		Timestamp: now,
	}, t.historyCapacity)

	created, err := t.store.Create(jobID, record)
	if err != nil {
		return nil, err
	}

	metrics.JobsCreatedTotal.Inc()
	metrics.ActiveJobs.Inc()
	log := logger.WithJobID(jobID)
	log.Info().Dur("timeout", timeout).Msg("Job created")
	return created, nil
}

// Update records stage-local progress. It promotes pending jobs to
// processing, derives weighted overall progress, appends a history entry and
// refreshes updated_at. Updates against terminal jobs are rejected with an
// IllegalTransitionError.
func (t *Tracker) Update(jobID, stage string, progress float64, message string, metadata map[string]string) (*JobRecord, error) {
	updated, err := t.store.Mutate(jobID, func(r *JobRecord) error {
		if r.Status.Terminal() {
			return &IllegalTransitionError{JobID: jobID, From: r.Status, To: StatusProcessing}
		}

		now := time.Now()
		progress = clamp01(progress)

		r.Status = StatusProcessing
		r.CurrentStage = stage
		r.StageProgress = progress
		r.Message = message
		r.UpdatedAt = now

		// Overall progress never decreases while processing, even if a
		// stage reports out of configured order.
		if overall := t.weights.Overall(stage, progress); overall > r.OverallProgress {
			r.OverallProgress = overall
		}

		r.appendHistory(StatusUpdate{
			Stage:     stage,
			Progress:  progress,
			Message:   message,
			Timestamp: now,
			Metadata:  metadata,
		}, t.historyCapacity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusUpdatesTotal.Inc()
	log := logger.WithStage(jobID, stage)
	log.Debug().Float64("progress", progress).Float64("overall", updated.OverallProgress).Msg(message)
	return updated, nil
}

// Complete marks the job completed with full progress. Idempotent when the
// job is already completed; completing a failed job is an illegal transition.
func (t *Tracker) Complete(jobID, message string) (*JobRecord, error) {
	var already bool
	var elapsed time.Duration

	updated, err := t.store.Mutate(jobID, func(r *JobRecord) error {
		switch r.Status {
		case StatusCompleted:
			already = true
			return nil
		case StatusFailed:
			return &IllegalTransitionError{JobID: jobID, From: r.Status, To: StatusCompleted}
		}

		now := time.Now()
		r.Status = StatusCompleted
		r.StageProgress = 1.0
		r.OverallProgress = 1.0
		r.Message = message
		r.UpdatedAt = now
		elapsed = now.Sub(r.CreatedAt)

		r.appendHistory(StatusUpdate{
			Stage:     r.CurrentStage,
			Progress:  1.0,
			Message:   message,
			Timestamp: now,
		}, t.historyCapacity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if already {
		return updated, nil
	}

	metrics.JobsCompletedTotal.Inc()
	metrics.ActiveJobs.Dec()
	metrics.ConversionDuration.Observe(elapsed.Seconds())
	log := logger.WithJobID(jobID)
	log.Info().Dur("elapsed", elapsed).Msg("Job completed")
	return updated, nil
}

// Fail marks the job failed and records the error. Idempotent when the job
// is already failed; failing a completed job is an illegal transition. This
// is the only path to the failed state, shared by stage executors and the
// timeout monitor.
func (t *Tracker) Fail(jobID, errMsg, message string) (*JobRecord, error) {
	var already bool
	var elapsed time.Duration

	updated, err := t.store.Mutate(jobID, func(r *JobRecord) error {
		switch r.Status {
		case StatusFailed:
			already = true
			return nil
		case StatusCompleted:
			return &IllegalTransitionError{JobID: jobID, From: r.Status, To: StatusFailed}
		}

		now := time.Now()
		r.Status = StatusFailed
		r.Error = errMsg
		r.Message = message
		r.UpdatedAt = now
		elapsed = now.Sub(r.CreatedAt)

		r.appendHistory(StatusUpdate{
			Stage:     r.CurrentStage,
			Progress:  r.StageProgress,
			Message:   message,
			Timestamp: now,
			Error:     errMsg,
		}, t.historyCapacity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if already {
		return updated, nil
	}

	if errMsg == TimeoutError {
		metrics.JobsTimedOutTotal.Inc()
	} else {
		metrics.JobsFailedTotal.Inc()
	}
	metrics.ActiveJobs.Dec()
	metrics.ConversionDuration.Observe(elapsed.Seconds())
	log := logger.WithJobID(jobID)
	log.Warn().Str("error", errMsg).Dur("elapsed", elapsed).Msg("Job failed")
	return updated, nil
}

// GetStatus returns the client-facing snapshot of a job.
func (t *Tracker) GetStatus(jobID string) (*Snapshot, error) {
	r, err := t.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(r.CreatedAt).Seconds()
	snap := &Snapshot{
		JobID:          r.JobID,
		Status:         r.Status,
		Progress:       r.OverallProgress,
		Message:        r.Message,
		Completed:      r.Status == StatusCompleted,
		Failed:         r.Status == StatusFailed,
		Error:          r.Error,
		ElapsedSeconds: elapsed,
		UpdatedAt:      r.UpdatedAt,
	}

	if !r.Status.Terminal() && r.OverallProgress > 0 {
		remaining := elapsed / r.OverallProgress * (1 - r.OverallProgress)
		snap.EstimatedRemainingSeconds = &remaining
	}
	return snap, nil
}

// GetHistory returns the newest-bounded audit history. A positive limit
// returns only the most recent entries.
func (t *Tracker) GetHistory(jobID string, limit int) ([]StatusUpdate, error) {
	r, err := t.store.Get(jobID)
	if err != nil {
		return nil, err
	}

	history := r.History
	if limit > 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// SetJobTimeout overrides the staleness budget for one job, for long
// documents that legitimately run past the default.
func (t *Tracker) SetJobTimeout(jobID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	_, err := t.store.Mutate(jobID, func(r *JobRecord) error {
		r.Timeout = timeout
		r.UpdatedAt = time.Now()
		return nil
	})
	return err
}

// DeleteJob removes a job from the store. Idempotent.
func (t *Tracker) DeleteJob(jobID string) {
	t.store.Delete(jobID)
}

// Sweep deletes terminal jobs last touched more than olderThan ago and
// returns the evicted job IDs so callers can release associated resources.
// Retention is the caller's policy; the tracker never evicts on its own.
func (t *Tracker) Sweep(olderThan time.Duration) []string {
	cutoff := time.Now().Add(-olderThan)
	stale := t.store.ListTerminalOlderThan(cutoff)

	evicted := make([]string, 0, len(stale))
	for _, r := range stale {
		t.store.Delete(r.JobID)
		evicted = append(evicted, r.JobID)
	}
	if len(evicted) > 0 {
		logger.Logger.Info().Int("evicted", len(evicted)).Msg("Swept terminal jobs")
	}
	return evicted
}

// JobCount returns the number of tracked jobs, for health reporting.
func (t *Tracker) JobCount() int {
	return t.store.Len()
}
