// Package pipeline runs the document conversion stages and reports their
// progress through the status tracker.
package pipeline

import (
	"context"
	"fmt"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/status"
)

// ReportFunc lets a stage publish stage-local progress in [0, 1].
type ReportFunc func(progress float64, message string, metadata map[string]string)

// Stage is one named phase of the conversion pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, job *Job, report ReportFunc) error
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context, job *Job, report ReportFunc) error
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(ctx context.Context, job *Job, report ReportFunc) error {
	return s.fn(ctx, job, report)
}

// StageFunc adapts a plain function to the Stage interface.
func StageFunc(name string, fn func(ctx context.Context, job *Job, report ReportFunc) error) Stage {
	return stageFunc{name: name, fn: fn}
}

// Runner executes the stage chain for one job, reporting through the
// tracker. Stage failures flow through Tracker.Fail and become observable
// job state; they never propagate past the runner.
type Runner struct {
	tracker *status.Tracker
	results *ResultStore
	stages  []Stage
}

// NewRunner creates a runner over the given ordered stages.
func NewRunner(tracker *status.Tracker, results *ResultStore, stages ...Stage) *Runner {
	return &Runner{tracker: tracker, results: results, stages: stages}
}

// Run drives job through every stage and moves it to a terminal state.
func (r *Runner) Run(ctx context.Context, job *Job) {
	for _, stage := range r.stages {
		if err := r.runStage(ctx, stage, job); err != nil {
			log := logger.WithStage(job.ID, stage.Name())
			log.Error().Err(err).Msg("Stage failed")
			if _, failErr := r.tracker.Fail(job.ID, err.Error(), fmt.Sprintf("%s stage failed", stage.Name())); failErr != nil {
				log.Error().Err(failErr).Msg("Failed to record job failure")
			}
			return
		}
	}

	if job.Document != nil && r.results != nil {
		r.results.Put(job.ID, job.Document)
	}
	if _, err := r.tracker.Complete(job.ID, "Conversion complete"); err != nil {
		logger.WithJobID(job.ID).Error().Err(err).Msg("Failed to record job completion")
	}
}

func (r *Runner) runStage(ctx context.Context, stage Stage, job *Job) error {
	report := func(progress float64, message string, metadata map[string]string) {
		if _, err := r.tracker.Update(job.ID, stage.Name(), progress, message, metadata); err != nil {
			// Unknown job here means the executor wiring is broken, not
			// a user-facing condition.
			logger.WithStage(job.ID, stage.Name()).Error().Err(err).Msg("Progress update rejected")
		}
	}

	report(0, fmt.Sprintf("Starting %s", stage.Name()), nil)
	if err := stage.Run(ctx, job, report); err != nil {
		return err
	}
	report(1, fmt.Sprintf("Finished %s", stage.Name()), nil)
	return nil
}
