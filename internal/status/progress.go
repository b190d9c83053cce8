package status

import (
	"fmt"
	"math"
)

// StageWeight pairs a stage name with its share of overall progress.
type StageWeight struct {
	Stage  string
	Weight float64
}

// StageWeights is an ordered list of stages whose weights sum to 1.0.
// Overall progress is the sum of the weights of stages strictly before the
// current one, plus the current stage's weight scaled by its local progress.
type StageWeights struct {
	stages []StageWeight
}

// DefaultStageWeights covers the standard conversion pipeline.
func DefaultStageWeights() StageWeights {
	w, _ := NewStageWeights([]StageWeight{
		{Stage: "uploading", Weight: 0.1},
		{Stage: "ocr", Weight: 0.6},
		{Stage: "convert", Weight: 0.3},
	})
	return w
}

// NewStageWeights validates that weights are non-negative and sum to 1.0
// within a small tolerance.
func NewStageWeights(stages []StageWeight) (StageWeights, error) {
	if len(stages) == 0 {
		return StageWeights{}, fmt.Errorf("at least one stage is required")
	}

	var sum float64
	for _, s := range stages {
		if s.Weight < 0 {
			return StageWeights{}, fmt.Errorf("stage %q has negative weight %f", s.Stage, s.Weight)
		}
		sum += s.Weight
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return StageWeights{}, fmt.Errorf("stage weights sum to %f, want 1.0", sum)
	}

	owned := make([]StageWeight, len(stages))
	copy(owned, stages)
	return StageWeights{stages: owned}, nil
}

// Stages returns the configured order.
func (w StageWeights) Stages() []StageWeight {
	out := make([]StageWeight, len(w.stages))
	copy(out, w.stages)
	return out
}

// Overall maps (stage, stage-local progress) to weighted overall progress.
// Unknown stages contribute weight zero; progress is clamped to [0, 1].
func (w StageWeights) Overall(stage string, progress float64) float64 {
	progress = clamp01(progress)

	var before float64
	for _, s := range w.stages {
		if s.Stage == stage {
			return clamp01(before + s.Weight*progress)
		}
		before += s.Weight
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
