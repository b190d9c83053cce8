package status

import (
	"fmt"
	"time"
)

// JobStatus represents the current state of a conversion job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusUpdate is one entry of a job's audit history.
type StatusUpdate struct {
	Stage     string            `json:"stage"`
	Progress  float64           `json:"progress"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// JobRecord is the per-job state tracked by the store. All mutation goes
// through the Tracker; callers only ever see copies.
type JobRecord struct {
	JobID           string         `json:"job_id"`
	Status          JobStatus      `json:"status"`
	CurrentStage    string         `json:"current_stage,omitempty"`
	StageProgress   float64        `json:"stage_progress"`
	OverallProgress float64        `json:"overall_progress"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Timeout         time.Duration  `json:"timeout_seconds"`
	History         []StatusUpdate `json:"history"`
}

// String returns a string representation of the record
func (r *JobRecord) String() string {
	return fmt.Sprintf("Job{ID: %s, Status: %s, Stage: %s, Progress: %.2f}",
		r.JobID, r.Status, r.CurrentStage, r.OverallProgress)
}

// Clone returns a deep copy so readers never alias store-owned state.
func (r *JobRecord) Clone() *JobRecord {
	c := *r
	c.History = make([]StatusUpdate, len(r.History))
	copy(c.History, r.History)
	for i, u := range r.History {
		if u.Metadata != nil {
			m := make(map[string]string, len(u.Metadata))
			for k, v := range u.Metadata {
				m[k] = v
			}
			c.History[i].Metadata = m
		}
	}
	return &c
}

// appendHistory pushes an update, evicting the oldest entry at capacity.
func (r *JobRecord) appendHistory(u StatusUpdate, capacity int) {
	r.History = append(r.History, u)
	if len(r.History) > capacity {
		r.History = r.History[len(r.History)-capacity:]
	}
}

// Snapshot is the read model returned by Tracker.GetStatus.
type Snapshot struct {
	JobID                     string    `json:"job_id"`
	Status                    JobStatus `json:"status"`
	Progress                  float64   `json:"progress"`
	Message                   string    `json:"message"`
	Completed                 bool      `json:"completed"`
	Failed                    bool      `json:"failed"`
	Error                     string    `json:"error,omitempty"`
	ElapsedSeconds            float64   `json:"elapsed_time"`
	UpdatedAt                 time.Time `json:"updated_at"`
	EstimatedRemainingSeconds *float64  `json:"estimated_remaining_seconds"`
}
