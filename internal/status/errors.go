package status

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned for unknown job IDs. The API surfaces it
	// as a 404; stage executors treat it as a bug in their own wiring.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when creating a job whose ID already
	// exists. Job IDs are assigned once and never reused.
	ErrDuplicateJob = errors.New("job already exists")
)

// IllegalTransitionError reports an attempt to move a job out of a terminal
// state into a conflicting one. It never crosses the HTTP boundary; callers
// log it as a stage-executor bug.
type IllegalTransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for job %s: %s -> %s", e.JobID, e.From, e.To)
}

// IsIllegalTransition reports whether err is an IllegalTransitionError.
func IsIllegalTransition(err error) bool {
	var ite *IllegalTransitionError
	return errors.As(err, &ite)
}
