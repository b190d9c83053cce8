package status

import (
	"sync"
	"time"
)

type entry struct {
	mu     sync.Mutex
	record JobRecord
}

// Store is an in-memory, concurrency-safe map of job_id to JobRecord.
// The store-level RWMutex guards the map shape; each entry carries its own
// mutex so mutations on different jobs never serialize on each other.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*entry)}
}

// Create registers a new record under jobID. Returns ErrDuplicateJob if the
// ID is already taken; job IDs are never reused.
func (s *Store) Create(jobID string, record JobRecord) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; ok {
		return nil, ErrDuplicateJob
	}

	record.JobID = jobID
	s.jobs[jobID] = &entry{record: record}
	return record.Clone(), nil
}

// Get returns a deep copy of the record, or ErrJobNotFound.
func (s *Store) Get(jobID string) (*JobRecord, error) {
	s.mu.RLock()
	e, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone(), nil
}

// Mutate applies fn to the record under the job's own lock. No two mutations
// of the same job interleave; status and overall progress are always observed
// together. fn must not block on I/O.
func (s *Store) Mutate(jobID string, fn func(*JobRecord) error) (*JobRecord, error) {
	s.mu.RLock()
	e, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(&e.record); err != nil {
		return nil, err
	}
	return e.record.Clone(), nil
}

// ListActive returns copies of all jobs not yet in a terminal state, for the
// timeout monitor's staleness scan.
func (s *Store) ListActive() []*JobRecord {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	active := make([]*JobRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.record.Status.Terminal() {
			active = append(active, e.record.Clone())
		}
		e.mu.Unlock()
	}
	return active
}

// ListTerminalOlderThan returns copies of terminal jobs last touched before
// the cutoff, for the retention sweep.
func (s *Store) ListTerminalOlderThan(cutoff time.Time) []*JobRecord {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	stale := make([]*JobRecord, 0)
	for _, e := range entries {
		e.mu.Lock()
		if e.record.Status.Terminal() && e.record.UpdatedAt.Before(cutoff) {
			stale = append(stale, e.record.Clone())
		}
		e.mu.Unlock()
	}
	return stale
}

// Delete removes a job. Idempotent.
func (s *Store) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
