package pipeline

import "sync"

// ResultStore holds assembled documents for retrieval by the editor until
// the job is swept.
type ResultStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewResultStore creates an empty result store.
func NewResultStore() *ResultStore {
	return &ResultStore{docs: make(map[string]*Document)}
}

// Put stores the document for a job.
func (s *ResultStore) Put(jobID string, doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[jobID] = doc
}

// Get returns the document for a job, or false when the job has no result.
func (s *ResultStore) Get(jobID string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[jobID]
	return doc, ok
}

// Delete removes a job's document. Idempotent.
func (s *ResultStore) Delete(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, jobID)
}
