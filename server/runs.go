package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/nupython/report"
)

// storedRun is a finished run kept for later retrieval.
type storedRun struct {
	report   *report.Report
	created  time.Time
	lastUsed time.Time
}

// RunStore maps run ids to the reports of finished runs.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*storedRun
	now  func() time.Time
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*storedRun),
		now:  time.Now,
	}
}

// Put stores r, assigning a fresh run id if it has none, and returns the id.
func (s *RunStore) Put(r *report.Report) string {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.runs[r.RunID] = &storedRun{report: r, created: now, lastUsed: now}
	return r.RunID
}

// Get returns the report stored under id.
func (s *RunStore) Get(id string) (*report.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	run.lastUsed = s.now()
	return run.report, true
}

// Len returns the number of stored runs.
func (s *RunStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Sweep removes runs that haven't been accessed within the TTL.
func (s *RunStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	removed := 0
	for id, run := range s.runs {
		if run.lastUsed.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d stored runs", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *RunStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
