package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/realtime-news-collector/internal/metrics"
)

// RunState is a point-in-time view of collector activity.
type RunState struct {
	IsRunning      bool       `json:"is_running"`
	LastRunAt      *time.Time `json:"last_run"`
	LastQuery      string     `json:"last_query,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	TotalCollected int64      `json:"total_collected"`
}

// runState guards the single-flight flag and the fields reported by Status.
type runState struct {
	running atomic.Bool

	mu             sync.RWMutex
	lastRunAt      *time.Time
	lastQuery      string
	lastError      string
	totalCollected int64
}

func (s *runState) acquire() bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	metrics.SetCollectionActive(true)
	return true
}

func (s *runState) release() {
	s.running.Store(false)
	metrics.SetCollectionActive(false)
}

func (s *runState) begin(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query
	s.lastError = ""
}

func (s *runState) succeed(at time.Time, saved int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRunAt = &at
	s.totalCollected += int64(saved)
}

func (s *runState) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err.Error()
}

func (s *runState) seed(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCollected = total
}

func (s *runState) snapshot() RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := RunState{
		IsRunning:      s.running.Load(),
		LastQuery:      s.lastQuery,
		LastError:      s.lastError,
		TotalCollected: s.totalCollected,
	}
	if s.lastRunAt != nil {
		at := *s.lastRunAt
		out.LastRunAt = &at
	}
	return out
}
