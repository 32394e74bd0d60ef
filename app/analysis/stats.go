package analysis

import (
	"sync"
	"time"
)

// Stats tracks how many texts a backend handled and a running average of
// its latency. The average halves toward each new sample.
type Stats struct {
	mu    sync.Mutex
	total int64
	avg   time.Duration
	has   bool
}

type StatsSnapshot struct {
	TotalProcessed    int64         `json:"total_processed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

func (s *Stats) Record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if s.has {
		s.avg = (s.avg + d) / 2
	} else {
		s.avg = d
		s.has = true
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{TotalProcessed: s.total, AvgProcessingTime: s.avg}
}
