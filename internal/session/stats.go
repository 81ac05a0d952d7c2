package session

import (
	"sync/atomic"
	"time"
)

type counters struct {
	framesSeen      atomic.Int64
	framesProcessed atomic.Int64
	cacheHits       atomic.Int64
	failures        atomic.Int64
	matches         atomic.Int64
	events          atomic.Int64
	lastLatency     atomic.Int64
}

// Stats is a point-in-time copy of the session counters.
type Stats struct {
	FramesSeen      int64         `json:"frames_seen"`
	FramesProcessed int64         `json:"frames_processed"`
	CacheHits       int64         `json:"cache_hits"`
	Failures        int64         `json:"failures"`
	Matches         int64         `json:"matches"`
	Events          int64         `json:"events"`
	LastLatency     time.Duration `json:"last_latency_ns"`
	AdmissionState  string        `json:"admission_state"`
	Running         bool          `json:"running"`
}

func (s *Session) Stats() Stats {
	return Stats{
		FramesSeen:      s.stats.framesSeen.Load(),
		FramesProcessed: s.stats.framesProcessed.Load(),
		CacheHits:       s.stats.cacheHits.Load(),
		Failures:        s.stats.failures.Load(),
		Matches:         s.stats.matches.Load(),
		Events:          s.stats.events.Load(),
		LastLatency:     time.Duration(s.stats.lastLatency.Load()),
		AdmissionState:  s.admission.State().String(),
		Running:         s.running.Load(),
	}
}
