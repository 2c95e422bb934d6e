package observability

import (
	"sync"
	"time"
)

// StageSnapshot summarizes one pipeline stage or HTTP route.
type StageSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the full metrics view served on /metrics.
type Snapshot struct {
	UptimeSec       int64                    `json:"uptime_sec"`
	TotalRequests   int64                    `json:"total_requests"`
	TotalErrors     int64                    `json:"total_errors"`
	InFlight        int64                    `json:"in_flight"`
	RateLimitWaits  int64                    `json:"rate_limit_waits"`
	RateLimitWaitMs int64                    `json:"rate_limit_wait_ms"`
	Outcomes        map[string]int64         `json:"outcomes"`
	Stages          map[string]StageSnapshot `json:"stages"`
}

type stageStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics tracks per-stage call stats and terminal order outcomes in process.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	stages         map[string]*stageStats
	outcomes       map[string]int64
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

// CallSpan measures one stage invocation from Start to End.
type CallSpan struct {
	metrics *Metrics
	stage   string
	start   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:    time.Now(),
		stages:   make(map[string]*stageStats),
		outcomes: make(map[string]int64),
	}
}

func (m *Metrics) Start(stage string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureStage(stage)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		stage:   stage,
		start:   time.Now(),
	}
}

func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.stage, dur, err != nil)
}

// CountOutcome increments the counter for a terminal saga state.
func (m *Metrics) CountOutcome(state string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.outcomes[state]++
	m.mu.Unlock()
}

func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		UptimeSec:       int64(now.Sub(m.start).Seconds()),
		Stages:          make(map[string]StageSnapshot),
		Outcomes:        make(map[string]int64, len(m.outcomes)),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for state, count := range m.outcomes {
		snap.Outcomes[state] = count
	}

	for stage, stats := range m.stages {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Stages[stage] = StageSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	return snap
}

func (m *Metrics) ensureStage(stage string) *stageStats {
	stats, ok := m.stages[stage]
	if !ok {
		stats = &stageStats{}
		m.stages[stage] = stats
	}
	return stats
}

func (m *Metrics) finish(stage string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureStage(stage)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
