package client

import (
	"sync"
	"time"
)

// Metrics exposes client-side metrics for observability and monitoring.
type Metrics interface {
	// IncrSuccess records a successful operation.
	IncrSuccess(operation string)

	// IncrFailure records a failed operation.
	IncrFailure(operation string)

	// IncrRetry records a retry of the given operation.
	IncrRetry(operation string)

	// ObserveLatency records the end-to-end latency of an operation, retries included.
	ObserveLatency(operation string, latency time.Duration)

	// GetRequestCount returns the total number of requests for the given operation type.
	GetRequestCount(operation string) uint64

	// GetSuccessCount returns the number of successful requests for the operation.
	GetSuccessCount(operation string) uint64

	// GetFailureCount returns the number of failed requests for the operation.
	GetFailureCount(operation string) uint64

	// GetSuccessRate returns the success rate (0.0 to 1.0) for the given operation type.
	GetSuccessRate(operation string) float64

	// GetRetryCount returns the total number of retries for the given operation type.
	GetRetryCount(operation string) uint64

	// GetAverageLatency returns the average latency for the given operation type.
	GetAverageLatency(operation string) time.Duration

	// GetMaxLatency returns the highest latency observed for the operation.
	GetMaxLatency(operation string) time.Duration

	// Reset clears all collected metrics.
	Reset()
}

type opStats struct {
	success      uint64
	failure      uint64
	retries      uint64
	latencyTotal time.Duration
	latencyCount uint64
	latencyMax   time.Duration
}

// memoryMetrics keeps per-operation counters in memory.
type memoryMetrics struct {
	mu  sync.RWMutex
	ops map[string]*opStats
}

func newMetrics() *memoryMetrics {
	return &memoryMetrics{ops: make(map[string]*opStats)}
}

func (m *memoryMetrics) statsLocked(op string) *opStats {
	s, ok := m.ops[op]
	if !ok {
		s = &opStats{}
		m.ops[op] = s
	}
	return s
}

// snapshot returns a copy of the counters for op.
func (m *memoryMetrics) snapshot(op string) opStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.ops[op]; ok {
		return *s
	}
	return opStats{}
}

func (m *memoryMetrics) IncrSuccess(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsLocked(op).success++
}

func (m *memoryMetrics) IncrFailure(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsLocked(op).failure++
}

func (m *memoryMetrics) IncrRetry(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsLocked(op).retries++
}

func (m *memoryMetrics) ObserveLatency(op string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsLocked(op)
	s.latencyTotal += latency
	s.latencyCount++
	if latency > s.latencyMax {
		s.latencyMax = latency
	}
}

func (m *memoryMetrics) GetRequestCount(op string) uint64 {
	s := m.snapshot(op)
	return s.success + s.failure
}

func (m *memoryMetrics) GetSuccessCount(op string) uint64 {
	return m.snapshot(op).success
}

func (m *memoryMetrics) GetFailureCount(op string) uint64 {
	return m.snapshot(op).failure
}

func (m *memoryMetrics) GetSuccessRate(op string) float64 {
	s := m.snapshot(op)
	total := s.success + s.failure
	if total == 0 {
		return 0
	}
	return float64(s.success) / float64(total)
}

func (m *memoryMetrics) GetRetryCount(op string) uint64 {
	return m.snapshot(op).retries
}

func (m *memoryMetrics) GetAverageLatency(op string) time.Duration {
	s := m.snapshot(op)
	if s.latencyCount == 0 {
		return 0
	}
	return s.latencyTotal / time.Duration(s.latencyCount)
}

func (m *memoryMetrics) GetMaxLatency(op string) time.Duration {
	return m.snapshot(op).latencyMax
}

func (m *memoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[string]*opStats)
}

// noOpMetrics discards everything.
type noOpMetrics struct{}

func (noOpMetrics) IncrSuccess(string)                     {}
func (noOpMetrics) IncrFailure(string)                     {}
func (noOpMetrics) IncrRetry(string)                       {}
func (noOpMetrics) ObserveLatency(string, time.Duration)   {}
func (noOpMetrics) GetRequestCount(string) uint64          { return 0 }
func (noOpMetrics) GetSuccessCount(string) uint64          { return 0 }
func (noOpMetrics) GetFailureCount(string) uint64          { return 0 }
func (noOpMetrics) GetSuccessRate(string) float64          { return 0 }
func (noOpMetrics) GetRetryCount(string) uint64            { return 0 }
func (noOpMetrics) GetAverageLatency(string) time.Duration { return 0 }
func (noOpMetrics) GetMaxLatency(string) time.Duration     { return 0 }
func (noOpMetrics) Reset()                                 {}
