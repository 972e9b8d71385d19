package core

import (
	"sync"
	"time"
)

const AVG_COUNT uint8 = 30

// LoadMetrics keeps the counters of the asset hub together with a rolling
// average of the last AVG_COUNT decode times.
type LoadMetrics struct {
	mu sync.Mutex

	DecodeAVGCounter uint8
	MStimes          [AVG_COUNT]float64
	MSavg            float64
	samples          int

	Hits      uint64
	Misses    uint64
	Decodes   uint64
	Failures  uint64
	Evictions uint64
}

// MetricsSnapshot is a copy of the counters safe to hand out to callers.
type MetricsSnapshot struct {
	Hits          uint64
	Misses        uint64
	Decodes       uint64
	Failures      uint64
	Evictions     uint64
	AvgDecodeTime time.Duration
}

func NewLoadMetrics() *LoadMetrics {
	return &LoadMetrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

func (m *LoadMetrics) Hit() {
	m.mu.Lock()
	m.Hits++
	m.mu.Unlock()
}

func (m *LoadMetrics) Miss() {
	m.mu.Lock()
	m.Misses++
	m.mu.Unlock()
}

func (m *LoadMetrics) Failure() {
	m.mu.Lock()
	m.Failures++
	m.mu.Unlock()
}

func (m *LoadMetrics) Eviction() {
	m.mu.Lock()
	m.Evictions++
	m.mu.Unlock()
}

// DecodeFinished records one decode and feeds its duration into the
// rolling average.
func (m *LoadMetrics) DecodeFinished(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Decodes++

	ms := float64(elapsed) / float64(time.Millisecond)
	m.MStimes[m.DecodeAVGCounter] = ms
	m.DecodeAVGCounter++
	m.DecodeAVGCounter %= AVG_COUNT
	if m.samples < int(AVG_COUNT) {
		m.samples++
	}

	sum := 0.0
	for i := 0; i < m.samples; i++ {
		sum += m.MStimes[i]
	}
	m.MSavg = sum / float64(m.samples)
}

func (m *LoadMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Hits:          m.Hits,
		Misses:        m.Misses,
		Decodes:       m.Decodes,
		Failures:      m.Failures,
		Evictions:     m.Evictions,
		AvgDecodeTime: time.Duration(m.MSavg * float64(time.Millisecond)),
	}
}
