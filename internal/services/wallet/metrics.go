package wallet

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
func (n *NoopMetricsCollector) RecordVolume(string, string, decimal.Decimal)  {}

// DefaultRingSize is the number of samples a RingCollector keeps.
const DefaultRingSize = 1024

// Sample is one recorded operation outcome.
type Sample struct {
	At        time.Time     `json:"at"`
	Operation string        `json:"operation"`
	Result    string        `json:"result"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Code      string        `json:"code,omitempty"`
}

// MetricsSnapshot is a point-in-time copy of a RingCollector.
type MetricsSnapshot struct {
	Results map[string]map[string]int64  `json:"results"`
	Errors  map[string]map[string]int64  `json:"errors"`
	Volume  map[string]map[string]string `json:"volume"`
	Recent  []Sample                     `json:"recent"`
}

// RingCollector keeps counters plus the most recent samples in a fixed-size
// ring. It is owned by whoever constructs it; there is no package-level buffer.
type RingCollector struct {
	mu      sync.Mutex
	samples []Sample
	next    int
	full    bool
	results map[string]map[string]int64
	errors  map[string]map[string]int64
	volume  map[string]map[string]decimal.Decimal
	now     func() time.Time
}

func NewRingCollector(size int) *RingCollector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingCollector{
		samples: make([]Sample, size),
		results: make(map[string]map[string]int64),
		errors:  make(map[string]map[string]int64),
		volume:  make(map[string]map[string]decimal.Decimal),
		now:     time.Now,
	}
}

func (r *RingCollector) push(s Sample) {
	r.samples[r.next] = s
	r.next = (r.next + 1) % len(r.samples)
	if r.next == 0 {
		r.full = true
	}
}

func (r *RingCollector) RecordOperationDuration(operation string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.push(Sample{At: r.now(), Operation: operation, Result: "duration", Duration: d})
}

func (r *RingCollector) RecordOperationResult(operation, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc(r.results, operation, result)
	r.push(Sample{At: r.now(), Operation: operation, Result: result})
}

func (r *RingCollector) RecordError(operation, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc(r.errors, operation, code)
	r.push(Sample{At: r.now(), Operation: operation, Result: "error", Code: code})
}

func (r *RingCollector) RecordVolume(operation, currency string, amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCurrency, ok := r.volume[operation]
	if !ok {
		byCurrency = make(map[string]decimal.Decimal)
		r.volume[operation] = byCurrency
	}
	byCurrency[currency] = byCurrency[currency].Add(amount)
}

// Snapshot copies the counters and returns the buffered samples oldest first.
func (r *RingCollector) Snapshot() MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := MetricsSnapshot{
		Results: copyCounts(r.results),
		Errors:  copyCounts(r.errors),
		Volume:  make(map[string]map[string]string, len(r.volume)),
	}
	for op, byCurrency := range r.volume {
		m := make(map[string]string, len(byCurrency))
		for c, v := range byCurrency {
			m[c] = v.String()
		}
		snap.Volume[op] = m
	}

	if r.full {
		snap.Recent = append(snap.Recent, r.samples[r.next:]...)
	}
	snap.Recent = append(snap.Recent, r.samples[:r.next]...)
	return snap
}

func inc(m map[string]map[string]int64, outer, inner string) {
	sub, ok := m[outer]
	if !ok {
		sub = make(map[string]int64)
		m[outer] = sub
	}
	sub[inner]++
}

func copyCounts(m map[string]map[string]int64) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(m))
	for k, sub := range m {
		c := make(map[string]int64, len(sub))
		for kk, v := range sub {
			c[kk] = v
		}
		out[k] = c
	}
	return out
}
