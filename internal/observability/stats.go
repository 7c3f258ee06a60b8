package observability

import (
	"sync"
	"time"
)

// RequestStats tracks served-request counts over sliding windows. Thread-safe.
type RequestStats struct {
	perMinute *slidingWindow
	perHour   *slidingWindow
	perDay    *slidingWindow
}

// StatsSnapshot is the JSON shape served by /stats.
type StatsSnapshot struct {
	RequestsPerMinute uint64 `json:"requests_per_minute"`
	RequestsPerHour   uint64 `json:"requests_per_hour"`
	RequestsPerDay    uint64 `json:"requests_per_day"`
}

// NewRequestStats creates counters for the standard minute/hour/day windows.
func NewRequestStats() *RequestStats {
	return &RequestStats{
		perMinute: newSlidingWindow(time.Minute),
		perHour:   newSlidingWindow(time.Hour),
		perDay:    newSlidingWindow(24 * time.Hour),
	}
}

// Increment records one served request in every window.
func (s *RequestStats) Increment() {
	now := time.Now()
	s.perMinute.increment(now)
	s.perHour.increment(now)
	s.perDay.increment(now)
}

// Snapshot returns the current counts.
func (s *RequestStats) Snapshot() StatsSnapshot {
	now := time.Now()
	return StatsSnapshot{
		RequestsPerMinute: s.perMinute.count(now),
		RequestsPerHour:   s.perHour.count(now),
		RequestsPerDay:    s.perDay.count(now),
	}
}

// slidingWindow counts events over a trailing duration. To keep memory
// bounded regardless of traffic, events are coalesced into fixed-width
// buckets rather than stored individually.
type slidingWindow struct {
	mu      sync.Mutex
	window  time.Duration
	stride  time.Duration
	buckets map[int64]uint64 // bucket index -> events
}

const bucketsPerWindow = 60

func newSlidingWindow(window time.Duration) *slidingWindow {
	return &slidingWindow{
		window:  window,
		stride:  window / bucketsPerWindow,
		buckets: make(map[int64]uint64),
	}
}

func (w *slidingWindow) increment(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now)
	w.buckets[now.UnixNano()/int64(w.stride)]++
}

func (w *slidingWindow) count(now time.Time) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now)
	var total uint64
	for _, n := range w.buckets {
		total += n
	}
	return total
}

func (w *slidingWindow) evict(now time.Time) {
	oldest := now.Add(-w.window).UnixNano() / int64(w.stride)
	for idx := range w.buckets {
		if idx < oldest {
			delete(w.buckets, idx)
		}
	}
}
