package reliability

import (
	"sync"
	"time"
)

// FailureWindow counts failures inside a sliding window. A single bad
// frame never ends a session, but limit failures within the window do.
type FailureWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	stamps []time.Time
	now    func() time.Time
}

func NewFailureWindow(limit int, window time.Duration) *FailureWindow {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &FailureWindow{
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// Record registers one failure and reports whether the limit has been
// reached inside the window.
func (f *FailureWindow) Record() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	cutoff := now.Add(-f.window)
	kept := f.stamps[:0]
	for _, ts := range f.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	f.stamps = append(kept, now)
	return len(f.stamps) >= f.limit
}

// Count returns the number of failures currently inside the window.
func (f *FailureWindow) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.window)
	n := 0
	for _, ts := range f.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
