package reliability

import (
	"testing"
	"time"
)

func TestFailureWindowTripsAtLimit(t *testing.T) {
	fw := NewFailureWindow(3, time.Minute)
	now := time.Now()
	fw.now = func() time.Time { return now }

	if fw.Record() {
		t.Fatalf("tripped after 1 failure")
	}
	if fw.Record() {
		t.Fatalf("tripped after 2 failures")
	}
	if !fw.Record() {
		t.Fatalf("did not trip after 3 failures")
	}
}

func TestFailureWindowAgesOut(t *testing.T) {
	fw := NewFailureWindow(3, time.Minute)
	now := time.Now()
	fw.now = func() time.Time { return now }

	fw.Record()
	fw.Record()

	// Old failures fall out of the window.
	now = now.Add(2 * time.Minute)
	if fw.Record() {
		t.Fatalf("tripped on stale failures")
	}
	if got := fw.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := time.Second

	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 400*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 400ms", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want cap %v", got, capDur)
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !IsRetryableHTTPStatus(code) {
			t.Errorf("IsRetryableHTTPStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsRetryableHTTPStatus(code) {
			t.Errorf("IsRetryableHTTPStatus(%d) = true, want false", code)
		}
	}
}
