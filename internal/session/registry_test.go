package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeConn struct {
	closed atomic.Bool
}

func (f *fakeConn) Close() error {
	f.closed.Store(true)
	return nil
}

func TestCreateIsIdempotent(t *testing.T) {
	r := NewRegistry(time.Minute)
	first := r.Create("CA123", "org_1", Config{Instructions: "first"})
	second := r.Create("CA123", "org_2", Config{Instructions: "second"})

	if first != second {
		t.Fatalf("Create returned different sessions for the same call")
	}
	if second.TenantID != "org_1" || second.Config.Instructions != "first" {
		t.Fatalf("second Create overwrote first-writer config: %+v", second)
	}
	if r.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", r.ActiveCount())
	}
}

func TestDeriveIDIsDeterministic(t *testing.T) {
	if DeriveID("CA123") != DeriveID("CA123") {
		t.Fatalf("DeriveID not deterministic")
	}
	if DeriveID("CA123") == DeriveID("CA124") {
		t.Fatalf("DeriveID collides for different calls")
	}
}

func TestGetAndRemove(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.Create("CA123", "org_1", Config{})

	if _, err := r.Get("CA123"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	r.Remove("CA123")
	if _, err := r.Get("CA123"); err != ErrNotFound {
		t.Fatalf("Get() after Remove error = %v, want ErrNotFound", err)
	}
}

func TestShutdownAllClosesSockets(t *testing.T) {
	r := NewRegistry(time.Minute)
	s1 := r.Create("CA1", "org_1", Config{})
	s2 := r.Create("CA2", "org_2", Config{})

	t1, u1, t2 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	s1.SetTelephonyConn(t1)
	s1.SetUpstreamConn(u1)
	s2.SetTelephonyConn(t2)

	r.ShutdownAll()

	for i, c := range []*fakeConn{t1, u1, t2} {
		if !c.closed.Load() {
			t.Fatalf("conn %d not closed by ShutdownAll", i)
		}
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0", r.ActiveCount())
	}
}

func TestJanitorReclaimsIdleSessions(t *testing.T) {
	r := NewRegistry(30 * time.Millisecond)
	s := r.Create("CA123", "org_1", Config{})
	conn := &fakeConn{}
	s.SetTelephonyConn(conn)

	expired := make(chan *Session, 1)
	r.SetExpireHook(func(es *Session) { expired <- es })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case es := <-expired:
		if es.CallSID != "CA123" {
			t.Fatalf("expired CallSID = %q, want CA123", es.CallSID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not reclaim idle session")
	}
	if !conn.closed.Load() {
		t.Fatalf("janitor did not close telephony conn")
	}
	if _, err := r.Get("CA123"); err != ErrNotFound {
		t.Fatalf("session still registered after expiry")
	}
}

func TestTransitionNeverMovesBackwards(t *testing.T) {
	r := NewRegistry(time.Minute)
	s := r.Create("CA123", "org_1", Config{})

	if s.State() != StateAwaitingStart {
		t.Fatalf("initial state = %q, want %q", s.State(), StateAwaitingStart)
	}
	if !s.Transition(StateStreaming) {
		t.Fatalf("Transition to streaming refused")
	}
	if s.Transition(StateAwaitingStart) {
		t.Fatalf("Transition moved backwards")
	}
	if !s.Transition(StateClosing) || !s.Transition(StateClosed) {
		t.Fatalf("forward transitions refused")
	}
}
