package calllog

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryStoreRecordAndRecent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.Record(ctx, CallRecord{
			CallSID:   "CA" + string(rune('1'+i)),
			TenantID:  "org_1",
			StartedAt: time.Now().Add(-time.Minute),
			EndReason: "caller_hangup",
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[1].CallSID != "CA3" {
		t.Fatalf("last record CallSID = %q, want CA3", recent[1].CallSID)
	}
	if recent[0].ID == "" || recent[0].EndedAt.IsZero() {
		t.Fatalf("Record did not fill defaults: %+v", recent[0])
	}
}

func TestInMemoryStoreBounded(t *testing.T) {
	s := NewInMemoryStore()
	s.max = 5
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.Record(ctx, CallRecord{CallSID: "CA1"}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	recent, err := s.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("len(recent) = %d, want 5", len(recent))
	}
}

func TestFactoryDefaultsToInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore without DATABASE_URL = %T, want *InMemoryStore", s)
	}
}
