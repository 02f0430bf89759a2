// Package calllog persists call-detail records for operator inspection.
// Records are written once, on session end, never on the audio hot path.
package calllog

import (
	"context"
	"time"
)

// CallRecord summarizes one finished bridge session.
type CallRecord struct {
	ID           string
	CallSID      string
	TenantID     string
	CallerNumber string
	StartedAt    time.Time
	EndedAt      time.Time
	EndReason    string
}

// Store persists call records.
type Store interface {
	Record(ctx context.Context, rec CallRecord) error
	Recent(ctx context.Context, limit int) ([]CallRecord, error)
	Close() error
}
