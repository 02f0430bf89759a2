package session

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ardelane/voicebridge/internal/protocol"
)

// State is the lifecycle position of one call's bridge.
type State string

const (
	StateAwaitingStart State = "awaiting_start"
	StateStreaming     State = "streaming"
	StateClosing       State = "closing"
	StateClosed        State = "closed"
)

// Config is the per-call voice configuration resolved at setup time.
type Config struct {
	Instructions string
	Voice        string
	Functions    []protocol.FunctionDecl
	CallerNumber string
}

// Session represents one active phone call's voice bridge. TenantID and
// CallSID are immutable after creation; socket handles and state are
// mutated only by the bridge goroutines that own the session.
type Session struct {
	ID        string
	TenantID  string
	CallSID   string
	Config    Config
	CreatedAt time.Time

	mu            sync.Mutex
	state         State
	streamSID     string
	telephonyConn io.Closer
	upstreamConn  io.Closer
	lastActivity  time.Time
}

// sessionIDNamespace keeps session IDs deterministic per call so that both
// legs of a call derive the same identifier.
var sessionIDNamespace = uuid.MustParse("8f3c1c6a-55d4-4f2e-9c7b-2d1a6a0e4b11")

// DeriveID computes the deterministic session identifier for a call.
func DeriveID(callSID string) string {
	return uuid.NewSHA1(sessionIDNamespace, []byte(callSID)).String()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next and reports whether the move is a
// legal forward step. States never move backwards.
func (s *Session) Transition(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stateRank(next) <= stateRank(s.state) {
		return false
	}
	s.state = next
	return true
}

func stateRank(st State) int {
	switch st {
	case StateAwaitingStart:
		return 0
	case StateStreaming:
		return 1
	case StateClosing:
		return 2
	case StateClosed:
		return 3
	default:
		return -1
	}
}

func (s *Session) SetStreamSID(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = sid
}

func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

func (s *Session) SetTelephonyConn(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telephonyConn = c
}

func (s *Session) SetUpstreamConn(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upstreamConn = c
}

// Touch records telephony-side activity for idle-timeout accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now().UTC()
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// CloseConns closes both socket handles. Safe to call more than once; nil
// handles are skipped.
func (s *Session) CloseConns() {
	s.mu.Lock()
	telephony := s.telephonyConn
	upstream := s.upstreamConn
	s.telephonyConn = nil
	s.upstreamConn = nil
	s.state = StateClosed
	s.mu.Unlock()

	if upstream != nil {
		_ = upstream.Close()
	}
	if telephony != nil {
		_ = telephony.Close()
	}
}
