package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Registry is the process-wide table of active call sessions, keyed by
// call SID. It is the only mutable structure shared across bridges.
type Registry struct {
	mu          sync.RWMutex
	byCall      map[string]*Session
	idleTimeout time.Duration
	onExpire    func(*Session)
}

func NewRegistry(idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = 2 * time.Minute
	}
	return &Registry{
		byCall:      make(map[string]*Session),
		idleTimeout: idleTimeout,
	}
}

// SetExpireHook installs a callback fired after the janitor reclaims an
// idle session.
func (r *Registry) SetExpireHook(hook func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = hook
}

// Create registers a session for callSID, or returns the existing one.
// Both legs of a call may race to create; the first writer wins and later
// callers get the same session object with the original config.
func (r *Registry) Create(callSID, tenantID string, cfg Config) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byCall[callSID]; ok {
		return existing
	}
	now := time.Now().UTC()
	s := &Session{
		ID:           DeriveID(callSID),
		TenantID:     tenantID,
		CallSID:      callSID,
		Config:       cfg,
		CreatedAt:    now,
		state:        StateAwaitingStart,
		lastActivity: now,
	}
	r.byCall[callSID] = s
	return s
}

func (r *Registry) Get(callSID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCall[callSID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes the session for callSID without touching its sockets.
// The owning bridge closes them before calling Remove.
func (r *Registry) Remove(callSID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byCall, callSID)
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCall)
}

// ShutdownAll closes every owned socket handle and clears the table. Called
// on process shutdown so no open sockets survive the registry.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byCall))
	for _, s := range r.byCall {
		sessions = append(sessions, s)
	}
	r.byCall = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.CloseConns()
	}
}

// StartJanitor reclaims sessions with no telephony-side activity inside the
// idle window. Runs until ctx is cancelled.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireIdle()
			}
		}
	}()
}

func (r *Registry) expireIdle() {
	now := time.Now().UTC()
	var expired []*Session

	r.mu.Lock()
	for callSID, s := range r.byCall {
		if now.Sub(s.LastActivity()) < r.idleTimeout {
			continue
		}
		delete(r.byCall, callSID)
		expired = append(expired, s)
	}
	hook := r.onExpire
	r.mu.Unlock()

	for _, s := range expired {
		s.Transition(StateClosing)
		s.CloseConns()
		if hook != nil {
			hook(s)
		}
	}
}
