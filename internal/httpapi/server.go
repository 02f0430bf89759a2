// Package httpapi exposes the bridge's control surface: the provider call
// webhook, the media stream upgrade endpoint, health, and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ardelane/voicebridge/internal/config"
	"github.com/ardelane/voicebridge/internal/directory"
	"github.com/ardelane/voicebridge/internal/observability"
	"github.com/ardelane/voicebridge/internal/session"
	"github.com/ardelane/voicebridge/internal/token"
	"github.com/ardelane/voicebridge/internal/twiml"
)

// ScopeStream is the capability-token scope accepted by the stream endpoint.
const ScopeStream = "stream"

// DirectoryLookup resolves a tenant's voice configuration.
type DirectoryLookup interface {
	VoiceConfig(ctx context.Context, tenantID string) (directory.VoiceConfig, error)
}

// StreamRunner relays one call; it blocks until the session ends.
type StreamRunner interface {
	Run(ctx context.Context, conn *websocket.Conn, s *session.Session)
}

type Server struct {
	cfg       config.Config
	registry  *session.Registry
	runner    StreamRunner
	tokens    *token.Authority
	directory DirectoryLookup
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
	startedAt time.Time

	// Aggregate counters mirrored onto /healthz so operators can check
	// rejection trends without scraping Prometheus.
	authFailures   atomic.Int64
	declinedSetups atomic.Int64
}

func New(cfg config.Config, registry *session.Registry, runner StreamRunner, tokens *token.Authority, dir DirectoryLookup, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		runner:    runner,
		tokens:    tokens,
		directory: dir,
		metrics:   metrics,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider's media stream client is not a browser and
			// sends no Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/voice/incoming", s.handleIncoming)
	r.Get("/voice/stream", s.handleStream)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	return r
}

// handleIncoming receives the provider's inbound-call webhook, resolves the
// tenant's voice configuration, and answers with call-control markup whose
// stream URL carries a freshly minted capability token. Any resolution
// failure degrades to spoken decline markup; the caller never gets silence.
func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", "malformed request body")
		return
	}

	if !s.cfg.DevAllowUnsigned {
		fullURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + r.URL.RequestURI()
		presented := r.Header.Get("X-Twilio-Signature")
		if !twiml.ValidateSignature(s.cfg.TwilioAuthToken, fullURL, r.PostForm, presented) {
			s.rejectAuth(w, "webhook_signature", errors.New("signature mismatch"))
			return
		}
	}

	callSID := strings.TrimSpace(r.PostFormValue("CallSid"))
	caller := strings.TrimSpace(r.PostFormValue("From"))
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenant"))
	if callSID == "" || tenantID == "" {
		respondError(w, http.StatusBadRequest, "missing_parameters", "CallSid and tenant are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DirectoryTimeout)
	defer cancel()
	vc, err := s.directory.VoiceConfig(ctx, tenantID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			log.Printf("call %s: tenant %s has no voice configuration", callSID, tenantID)
		} else {
			log.Printf("call %s: voice config lookup for tenant %s failed: %v", callSID, tenantID, err)
		}
		s.respondDecline(w, callSID)
		return
	}

	tok, err := s.tokens.Issue(tenantID, s.cfg.TokenTTL, ScopeStream)
	if err != nil {
		log.Printf("call %s: token mint failed: %v", callSID, err)
		s.respondDecline(w, callSID)
		return
	}

	streamURL, err := s.streamURL(callSID, caller, tok)
	if err != nil {
		log.Printf("call %s: stream url build failed: %v", callSID, err)
		s.respondDecline(w, callSID)
		return
	}

	greeting := vc.Greeting
	if greeting == "" {
		greeting = s.cfg.DefaultGreeting
	}
	markup, err := twiml.StreamCall(twiml.StreamCallParams{
		Greeting:  greeting,
		StreamURL: streamURL,
		Farewell:  s.cfg.FarewellText,
	})
	if err != nil {
		log.Printf("call %s: markup render failed: %v", callSID, err)
		s.respondDecline(w, callSID)
		return
	}

	s.metrics.SessionEvents.WithLabelValues("setup_accepted").Inc()
	log.Printf("call %s: setup accepted for tenant %s", callSID, tenantID)
	respondXML(w, markup)
}

// handleStream authorizes and upgrades the provider's media stream socket.
// The token is verified before the upgrade and before any upstream work so
// an invalid credential costs nothing but the check itself.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	claims, err := s.tokens.Verify(strings.TrimSpace(q.Get("token")), ScopeStream)
	if err != nil {
		s.rejectAuth(w, tokenFailureKind(err), err)
		return
	}

	callSID := strings.TrimSpace(q.Get("call"))
	if callSID == "" {
		respondError(w, http.StatusBadRequest, "missing_parameters", "call is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.DirectoryTimeout)
	vc, err := s.directory.VoiceConfig(ctx, claims.TenantID)
	cancel()
	if err != nil {
		log.Printf("call %s: voice config lookup at stream time failed: %v", callSID, err)
		respondError(w, http.StatusServiceUnavailable, "configuration_unavailable", "voice configuration unavailable")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := s.registry.Create(callSID, claims.TenantID, session.Config{
		Instructions: vc.Instructions,
		Voice:        vc.Voice,
		Functions:    vc.Functions,
		CallerNumber: strings.TrimSpace(q.Get("caller")),
	})
	s.metrics.ActiveSessions.Set(float64(s.registry.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	s.runner.Run(r.Context(), conn, sess)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"active_sessions": s.registry.ActiveCount(),
		"auth_failures":   s.authFailures.Load(),
		"declined_setups": s.declinedSetups.Load(),
	})
}

// rejectAuth logs the real failure cause and counts it, but the response is
// content-free: the peer cannot distinguish an expired token from a forged
// one.
func (s *Server) rejectAuth(w http.ResponseWriter, kind string, err error) {
	log.Printf("rejected request: %s: %v", kind, err)
	s.authFailures.Add(1)
	s.metrics.AuthFailures.WithLabelValues(kind).Inc()
	w.WriteHeader(http.StatusForbidden)
}

func (s *Server) respondDecline(w http.ResponseWriter, callSID string) {
	s.declinedSetups.Add(1)
	s.metrics.SessionEvents.WithLabelValues("setup_declined").Inc()
	markup, err := twiml.Decline(s.cfg.DeclineText)
	if err != nil {
		log.Printf("call %s: decline markup render failed: %v", callSID, err)
		respondError(w, http.StatusInternalServerError, "markup_failed", "could not render response")
		return
	}
	respondXML(w, markup)
}

// streamURL builds the wss URL the provider dials, carrying the call
// identifier, caller number, and capability token as query parameters.
func (s *Server) streamURL(callSID, caller, tok string) (string, error) {
	u, err := url.Parse(s.cfg.PublicBaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/voice/stream"
	q := url.Values{}
	q.Set("call", callSID)
	if caller != "" {
		q.Set("caller", caller)
	}
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func tokenFailureKind(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "token_expired"
	case errors.Is(err, token.ErrBadSignature):
		return "token_signature"
	case errors.Is(err, token.ErrScopeMismatch):
		return "token_scope"
	case errors.Is(err, token.ErrNotYetValid):
		return "token_not_yet_valid"
	default:
		return "token_malformed"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondXML(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(markup))
}
