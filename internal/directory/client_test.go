package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestVoiceConfigLookup(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/tenants/org_1/voice-config" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(VoiceConfig{
			TenantID:     "org_1",
			DisplayName:  "Acme Dental",
			Instructions: "You answer phones for Acme Dental.",
			Greeting:     "Thanks for calling Acme Dental.",
		})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	cfg, err := c.VoiceConfig(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("VoiceConfig() error = %v", err)
	}
	if cfg.DisplayName != "Acme Dental" {
		t.Fatalf("DisplayName = %q, want Acme Dental", cfg.DisplayName)
	}
}

func TestVoiceConfigNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c, _ := NewClient(ts.URL, time.Second)
	if _, err := c.VoiceConfig(context.Background(), "org_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestVoiceConfigEmptyInstructionsIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(VoiceConfig{TenantID: "org_1"})
	}))
	defer ts.Close()

	c, _ := NewClient(ts.URL, time.Second)
	if _, err := c.VoiceConfig(context.Background(), "org_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestVoiceConfigRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(VoiceConfig{
			TenantID:     "org_1",
			Instructions: "You answer phones.",
		})
	}))
	defer ts.Close()

	c, _ := NewClient(ts.URL, time.Second)
	cfg, err := c.VoiceConfig(context.Background(), "org_1")
	if err != nil {
		t.Fatalf("VoiceConfig() error = %v", err)
	}
	if cfg.Instructions == "" {
		t.Fatalf("missing instructions after retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestVoiceConfigDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c, _ := NewClient(ts.URL, time.Second)
	if _, err := c.VoiceConfig(context.Background(), "org_1"); err == nil {
		t.Fatalf("expected error on 403")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}
