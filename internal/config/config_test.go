package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TOKEN_SIGNING_SECRET", "signing-secret")
	t.Setenv("TWILIO_AUTH_TOKEN", "twilio-token")
	t.Setenv("DIRECTORY_BASE_URL", "http://directory.internal")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Errorf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.SessionIdleTimeout != 2*time.Minute {
		t.Errorf("SessionIdleTimeout = %v, want 2m", cfg.SessionIdleTimeout)
	}
	if cfg.TokenTTL != 90*time.Second {
		t.Errorf("TokenTTL = %v, want 90s", cfg.TokenTTL)
	}
	if cfg.RealtimeModel == "" {
		t.Errorf("RealtimeModel should have a default")
	}
}

func TestLoadFailsWithoutRequiredSecrets(t *testing.T) {
	cases := []string{"OPENAI_API_KEY", "TOKEN_SIGNING_SECRET", "TWILIO_AUTH_TOKEN", "DIRECTORY_BASE_URL"}
	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() should fail without %s", missing)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Fatalf("error %q does not name %s", err, missing)
			}
		})
	}
}

func TestLoadDevAllowUnsigned(t *testing.T) {
	setRequired(t)
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("APP_DEV_ALLOW_UNSIGNED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.DevAllowUnsigned {
		t.Fatalf("DevAllowUnsigned = false, want true")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_SESSION_IDLE_TIMEOUT", "1s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject idle timeout below 5s")
	}

	setRequired(t)
	t.Setenv("APP_SESSION_IDLE_TIMEOUT", "")
	t.Setenv("APP_TOKEN_TTL", "1h")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject token TTL above 10m")
	}

	setRequired(t)
	t.Setenv("APP_TOKEN_TTL", "")
	t.Setenv("APP_FRAME_FAILURE_LIMIT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() should reject malformed int")
	}
}
