package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bridge.
type Config struct {
	BindAddr           string
	PublicBaseURL      string
	ShutdownTimeout    time.Duration
	SessionIdleTimeout time.Duration
	MetricsNamespace   string

	OpenAIAPIKey  string
	RealtimeURL   string
	RealtimeModel string

	TokenSigningSecret string
	TokenTTL           time.Duration

	TwilioAuthToken  string
	DevAllowUnsigned bool

	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	DatabaseURL string

	DefaultGreeting string
	FarewellText    string
	DeclineText     string

	FrameFailureLimit  int
	FrameFailureWindow time.Duration
}

// Load reads environment variables and applies safe defaults. Missing
// required credentials are a fatal configuration error: the process must
// refuse to start rather than run unauthenticated.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		PublicBaseURL:      envOrDefault("APP_PUBLIC_BASE_URL", "http://localhost:8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "voicebridge"),
		RealtimeURL:        envOrDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:      envOrDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		OpenAIAPIKey:       envTrimmed("OPENAI_API_KEY"),
		TokenSigningSecret: envTrimmed("TOKEN_SIGNING_SECRET"),
		TwilioAuthToken:    envTrimmed("TWILIO_AUTH_TOKEN"),
		DirectoryBaseURL:   envTrimmed("DIRECTORY_BASE_URL"),
		DatabaseURL:        envTrimmed("DATABASE_URL"),
		DefaultGreeting:    envOrDefault("APP_DEFAULT_GREETING", ""),
		FarewellText:       envOrDefault("APP_FAREWELL_TEXT", "Thank you for calling. Goodbye."),
		DeclineText:        envOrDefault("APP_DECLINE_TEXT", "We are sorry, this line is currently unavailable. Please try again later."),
		ShutdownTimeout:    15 * time.Second,
		SessionIdleTimeout: 2 * time.Minute,
		TokenTTL:           90 * time.Second,
		DirectoryTimeout:   5 * time.Second,
		FrameFailureLimit:  10,
		FrameFailureWindow: 10 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("APP_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL, err = durationFromEnv("APP_TOKEN_TTL", cfg.TokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.DirectoryTimeout, err = durationFromEnv("DIRECTORY_TIMEOUT", cfg.DirectoryTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameFailureLimit, err = intFromEnv("APP_FRAME_FAILURE_LIMIT", cfg.FrameFailureLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.FrameFailureWindow, err = durationFromEnv("APP_FRAME_FAILURE_WINDOW", cfg.FrameFailureWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.DevAllowUnsigned, err = boolFromEnv("APP_DEV_ALLOW_UNSIGNED", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.TokenSigningSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SIGNING_SECRET is required")
	}
	if cfg.TwilioAuthToken == "" && !cfg.DevAllowUnsigned {
		return Config{}, fmt.Errorf("TWILIO_AUTH_TOKEN is required (set APP_DEV_ALLOW_UNSIGNED=true to skip webhook signature checks in development)")
	}
	if cfg.DirectoryBaseURL == "" {
		return Config{}, fmt.Errorf("DIRECTORY_BASE_URL is required")
	}
	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.TokenTTL < 10*time.Second || cfg.TokenTTL > 10*time.Minute {
		return Config{}, fmt.Errorf("APP_TOKEN_TTL must be between 10s and 10m")
	}
	if cfg.FrameFailureLimit <= 0 {
		return Config{}, fmt.Errorf("APP_FRAME_FAILURE_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
