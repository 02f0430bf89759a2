package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardelane/voicebridge/internal/bridge"
	"github.com/ardelane/voicebridge/internal/calllog"
	"github.com/ardelane/voicebridge/internal/config"
	"github.com/ardelane/voicebridge/internal/directory"
	"github.com/ardelane/voicebridge/internal/httpapi"
	"github.com/ardelane/voicebridge/internal/observability"
	"github.com/ardelane/voicebridge/internal/session"
	"github.com/ardelane/voicebridge/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	callLog, err := calllog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("call log init failed: %v", err)
	}
	defer callLog.Close()

	tokens, err := token.NewAuthority(cfg.TokenSigningSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token authority init failed: %v", err)
	}

	dir, err := directory.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeout)
	if err != nil {
		log.Fatalf("directory client init failed: %v", err)
	}

	registry := session.NewRegistry(cfg.SessionIdleTimeout)
	registry.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(registry.ActiveCount()))
	})

	dialer := &bridge.RealtimeDialer{
		URL:    cfg.RealtimeURL,
		Model:  cfg.RealtimeModel,
		APIKey: cfg.OpenAIAPIKey,
	}
	relay := bridge.New(registry, dialer, metrics, callLog,
		cfg.SessionIdleTimeout, cfg.FrameFailureLimit, cfg.FrameFailureWindow)

	api := httpapi.New(cfg, registry, relay, tokens, dir, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("voice bridge listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}
	registry.ShutdownAll()

	log.Printf("shutdown complete")
}
