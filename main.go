package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"

	"github.com/skiffterm/skiff/internal/audit"
	"github.com/skiffterm/skiff/internal/capacity"
	"github.com/skiffterm/skiff/internal/config"
	"github.com/skiffterm/skiff/internal/handlers"
	"github.com/skiffterm/skiff/internal/logging"
	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/session"
)

func main() {
	config.Load()
	logging.Init()

	store, err := serverstore.Open(config.Cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Server store init: %v", err)
	}
	defer store.Close()

	if config.Cfg.ServersFile != "" {
		if _, err := store.ImportSeedFile(config.Cfg.ServersFile); err != nil {
			log.Printf("WARNING: server seed import: %v", err)
		}
	}

	auditor, err := audit.NewAuditor(store.DB(), config.Cfg.AuditRetentionDays)
	if err != nil {
		log.Fatalf("Audit log init: %v", err)
	}

	baseDelay, err := time.ParseDuration(config.Cfg.ReconnectBaseDelay)
	if err != nil {
		baseDelay = session.DefaultReconnectBaseDelay
	}

	mgr := session.NewManager(session.Config{
		Store:                store,
		Factory:              session.NewHostFactory(),
		Capacity:             capacity.FixedQuota{Max: config.Cfg.MaxSessions},
		CacheCeiling:         config.Cfg.TerminalCacheSize,
		ScrollbackBytes:      config.Cfg.ScrollbackBytes,
		ReconnectBaseDelay:   baseDelay,
		ReconnectMaxAttempts: config.Cfg.ReconnectMaxAttempts,
		AutoReconnect:        true,
	})
	log.Printf("Session manager initialized (max_sessions=%d, cache=%d, backoff=%s, attempts=%d)",
		config.Cfg.MaxSessions, config.Cfg.TerminalCacheSize, baseDelay, config.Cfg.ReconnectMaxAttempts)

	mgr.OnStateChange(func(sessionID string, from, to session.ConnectionState) {
		log.Printf("[session] %s: %s -> %s", sessionID, from, to)
	})
	auditor.ObserveSessions(mgr)

	// Scheduled maintenance: audit retention purge and paused-surface sweep.
	sched := cron.New()
	if config.Cfg.AuditRetentionDays > 0 {
		sched.AddFunc("@daily", func() {
			if _, err := auditor.PurgeExpired(); err != nil {
				log.Printf("Audit purge: %v", err)
			}
		})
	}
	sched.AddFunc("@every 5m", func() {
		mgr.SweepPausedSurfaces()
	})
	sched.Start()
	defer sched.Stop()

	api := &handlers.API{
		Mgr:             mgr,
		Store:           store,
		Auditor:         auditor,
		ScrollbackBytes: config.Cfg.ScrollbackBytes,
	}

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/", api.Routes())

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	mgr.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
