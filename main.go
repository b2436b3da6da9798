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

	"phishguard/ai"
	"phishguard/archive"
	"phishguard/config"
	"phishguard/server"
	"phishguard/store"
	"phishguard/store/postgres"
	"phishguard/store/sqlite"
	"phishguard/vetting"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules := vetting.DefaultRules()
	if cfg.RulesPath != "" {
		r, err := vetting.LoadRules(cfg.RulesPath)
		if err != nil {
			log.Fatalf("[Config] rules: %v", err)
		}
		rules = r
		log.Printf("[Config] rules loaded from %s", cfg.RulesPath)
	}

	text, vision := ai.NewProviders(cfg)
	deps := vetting.Deps{Rules: rules}
	if vision != nil {
		deps.Vision = &ai.VisionClassifier{Provider: vision}
	}
	if text != nil {
		deps.EmailAI = &ai.EmailClassifier{Provider: text}
	}
	scanner := vetting.NewScanner(cfg, deps)

	st := openStore(ctx, cfg)
	defer st.Close()

	var arc archive.Archiver
	if cfg.ArchiveEnabled() {
		c, err := archive.New(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3Bucket)
		if err == nil {
			err = c.EnsureBucket(ctx)
		}
		if err != nil {
			log.Printf("[Archive] ⚠️ disabled: %v", err)
		} else {
			arc = c
			log.Printf("[Archive] uploads go to %s/%s", cfg.S3Endpoint, cfg.S3Bucket)
		}
	}

	srv := server.New(scanner, st, &ai.Explainer{Provider: text}, ai.NewAssistant(text), arc, server.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowOrigins:   cfg.AllowOrigins,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	log.Printf("✅ phishguard listening on :%s", cfg.Port)
	log.Println("📍 Endpoints:")
	log.Println("   POST /api/scan                 - URL scan")
	log.Println("   POST /api/qr/scan              - QR code scan")
	log.Println("   POST /api/email/analyze        - Email analysis")
	log.Println("   POST /api/screenshot/analyze   - Screenshot analysis")
	log.Println("   GET  /api/history, /api/stats  - Scan history")
	log.Println("   POST /api/ai-assistant/chat    - Security assistant")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Printf("shutting down on %s", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openStore prefers Postgres, then SQLite, then memory.
func openStore(ctx context.Context, cfg config.Config) store.Store {
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[Store] postgres: %v", err)
		}
		return db
	}
	s, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Printf("[Store] ⚠️ sqlite unavailable, history is kept in memory: %v", err)
		return store.NewMemoryStore()
	}
	return s
}
