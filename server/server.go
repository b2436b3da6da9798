// Package server is the JSON HTTP API in front of the scanner and the record
// store.
package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phishguard/ai"
	"phishguard/archive"
	"phishguard/store"
	"phishguard/vetting"
)

// Options are the HTTP-facing settings.
type Options struct {
	MaxUploadBytes int64
	// AllowOrigins is "*" or a comma separated origin list.
	AllowOrigins string
}

// Server owns the handlers. Archive and Assistant may be nil.
type Server struct {
	scanner   *vetting.Scanner
	store     store.Store
	explainer *ai.Explainer
	assistant *ai.Assistant
	archive   archive.Archiver
	opts      Options
}

func New(scanner *vetting.Scanner, st store.Store, explainer *ai.Explainer, assistant *ai.Assistant, arc archive.Archiver, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}
	if explainer == nil {
		explainer = &ai.Explainer{}
	}
	if assistant == nil {
		assistant = ai.NewAssistant(nil)
	}
	return &Server{
		scanner:   scanner,
		store:     st,
		explainer: explainer,
		assistant: assistant,
		archive:   arc,
		opts:      opts,
	}
}

// Routes returns the router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleScanURL)
		r.Get("/urlscan/{scanId}", s.handleURLScanResult)

		r.Get("/history", s.handleHistory)
		r.Delete("/history", s.handleDeleteAll)
		r.Get("/history/{id}", s.handleGetScan)
		r.Delete("/history/{id}", s.handleDeleteScan)
		r.Get("/history/{id}/report.pdf", s.handleReport)
		r.Get("/stats", s.handleStats)
		r.Get("/sources", s.handleSources)

		r.Post("/qr/scan", s.handleQRScan)
		r.Post("/email/analyze", s.handleEmail)
		r.Post("/screenshot/analyze", s.handleScreenshot)

		r.Post("/ai-assistant/start", s.handleChatStart)
		r.Post("/ai-assistant/chat", s.handleChat)
	})
	return r
}

// accessLog writes one line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf("[HTTP] %s %s %d %s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	if strings.TrimSpace(s.opts.AllowOrigins) == "*" {
		return "*"
	}
	for _, o := range strings.Split(s.opts.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Printf("[Store] ⚠️ health ping failed: %v", err)
		sendJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Message: "Store unavailable", Error: err.Error()})
		return
	}
	sendOK(w, "OK", map[string]any{"status": "healthy", "time": time.Now().UTC()})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sendOK(w, "Configured sources", s.scanner.Sources())
}
