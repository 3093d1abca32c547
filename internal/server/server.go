// Package server exposes the certificate generator over HTTP: a verify
// endpoint for the search page, a certificate download endpoint, and an
// admin endpoint for batch generation.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/certforge/certforge/internal/certify"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/fit"
	"github.com/certforge/certforge/internal/paths"
	"github.com/certforge/certforge/internal/roster"
)

// Server routes HTTP requests to the generator and roster.
type Server struct {
	cfg          *config.Config
	gen          *certify.Generator
	source       roster.Store
	dataDir      string
	templatesDir string
	log          *slog.Logger
}

// New creates a Server rooted at dataDir, which anchors the relative paths
// reported by the health endpoint and the templates directory.
func New(cfg *config.Config, gen *certify.Generator, source roster.Store, dataDir string, log *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		gen:          gen,
		source:       source,
		dataDir:      dataDir,
		templatesDir: paths.Resolve(dataDir, cfg.Server.TemplatesDir),
		log:          log.With("component", "server"),
	}
}

// Handler returns the full request handler with CORS and request logging
// applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /verify", s.handleVerify)
	mux.HandleFunc("GET /certificate", s.handleCertificate)
	mux.HandleFunc("/generate-all", s.handleGenerateAll)
	if s.templatesDir != "" {
		fs := http.FileServer(http.Dir(filepath.Join(s.templatesDir, "static")))
		mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
	}
	return s.logRequests(s.cors(mux))
}

// ///////////////////////////////////////////////
// Handlers
// ///////////////////////////////////////////////

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templatesDir != "" {
		index := filepath.Join(s.templatesDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("certforged is running. GET /verify?name=...&id=...\n"))
}

// handleHealth reports daemon status plus the resolved data paths and
// whether they exist, which makes misconfigured deployments diagnosable
// from a browser.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rosterPath := paths.Resolve(s.dataDir, s.cfg.Roster.Path)
	templatePath := paths.Resolve(s.dataDir, s.cfg.Output.Template)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"paths": map[string]any{
			"roster":           rosterPath,
			"roster_exists":    fileExists(rosterPath),
			"template":         templatePath,
			"template_exists":  fileExists(templatePath),
			"certificates_dir": s.gen.Store().Dir(),
		},
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// handleVerify reports whether a registrant exists without generating
// anything. The search page polls this before offering the download.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	name, id := r.FormValue("name"), r.FormValue("id")
	if name == "" || id == "" {
		writeError(w, http.StatusBadRequest, "name and id are required")
		return
	}
	profile, err := s.cfg.ResolveProfile(r.FormValue("profile"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.source.Lookup(r.Context(), name, id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":          true,
		"certificate_id": roster.CertificateID(profile.IDPrefix, rec.ID),
		"record": map[string]string{
			"name":   rec.Name,
			"id":     rec.ID,
			"email":  rec.Email,
			"course": rec.Course,
			"code":   rec.Code,
		},
	})
}

// handleCertificate generates (or serves the cached) certificate and
// streams it as a download.
func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	name, id := r.FormValue("name"), r.FormValue("id")
	if name == "" || id == "" {
		writeError(w, http.StatusBadRequest, "name and id are required")
		return
	}
	profile := r.FormValue("profile")
	if _, err := s.cfg.ResolveProfile(profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	force := r.FormValue("force") == "1" || r.FormValue("force") == "true"

	doc, err := s.gen.Generate(r.Context(), name, id, profile, force)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	switch doc.Ext {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
	default:
		w.Header().Set("Content-Type", "image/png")
	}
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+doc.CertificateID+"."+doc.Ext+`"`)
	http.ServeFile(w, r, doc.Path)
}

// handleGenerateAll renders certificates for every roster record. When an
// admin key is configured the admin_key form value (or X-Admin-Key header)
// must match it.
func (s *Server) handleGenerateAll(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusForbidden, "invalid admin key")
		return
	}
	profile := r.FormValue("profile")
	force := r.FormValue("force") == "1" || r.FormValue("force") == "true"

	sum, err := s.gen.GenerateAll(r.Context(), profile, force)
	if err != nil {
		if errors.Is(err, roster.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) authorized(r *http.Request) bool {
	want := s.cfg.Server.AdminKey
	if want == "" {
		return true
	}
	got := r.FormValue("admin_key")
	if got == "" {
		got = r.Header.Get("X-Admin-Key")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// ///////////////////////////////////////////////
// Responses
// ///////////////////////////////////////////////

// writeLookupError maps pipeline errors to HTTP statuses: unknown
// registrant 404, unreachable roster 503, anything else (blank roster
// name, font or render failures) 500.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roster.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"found": false, "error": "registrant not found"})
	case errors.Is(err, roster.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "record source unavailable")
	case errors.Is(err, fit.ErrEmptyText):
		writeError(w, http.StatusInternalServerError, "registrant record has no name to place")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "certificate generation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ///////////////////////////////////////////////
// Middleware
// ///////////////////////////////////////////////

// cors applies the configured origin allowlist. "*" allows any origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.cfg.Server.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"ms", time.Since(start).Milliseconds())
	})
}
