// Package server wires the Huma API, the Datastar sidebar, metrics and the
// viewer page onto one mux.
package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-risk/internal/api"
	"github.com/joeblew999/plat-risk/internal/api/sidebar"
	"github.com/joeblew999/plat-risk/internal/humastar"
	"github.com/joeblew999/plat-risk/internal/service"
	"github.com/joeblew999/plat-risk/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Path to web/ directory for static files and fragment overrides

	Atlas  *service.AtlasService
	DB     *sql.DB // nil when DuckDB is unavailable
	Logger *slog.Logger
}

// Server is the plat-risk HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	services *api.Services
	renderer *templates.Renderer
	logger   *slog.Logger
}

// New creates a new server.
func New(cfg Config) *Server {
	mux := http.NewServeMux()
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	humaConfig := huma.DefaultConfig("plat-risk API", api.Version)
	humaConfig.Info.Description = "Risk atlas API: choropleth and point layers joined from tabular sources, " +
		"a layer switcher with legend, and the DuckDB feature index."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, humastar.LinkTransformer(api.Links))

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
		services: &api.Services{
			Atlas:   cfg.Atlas,
			DB:      cfg.DB,
			DataDir: cfg.DataDir,
		},
		renderer: loadRenderer(cfg.WebDir, logger),
		logger:   logger,
	}
	s.routes()
	return s
}

// loadRenderer prefers fragments under webDir/templates/fragments so the
// sidebar markup can be edited without a rebuild.
func loadRenderer(webDir string, logger *slog.Logger) *templates.Renderer {
	if webDir != "" {
		dir := filepath.Join(webDir, "templates", "fragments")
		if _, err := os.Stat(dir); err == nil {
			r, err := templates.NewFS(os.DirFS(dir), "*.html")
			if err == nil {
				logger.Info("loaded fragment templates", "dir", dir)
				return r
			}
			logger.Warn("fragment templates invalid, using embedded", "dir", dir, "error", err)
		}
	}
	return templates.Must()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	// REST API (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)

	// Sidebar SSE routes using Huma + Datastar SDK
	sidebar.New(s.config.Atlas, s.renderer).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", promhttp.Handler())

	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	status := "loading"
	if _, err := s.config.Atlas.Current(); err == nil {
		status = "running"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-risk",
		"status":  status,
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir == "" {
		http.NotFound(w, r)
		return
	}
	templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
	http.ServeFile(w, r, templatePath)
}
