package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-quake/internal/api"
	"github.com/joeblew999/plat-quake/internal/api/viewer"
	"github.com/joeblew999/plat-quake/internal/db"
	"github.com/joeblew999/plat-quake/internal/service"
	"github.com/joeblew999/plat-quake/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host string
	Port string

	// EarthquakesURL and PlatesURL are reported by /api/v1/info.
	EarthquakesURL string
	PlatesURL      string
}

// Deps are the components the server exposes.
type Deps struct {
	Composer *service.Composer
	Catalog  *db.Catalog // optional
	Renderer *templates.Renderer
	Gatherer prometheus.Gatherer // optional, /metrics is skipped without it
	Logger   *slog.Logger
}

// Server is the earthquake map HTTP server.
type Server struct {
	config  Config
	deps    Deps
	mux     *http.ServeMux
	humaAPI huma.API
}

// New creates a new server.
func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-quake API", api.Version)
	humaConfig.Info.Description = "Recent earthquakes styled by magnitude and depth over tectonic plate boundaries."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)
	humaAPI.UseMiddleware(requestLogger(deps.Logger))

	s := &Server{
		config:  cfg,
		deps:    deps,
		mux:     mux,
		humaAPI: humaAPI,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.deps.Catalog != nil {
		return s.deps.Catalog.Close()
	}
	return nil
}

func (s *Server) routes() {
	// REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{
		Composer: s.deps.Composer,
		Logger:   s.deps.Logger,
	}))
	api.NewInfoHandler(api.Version, s.deps.Catalog != nil, s.config.EarthquakesURL, s.config.PlatesURL).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.deps.Catalog).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	if s.deps.Renderer != nil {
		viewer.NewEventHandler(s.deps.Composer, s.deps.Renderer, s.deps.Logger).RegisterRoutes(s.humaAPI)
		s.mux.HandleFunc("GET /viewer", s.handleViewer)
	}

	if s.deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-quake",
		"status":  "running",
		"phase":   string(s.deps.Composer.Phase()),
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	v, ok := s.deps.Composer.View()
	if !ok {
		p := s.deps.Composer.Profile()
		v = service.View{
			Phase:      service.PhaseInitial,
			Center:     p.Center,
			Zoom:       p.Zoom,
			BaseLayers: p.BaseLayers,
			ActiveBase: p.DefaultBase,
			Overlays:   []service.Overlay{},
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.deps.Renderer.Execute(w, "viewer", map[string]any{
		"Title": "Earthquakes and Tectonic Plates",
		"View":  v,
	}); err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "render viewer", "error", err)
	}
}

func requestLogger(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		next(ctx)
		logger.DebugContext(ctx.Context(), "request",
			"method", ctx.Method(),
			"path", ctx.URL().Path,
			"status", ctx.Status(),
			"duration", time.Since(start),
		)
	}
}
