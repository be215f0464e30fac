// Package server wires the HTTP API over the published classification
// artifact and the optional diagnostics store.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"

	"github.com/du-phan/apero-soleil/internal/api"
	"github.com/du-phan/apero-soleil/internal/db"
	"github.com/du-phan/apero-soleil/internal/service"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	ArtifactPath string // published GeoJSON artifact
	DuckDBPath   string // optional diagnostics store
}

// Server is the apero-soleil HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	humaAPI  huma.API
	store    *db.Store
	services *api.Services
}

// New creates a new server over the artifact at cfg.ArtifactPath.
func New(cfg Config) *Server {
	mux := http.NewServeMux()

	// Huma API with the humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("apero-soleil API", "1.0.0")
	humaConfig.Info.Description = "Per-terrace, per-slot sunlight classification for Paris terraces."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = []huma.Transformer{api.LinkTransformer()}

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humaAPI,
	}

	// The diagnostics store is optional; the artifact endpoints work
	// without it.
	if cfg.DuckDBPath != "" {
		store, err := db.Open(cfg.DuckDBPath)
		if err != nil {
			slog.Warn("diagnostics store unavailable, continuing without it",
				"path", cfg.DuckDBPath, "error", err)
		} else {
			s.store = store
		}
	}

	s.services = &api.Services{
		Terrace: service.NewTerraceService(cfg.ArtifactPath),
		Store:   s.store,
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)

	infoHandler := api.NewInfoHandler(s.config.ArtifactPath, s.store != nil, s.services)
	infoHandler.RegisterRoutes(s.humaAPI)

	if s.store != nil {
		statsHandler := api.NewStatsHandler(s.store)
		statsHandler.RegisterRoutes(s.humaAPI)
	}

	// GeoJSON endpoints stay on the plain mux: the artifact is served
	// verbatim rather than re-described through OpenAPI schemas.
	s.mux.HandleFunc("GET /api/v1/terraces", s.handleTerraces)
	s.mux.HandleFunc("GET /api/v1/terraces/{id}", s.handleTerrace)

	s.mux.HandleFunc("/", s.handleRoot)
}

// handleTerraces serves the artifact, optionally filtered to a
// bounding box given as swLng, swLat, neLng, neLat query parameters.
func (s *Server) handleTerraces(w http.ResponseWriter, r *http.Request) {
	bound, err := parseBound(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fc, err := s.services.Terrace.List(bound)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (s *Server) handleTerrace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f, ok, err := s.services.Terrace.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !ok {
		http.Error(w, "terrace not found", http.StatusNotFound)
		return
	}

	data, err := f.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(data)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "apero-soleil",
		"status":  "running",
	})
}

// parseBound reads the four bbox query parameters. All four must be
// present together; none at all means no filtering.
func parseBound(r *http.Request) (*orb.Bound, error) {
	q := r.URL.Query()
	keys := []string{"swLng", "swLat", "neLng", "neLat"}

	present := 0
	vals := make([]float64, len(keys))
	for i, k := range keys {
		raw := q.Get(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", k, raw)
		}
		vals[i] = v
		present++
	}

	switch present {
	case 0:
		return nil, nil
	case len(keys):
		b := orb.Bound{
			Min: orb.Point{vals[0], vals[1]},
			Max: orb.Point{vals[2], vals[3]},
		}
		if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
			return nil, fmt.Errorf("bounding box is inverted")
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("bounding box needs all of swLng, swLat, neLng, neLat")
	}
}
