// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/du-phan/apero-soleil/internal/db"
	"github.com/du-phan/apero-soleil/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Terrace *service.TerraceService
	Store   *db.Store
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type RunBody struct {
	Date            string    `json:"date" doc:"Run date (YYYY-MM-DD)" example:"2026-06-20"`
	ComputedAt      time.Time `json:"computed_at" doc:"When the run finished"`
	Terraces        int       `json:"terraces" doc:"Terraces in the registry"`
	Processed       int       `json:"processed" doc:"Terraces classified"`
	OutOfCoverage   int       `json:"out_of_coverage" doc:"Terraces outside the DSM extent"`
	Failed          int       `json:"failed" doc:"Terraces that failed for other reasons"`
	SunlitSlots     int       `json:"sunlit_slots" doc:"Total sunlit (terrace, slot) pairs"`
	WeatherAdjusted bool      `json:"weather_adjusted" doc:"Whether cloud cover was applied"`
	OutputPath      string    `json:"output_path" doc:"Published artifact path"`
}

type RunsOutput struct {
	Body struct {
		Runs []RunBody `json:"runs" doc:"Recorded runs, most recent first"`
	}
}

// RegisterRoutes registers all REST API routes.
func RegisterRoutes(humaAPI huma.API, svc *Services) {
	huma.AutoRegister(humaAPI, NewAPIHandler(svc))
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterRuns registers run history routes.
func (h *APIHandler) RegisterRuns(api huma.API) {
	huma.Get(api, "/api/v1/runs", h.GetRuns, huma.OperationTags("runs"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetRuns(ctx context.Context, input *struct{}) (*RunsOutput, error) {
	out := &RunsOutput{}
	out.Body.Runs = []RunBody{}
	if h.svc == nil || h.svc.Store == nil {
		return out, nil
	}

	runs, err := h.svc.Store.ListRuns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list runs", err)
	}
	for _, r := range runs {
		out.Body.Runs = append(out.Body.Runs, RunBody{
			Date:            r.Date,
			ComputedAt:      r.ComputedAt,
			Terraces:        r.Terraces,
			Processed:       r.Processed,
			OutOfCoverage:   r.OutOfCoverage,
			Failed:          r.Failed,
			SunlitSlots:     r.SunlitSlots,
			WeatherAdjusted: r.WeatherAdjusted,
			OutputPath:      r.OutputPath,
		})
	}
	return out, nil
}
