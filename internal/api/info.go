package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	artifactPath string
	dbOK         bool
	svc          *Services
}

func NewInfoHandler(artifactPath string, dbOK bool, svc *Services) *InfoHandler {
	return &InfoHandler{artifactPath: artifactPath, dbOK: dbOK, svc: svc}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Artifact string   `json:"artifact" doc:"Published artifact path"`
	Terraces int      `json:"terraces" doc:"Terraces in the loaded artifact"`
	DB       bool     `json:"db" doc:"Whether the diagnostics store is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	count := 0
	if h.svc != nil && h.svc.Terrace != nil {
		if n, err := h.svc.Terrace.Count(); err == nil {
			count = n
		}
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "apero-soleil",
		Version:  "0.1.0",
		Artifact: h.artifactPath,
		Terraces: count,
		DB:       h.dbOK,
		Features: []string{"geojson", "raytracing", "cloudcover", "duckdb"},
	}}, nil
}
