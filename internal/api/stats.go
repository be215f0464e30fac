package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/du-phan/apero-soleil/internal/db"
)

// StatsHandler serves aggregated classification data out of the
// diagnostics store: per-terrace sunlight stats for a run date and the
// raw per-slot rows behind them.
type StatsHandler struct {
	store *db.Store
}

// NewStatsHandler creates a stats handler over the store.
func NewStatsHandler(store *db.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// RegisterRoutes registers stats routes with Huma.
func (h *StatsHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/runs/{date}/stats", h.GetStats, huma.OperationTags("runs"))
	huma.Get(api, "/api/v1/runs/{date}/terraces/{id}", h.GetTerraceSlots, huma.OperationTags("runs"))
}

type StatsInput struct {
	Date string `path:"date" doc:"Run date (YYYY-MM-DD)" example:"2026-06-20"`
}

type TerraceStatsBody struct {
	TerraceID   string `json:"terrace_id" doc:"Terrace identifier"`
	SunlitSlots int    `json:"sunlit_slots" doc:"Slots classified sunlit"`
	TotalSlots  int    `json:"total_slots" doc:"Slots evaluated"`
	FirstSunlit string `json:"first_sunlit,omitempty" doc:"Earliest sunlit slot key"`
	LastSunlit  string `json:"last_sunlit,omitempty" doc:"Latest sunlit slot key"`
}

type StatsOutput struct {
	Body struct {
		Date     string             `json:"date" doc:"Run date"`
		Terraces []TerraceStatsBody `json:"terraces" doc:"Per-terrace sunlight stats, ordered by ID"`
	}
}

// GetStats returns per-terrace sunlight stats for a run date.
func (h *StatsHandler) GetStats(ctx context.Context, input *StatsInput) (*StatsOutput, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("Diagnostics store not available")
	}

	stats, err := h.store.SlotStats(input.Date)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to query stats", err)
	}
	if len(stats) == 0 {
		return nil, huma.Error404NotFound("No classifications recorded for " + input.Date)
	}

	out := &StatsOutput{}
	out.Body.Date = input.Date
	out.Body.Terraces = make([]TerraceStatsBody, 0, len(stats))
	for _, st := range stats {
		out.Body.Terraces = append(out.Body.Terraces, TerraceStatsBody{
			TerraceID:   st.TerraceID,
			SunlitSlots: st.SunlitSlots,
			TotalSlots:  st.TotalSlots,
			FirstSunlit: st.FirstSunlit,
			LastSunlit:  st.LastSunlit,
		})
	}
	return out, nil
}

type TerraceSlotsInput struct {
	Date string `path:"date" doc:"Run date (YYYY-MM-DD)" example:"2026-06-20"`
	ID   string `path:"id" doc:"Terrace identifier" example:"cafe_de_flore"`
}

type SlotBody struct {
	Slot              string  `json:"slot" doc:"Slot key (tHHMM)" example:"t1230"`
	Sunlit            bool    `json:"sunlit" doc:"Final classification"`
	Geometric         bool    `json:"geometric" doc:"Classification before cloud cover"`
	CloudPct          float64 `json:"cloud_pct" doc:"Cloud cover percentage applied"`
	ObstructionDist   float64 `json:"obstruction_dist" doc:"Distance to the blocking cell in meters, 0 if unobstructed"`
	ObstructionHeight float64 `json:"obstruction_height" doc:"Height of the blocking cell in meters, 0 if unobstructed"`
}

type TerraceSlotsOutput struct {
	Body struct {
		Date      string     `json:"date" doc:"Run date"`
		TerraceID string     `json:"terrace_id" doc:"Terrace identifier"`
		Slots     []SlotBody `json:"slots" doc:"Per-slot classifications in slot order"`
	}
}

// GetTerraceSlots returns one terrace's per-slot classifications for a
// run date.
func (h *StatsHandler) GetTerraceSlots(ctx context.Context, input *TerraceSlotsInput) (*TerraceSlotsOutput, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("Diagnostics store not available")
	}

	rows, err := h.store.TerraceSlots(input.Date, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to query terrace slots", err)
	}
	if len(rows) == 0 {
		return nil, huma.Error404NotFound("No classifications for " + input.ID + " on " + input.Date)
	}

	out := &TerraceSlotsOutput{}
	out.Body.Date = input.Date
	out.Body.TerraceID = input.ID
	out.Body.Slots = make([]SlotBody, 0, len(rows))
	for _, row := range rows {
		out.Body.Slots = append(out.Body.Slots, SlotBody{
			Slot:              row.Slot,
			Sunlit:            row.Sunlit,
			Geometric:         row.Geometric,
			CloudPct:          row.CloudPct,
			ObstructionDist:   row.ObstructionDist,
			ObstructionHeight: row.ObstructionHeight,
		})
	}
	return out, nil
}
