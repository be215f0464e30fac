// Package engine orchestrates the batch pipeline: load inputs, build
// the per-slot sun and cloud tables once, fan the terrace list out to
// workers, reduce the results and publish the GeoJSON artifact.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/du-phan/apero-soleil/internal/classify"
	"github.com/du-phan/apero-soleil/internal/config"
	"github.com/du-phan/apero-soleil/internal/db"
	"github.com/du-phan/apero-soleil/internal/raster"
	"github.com/du-phan/apero-soleil/internal/shadow"
	"github.com/du-phan/apero-soleil/internal/solar"
	"github.com/du-phan/apero-soleil/internal/terrace"
	"github.com/du-phan/apero-soleil/internal/weather"
)

// Run-level error kinds. Per-terrace failures never carry these; they
// are isolated at the worker boundary and only counted.
var (
	// ErrInputNotFound marks a missing or unreadable DSM or registry.
	ErrInputNotFound = errors.New("input not found")
	// ErrSerialization marks a failure to publish the output artifact.
	ErrSerialization = errors.New("serialization failed")
)

// Summary is the run-level report.
type Summary struct {
	Date            string
	Slots           int
	Terraces        int
	Processed       int
	OutOfCoverage   int
	Failed          int
	SunlitSlots     int
	CoverageGaps    int
	WeatherAdjusted bool
	Window          solar.DayWindow
	Duration        time.Duration
	OutputPath      string
}

// Engine runs the classification batch.
type Engine struct {
	cfg      config.Engine
	log      *slog.Logger
	provider weather.Provider
}

// New creates an engine. A nil provider selects the configured cloud
// file when present, the Open-Meteo API otherwise.
func New(cfg config.Engine, log *slog.Logger, provider weather.Provider) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if provider == nil {
		if cfg.CloudFile != "" {
			provider = weather.NewFileProvider(cfg.CloudFile)
		} else {
			provider = weather.NewOpenMeteoProvider(&http.Client{Timeout: 15 * time.Second}, cfg.WeatherBaseURL)
		}
	}
	return &Engine{cfg: cfg, log: log, provider: provider}
}

// Run executes one batch: every registry terrace against every slot of
// the target date. Per-terrace failures are isolated and counted; only
// input loading and output publishing abort the run.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	terraces, err := terrace.LoadRegistry(e.cfg.RegistryPath)
	if err != nil {
		return nil, inputError(err)
	}
	grid, err := raster.Load(e.cfg.DSMPath)
	if err != nil {
		return nil, inputError(err)
	}
	hdr := grid.Header()
	e.log.Info("inputs loaded",
		"terraces", len(terraces),
		"dsm", e.cfg.DSMPath,
		"grid", fmt.Sprintf("%dx%d@%gm", hdr.Width, hdr.Height, hdr.CellSize))

	slots, err := e.cfg.Slots()
	if err != nil {
		return nil, err
	}

	// Sun position and cloud cover depend only on time, never on terrace
	// identity: both tables are computed once, before the parallel phase.
	positions := make([]solar.Position, len(slots))
	for i, s := range slots {
		positions[i] = solar.PositionAt(e.cfg.RefLat, e.cfg.RefLon, s.Time)
	}
	clouds, weatherAdjusted := e.cloudTable(ctx, slots)

	summary := &Summary{
		Date:            e.cfg.Date,
		Slots:           len(slots),
		Terraces:        len(terraces),
		WeatherAdjusted: weatherAdjusted,
		OutputPath:      e.cfg.OutputPath,
	}

	day, _ := time.Parse("2006-01-02", e.cfg.Date)
	if window, err := solar.Window(e.cfg.RefLat, e.cfg.RefLon, day); err != nil {
		e.log.Warn("day window unavailable", "error", err)
	} else {
		summary.Window = window
		e.log.Info("day window",
			"sunrise", window.Sunrise.Format(time.TimeOnly),
			"sunset", window.Sunset.Format(time.TimeOnly))
	}

	resolver := shadow.NewHeightResolver(grid, e.cfg.BufferRadius)
	tracer := shadow.NewRaytracer(grid, e.cfg.StepDistance, e.cfg.MaxDistance)

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex
	results := make([]classify.TerraceResult, 0, len(terraces))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, tr := range terraces {
		tr := tr
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			height, err := resolver.Resolve(tr)
			if err != nil {
				mu.Lock()
				var ooc *shadow.OutOfCoverageError
				if errors.As(err, &ooc) {
					summary.OutOfCoverage++
					e.log.Warn("terrace outside DSM coverage", "terrace", tr.ID)
				} else {
					summary.Failed++
					e.log.Warn("terrace failed", "terrace", tr.ID, "error", err)
				}
				mu.Unlock()
				// Isolated: siblings keep running.
				return nil
			}
			tr.ResolvedHeight = height

			slotResults := make([]classify.SlotResult, len(slots))
			sunlit, gaps := 0, 0
			for i, s := range slots {
				res := e.classifySlot(tracer, tr, positions[i], clouds[i])
				res.Slot = s.Key
				slotResults[i] = res
				if res.Sunlit {
					sunlit++
				}
				if res.Trace.LeftCoverage {
					gaps++
				}
			}

			mu.Lock()
			results = append(results, classify.TerraceResult{Terrace: tr, Slots: slotResults})
			summary.Processed++
			summary.SunlitSlots += sunlit
			summary.CoverageGaps += gaps
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fc := classify.BuildFeatureCollection(results, e.cfg.Verbose)
	if err := classify.WriteGeoJSON(e.cfg.OutputPath, fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	if e.cfg.DuckDBPath != "" {
		if err := e.persist(results, summary); err != nil {
			// Diagnostics sink only; the artifact is already published.
			e.log.Warn("duckdb persistence failed", "error", err)
		}
	}

	summary.Duration = time.Since(start)
	e.log.Info("run complete",
		"date", summary.Date,
		"processed", summary.Processed,
		"outOfCoverage", summary.OutOfCoverage,
		"failed", summary.Failed,
		"sunlitSlots", summary.SunlitSlots,
		"weatherAdjusted", summary.WeatherAdjusted,
		"duration", summary.Duration)
	return summary, nil
}

// classifySlot produces one slot classification: night is definitively
// shaded without raytracing, and the weather filter only ever downgrades
// a geometrically sunlit slot.
func (e *Engine) classifySlot(tracer *shadow.Raytracer, tr terrace.Terrace, pos solar.Position, cloudPct float64) classify.SlotResult {
	if !pos.Up() {
		return classify.SlotResult{Sunlit: false, Geometric: false, CloudPct: cloudPct}
	}

	trace := tracer.Trace(tr.Point(), tr.ResolvedHeight, pos)
	return classify.SlotResult{
		Sunlit:    trace.Sunlit && cloudPct <= e.cfg.CloudThreshold,
		Geometric: trace.Sunlit,
		CloudPct:  cloudPct,
		Trace:     trace,
	}
}

// cloudTable maps the provider's hourly series onto the slot grid. A
// lookup failure falls back to 0% cover for every slot and marks the
// run weather-unadjusted instead of failing terraces.
func (e *Engine) cloudTable(ctx context.Context, slots []config.Slot) ([]float64, bool) {
	clouds := make([]float64, len(slots))

	day, _ := time.Parse("2006-01-02", e.cfg.Date)
	series, err := e.provider.HourlyCloudCover(ctx, e.cfg.RefLat, e.cfg.RefLon, day)
	if err != nil {
		e.log.Warn("cloud cover unavailable, output is weather-unadjusted",
			"provider", e.provider.Name(), "error", err)
		return clouds, false
	}

	for i, s := range slots {
		clouds[i] = weather.NearestHour(series, s.Time.UTC())
	}
	return clouds, true
}

func (e *Engine) persist(results []classify.TerraceResult, summary *Summary) error {
	store, err := db.Open(e.cfg.DuckDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	rows := make([]db.ClassificationRow, 0, len(results)*summary.Slots)
	for _, r := range results {
		for _, s := range r.Slots {
			rows = append(rows, db.ClassificationRow{
				Date:              e.cfg.Date,
				TerraceID:         r.Terrace.ID,
				Slot:              s.Slot,
				Sunlit:            s.Sunlit,
				Geometric:         s.Geometric,
				CloudPct:          s.CloudPct,
				ObstructionDist:   s.Trace.Distance,
				ObstructionHeight: s.Trace.ObstructionHeight,
			})
		}
	}

	return store.SaveRun(db.RunRecord{
		Date:            e.cfg.Date,
		ComputedAt:      time.Now().UTC(),
		Terraces:        summary.Terraces,
		Processed:       summary.Processed,
		OutOfCoverage:   summary.OutOfCoverage,
		Failed:          summary.Failed,
		SunlitSlots:     summary.SunlitSlots,
		WeatherAdjusted: summary.WeatherAdjusted,
		OutputPath:      summary.OutputPath,
	}, rows)
}

// inputError classifies loader failures: a missing file is the fatal
// InputNotFound kind, anything else passes through.
func inputError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrInputNotFound, err)
	}
	return err
}
