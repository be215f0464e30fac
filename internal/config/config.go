// Package config defines the engine configuration: every tunable the
// pipeline needs, loadable from a YAML file with flag overrides on top.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine holds all configuration for a batch run. Zero values are not
// usable; start from Default() and override.
type Engine struct {
	// Inputs
	DSMPath      string `yaml:"dsmPath"`
	RegistryPath string `yaml:"registryPath"`

	// Target day and slot grid
	Date         string        `yaml:"date"`     // YYYY-MM-DD
	Timezone     string        `yaml:"timezone"` // IANA name, slots are wall-clock in this zone
	SlotStart    string        `yaml:"slotStart"`
	SlotEnd      string        `yaml:"slotEnd"`
	SlotInterval time.Duration `yaml:"slotInterval"`

	// Raytracing
	StepDistance float64 `yaml:"stepDistance"` // meters between ray samples
	MaxDistance  float64 `yaml:"maxDistance"`  // meters, horizon cutoff
	BufferRadius float64 `yaml:"bufferRadius"` // meters, height resolution neighborhood

	// Weather
	CloudThreshold float64 `yaml:"cloudThreshold"` // percent, above this sunlit becomes shaded
	CloudFile      string  `yaml:"cloudFile"`      // optional local hourly cloud-cover file
	WeatherBaseURL string  `yaml:"weatherBaseURL"`

	// Reference point for solar position and cloud cover (city center).
	RefLat float64 `yaml:"refLat"`
	RefLon float64 `yaml:"refLon"`

	// Execution
	Workers    int    `yaml:"workers"` // 0 = NumCPU
	OutputPath string `yaml:"outputPath"`
	DuckDBPath string `yaml:"duckdbPath"` // optional diagnostics store
	Verbose    bool   `yaml:"verbose"`    // emit per-slot obstruction diagnostics
}

// Default returns the engine configuration with the documented defaults:
// Paris city center, 09:00-21:00 slots every 30 minutes, 1 m ray steps up
// to 300 m, a 2 m height buffer and a 75% cloud-cover threshold.
func Default() Engine {
	return Engine{
		Date:           time.Now().Format("2006-01-02"),
		Timezone:       "Europe/Paris",
		SlotStart:      "09:00",
		SlotEnd:        "21:00",
		SlotInterval:   30 * time.Minute,
		StepDistance:   1.0,
		MaxDistance:    300.0,
		BufferRadius:   2.0,
		CloudThreshold: 75.0,
		WeatherBaseURL: "https://api.open-meteo.com/v1/forecast",
		RefLat:         48.8566,
		RefLon:         2.3522,
		OutputPath:     "terraces.geojson",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Engine, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration describes a runnable batch.
func (e *Engine) Validate() error {
	if e.DSMPath == "" {
		return fmt.Errorf("dsmPath is required")
	}
	if e.RegistryPath == "" {
		return fmt.Errorf("registryPath is required")
	}
	if _, err := time.Parse("2006-01-02", e.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", e.Date, err)
	}
	if _, err := time.LoadLocation(e.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}
	if e.StepDistance <= 0 {
		return fmt.Errorf("stepDistance must be positive, got %g", e.StepDistance)
	}
	if e.MaxDistance < e.StepDistance {
		return fmt.Errorf("maxDistance %g is smaller than stepDistance %g", e.MaxDistance, e.StepDistance)
	}
	if e.BufferRadius < 0 {
		return fmt.Errorf("bufferRadius must not be negative, got %g", e.BufferRadius)
	}
	if e.CloudThreshold < 0 || e.CloudThreshold > 100 {
		return fmt.Errorf("cloudThreshold must be within 0-100, got %g", e.CloudThreshold)
	}
	if e.SlotInterval <= 0 {
		return fmt.Errorf("slotInterval must be positive, got %s", e.SlotInterval)
	}
	if e.OutputPath == "" {
		return fmt.Errorf("outputPath is required")
	}
	if _, err := e.Slots(); err != nil {
		return err
	}
	return nil
}
