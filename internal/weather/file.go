package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FileProvider serves hourly cloud cover from a local JSON file, for
// offline and reproducible runs. Expected shape:
//
//	{"date": "2026-08-30", "cloudCover": [24 hourly percentages]}
type FileProvider struct {
	path string
}

// NewFileProvider creates a provider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Name() string { return "file" }

// HourlyCloudCover reads the file and returns the series for the date.
// A date mismatch is a lookup failure, not silent reuse of stale data.
func (p *FileProvider) HourlyCloudCover(ctx context.Context, lat, lon float64, date time.Time) ([]HourlyCloud, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, &LookupError{Provider: p.Name(), Err: err}
	}

	var payload struct {
		Date       string    `json:"date"`
		CloudCover []float64 `json:"cloudCover"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &LookupError{Provider: p.Name(), Err: err}
	}

	day := date.UTC().Format("2006-01-02")
	if payload.Date != day {
		return nil, &LookupError{Provider: p.Name(), Err: fmt.Errorf("file covers %s, run date is %s", payload.Date, day)}
	}
	if len(payload.CloudCover) != 24 {
		return nil, &LookupError{Provider: p.Name(), Err: fmt.Errorf("want 24 hourly values, got %d", len(payload.CloudCover))}
	}

	midnight, err := time.Parse("2006-01-02", day)
	if err != nil {
		return nil, &LookupError{Provider: p.Name(), Err: err}
	}

	series := make([]HourlyCloud, 24)
	for h := range series {
		series[h] = HourlyCloud{Hour: midnight.Add(time.Duration(h) * time.Hour), CoverPct: payload.CloudCover[h]}
	}
	return series, nil
}
