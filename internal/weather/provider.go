// Package weather supplies hourly cloud-cover data for the weather
// filter. Cloud cover is coarse: one value per hour for a single
// representative location, mapped onto the finer slot grid by
// nearest-hour lookup.
package weather

import (
	"context"
	"fmt"
	"time"
)

// HourlyCloud is the cloud-cover percentage for one hour of the target
// date.
type HourlyCloud struct {
	Hour     time.Time
	CoverPct float64
}

// Provider fetches hourly cloud cover for a date at a location.
type Provider interface {
	Name() string
	HourlyCloudCover(ctx context.Context, lat, lon float64, date time.Time) ([]HourlyCloud, error)
}

// LookupError wraps a provider failure. The engine recovers from it by
// treating the day as 0% cloud cover and flagging the run as
// weather-unadjusted.
type LookupError struct {
	Provider string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("cloud cover lookup via %s failed: %v", e.Provider, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NearestHour returns the cloud cover for the hour closest to t, or 0
// when the series is empty.
func NearestHour(series []HourlyCloud, t time.Time) float64 {
	if len(series) == 0 {
		return 0
	}
	best := series[0]
	bestDiff := absDuration(t.Sub(series[0].Hour))
	for _, s := range series[1:] {
		if d := absDuration(t.Sub(s.Hour)); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best.CoverPct
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
