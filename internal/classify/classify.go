// Package classify assembles per-slot sunlit classifications into the
// interchange artifact consumed by the serving layer: a GeoJSON
// FeatureCollection with one Point feature per terrace and one boolean
// property per time-slot key.
package classify

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/du-phan/apero-soleil/internal/shadow"
	"github.com/du-phan/apero-soleil/internal/terrace"
)

// SlotResult is the classification of one terrace at one time slot.
// Sunlit is the final value after the weather filter; Geometric is the
// pure ray-vs-terrain result before it.
type SlotResult struct {
	Slot      string
	Sunlit    bool
	Geometric bool
	CloudPct  float64
	Trace     shadow.Result
}

// TerraceResult bundles a terrace with its full day of slot results.
// Exactly one exists per successfully resolved terrace.
type TerraceResult struct {
	Terrace terrace.Terrace
	Slots   []SlotResult
}

// BuildFeatureCollection groups results into the output artifact.
// Features are sorted by terrace id so repeated runs over identical
// inputs serialize to identical bytes. With verbose set, shaded slots
// carry obstruction diagnostics alongside the boolean.
func BuildFeatureCollection(results []TerraceResult, verbose bool) *geojson.FeatureCollection {
	sorted := make([]TerraceResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Terrace.ID < sorted[j].Terrace.ID
	})

	fc := geojson.NewFeatureCollection()
	for _, r := range sorted {
		f := geojson.NewFeature(orb.Point{r.Terrace.Lon, r.Terrace.Lat})
		f.Properties["id"] = r.Terrace.ID
		for _, s := range r.Slots {
			f.Properties[s.Slot] = s.Sunlit
			if verbose && !s.Sunlit && s.Trace.Distance > 0 {
				f.Properties[s.Slot+"_dist"] = round2(s.Trace.Distance)
				f.Properties[s.Slot+"_obstH"] = round2(s.Trace.ObstructionHeight)
				f.Properties[s.Slot+"_obstLat"] = s.Trace.ObstructionLat
				f.Properties[s.Slot+"_obstLon"] = s.Trace.ObstructionLon
				f.Properties[s.Slot+"_rayH"] = round2(s.Trace.RayHeight)
			}
		}
		fc.Append(f)
	}
	return fc
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
