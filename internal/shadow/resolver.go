// Package shadow determines whether a terrace has a clear line to the
// sun: it resolves a representative ground height for each terrace and
// raytraces from there against the DSM.
package shadow

import (
	"fmt"

	"github.com/du-phan/apero-soleil/internal/raster"
	"github.com/du-phan/apero-soleil/internal/terrace"
)

// OutOfCoverageError marks a terrace whose buffer neighborhood has no
// raster coverage. The terrace is excluded from the run and counted,
// never silently defaulted.
type OutOfCoverageError struct {
	TerraceID string
	Lat, Lon  float64
}

func (e *OutOfCoverageError) Error() string {
	return fmt.Sprintf("terrace %q (%.5f, %.5f) is outside DSM coverage", e.TerraceID, e.Lat, e.Lon)
}

// HeightResolver estimates a terrace's ground height from the DSM.
type HeightResolver struct {
	grid   *raster.Grid
	radius float64
}

// NewHeightResolver creates a resolver sampling within radius meters of
// each terrace point.
func NewHeightResolver(grid *raster.Grid, radius float64) *HeightResolver {
	return &HeightResolver{grid: grid, radius: radius}
}

// Resolve returns the minimum height within the buffer around the
// terrace point. Registry coordinates are imprecise and often land on a
// building footprint; the minimum biases toward the adjacent street
// level rather than the roof.
func (r *HeightResolver) Resolve(t terrace.Terrace) (float64, error) {
	heights := r.grid.CellsWithin(t.Lat, t.Lon, r.radius)
	if h, ok := r.grid.Sample(t.Lat, t.Lon); ok {
		heights = append(heights, h)
	}
	if len(heights) == 0 {
		return 0, &OutOfCoverageError{TerraceID: t.ID, Lat: t.Lat, Lon: t.Lon}
	}

	minH := heights[0]
	for _, h := range heights[1:] {
		if h < minH {
			minH = h
		}
	}
	return minH, nil
}
