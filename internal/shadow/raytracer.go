package shadow

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/du-phan/apero-soleil/internal/raster"
	"github.com/du-phan/apero-soleil/internal/solar"
)

// Result is the outcome of tracing one ray. When Sunlit is false because
// of an obstruction, the obstruction fields describe the first (nearest)
// blocking sample. LeftCoverage reports that at least one sample along
// the ray fell outside raster coverage and was treated as open sky, so a
// sunlit result there is not positively confirmed by data.
type Result struct {
	Sunlit            bool
	Distance          float64
	ObstructionHeight float64
	ObstructionLat    float64
	ObstructionLon    float64
	RayHeight         float64
	LeftCoverage      bool
}

// Raytracer marches rays from terraces toward the sun across a DSM.
type Raytracer struct {
	grid    *raster.Grid
	step    float64
	maxDist float64
}

// NewRaytracer creates a raytracer sampling every step meters out to
// maxDist meters.
func NewRaytracer(grid *raster.Grid, step, maxDist float64) *Raytracer {
	return &Raytracer{grid: grid, step: step, maxDist: maxDist}
}

// Trace determines whether a straight ray from origin (at baseHeight
// meters) toward the sun clears the DSM. The march heads along the sun's
// azimuth; at distance d the ray sits at baseHeight + d*tan(altitude).
// The first DSM sample reaching the ray height wins: nearer obstructions
// dominate, and an exact tie counts as shade. Samples outside raster
// coverage are open sky.
func (rt *Raytracer) Trace(origin orb.Point, baseHeight float64, sun solar.Position) Result {
	if !sun.Up() {
		// Below the horizon there is no direct light to obstruct.
		return Result{Sunlit: false}
	}

	tanAlt := math.Tan(sun.Altitude * math.Pi / 180)
	res := Result{Sunlit: true}

	for d := rt.step; d <= rt.maxDist; d += rt.step {
		p := geo.PointAtBearingAndDistance(origin, sun.Azimuth, d)
		rayHeight := baseHeight + d*tanAlt

		h, ok := rt.grid.SamplePoint(p)
		if !ok {
			res.LeftCoverage = true
			continue
		}
		if h >= rayHeight {
			return Result{
				Sunlit:            false,
				Distance:          d,
				ObstructionHeight: h,
				ObstructionLat:    p.Lat(),
				ObstructionLon:    p.Lon(),
				RayHeight:         rayHeight,
				LeftCoverage:      res.LeftCoverage,
			}
		}
	}
	return res
}
