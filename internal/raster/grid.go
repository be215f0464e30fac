// Package raster implements the digital surface model (DSM) the engine
// raytraces against: a read-only grid of height samples with a simple
// single-file container format and a local lat/lon georeferencing
// transform anchored at the grid's north-west corner.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// earthRadius matches the sphere paulmach/orb's geo package measures
// distances on, so marching with geo.PointAtBearingAndDistance and
// indexing back into the grid agree with each other.
const earthRadius = 6378137.0

// metersPerDegreeLat is the north-south extent of one degree of latitude.
const metersPerDegreeLat = 2 * math.Pi * earthRadius / 360

// Header describes a DSM grid: its dimensions, the lat/lon of the
// north-west corner, the cell size in meters and the sentinel used for
// cells with no measurement. Heights are meters above the reference datum
// and include buildings and vegetation.
type Header struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	OriginLat float64 `json:"originLat"` // latitude of the NW corner
	OriginLon float64 `json:"originLon"` // longitude of the NW corner
	CellSize  float64 `json:"cellSize"`  // meters per cell edge
	NoData    float64 `json:"noData"`
	Label     string  `json:"label,omitempty"`
}

// Grid is a loaded DSM. It is immutable after construction and safe for
// concurrent reads.
type Grid struct {
	hdr         Header
	cells       []float32
	mPerDegLon  float64
	noDataIsNaN bool
}

// New builds a grid from a header and row-major cells (row 0 is the
// northernmost row).
func New(hdr Header, cells []float32) (*Grid, error) {
	if hdr.Width <= 0 || hdr.Height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", hdr.Width, hdr.Height)
	}
	if hdr.CellSize <= 0 {
		return nil, fmt.Errorf("invalid cell size %g", hdr.CellSize)
	}
	if len(cells) != hdr.Width*hdr.Height {
		return nil, fmt.Errorf("grid %dx%d wants %d cells, got %d", hdr.Width, hdr.Height, hdr.Width*hdr.Height, len(cells))
	}
	return &Grid{
		hdr:         hdr,
		cells:       cells,
		mPerDegLon:  metersPerDegreeLat * math.Cos(hdr.OriginLat*math.Pi/180),
		noDataIsNaN: math.IsNaN(hdr.NoData),
	}, nil
}

// Header returns a copy of the grid header.
func (g *Grid) Header() Header { return g.hdr }

// SetLabel stores a free-form label in the header. Meant for use at
// import time, before the grid is shared.
func (g *Grid) SetLabel(label string) { g.hdr.Label = label }

// CellIndex converts a lat/lon to grid column/row. ok is false when the
// position falls outside the grid extent.
func (g *Grid) CellIndex(lat, lon float64) (col, row int, ok bool) {
	col = int(math.Floor((lon - g.hdr.OriginLon) * g.mPerDegLon / g.hdr.CellSize))
	row = int(math.Floor((g.hdr.OriginLat - lat) * metersPerDegreeLat / g.hdr.CellSize))
	if col < 0 || col >= g.hdr.Width || row < 0 || row >= g.hdr.Height {
		return col, row, false
	}
	return col, row, true
}

// At returns the height at a cell. ok is false for out-of-bounds cells
// and cells holding the no-data sentinel.
func (g *Grid) At(col, row int) (float64, bool) {
	if col < 0 || col >= g.hdr.Width || row < 0 || row >= g.hdr.Height {
		return 0, false
	}
	v := float64(g.cells[row*g.hdr.Width+col])
	if g.noDataIsNaN {
		if math.IsNaN(v) {
			return 0, false
		}
	} else if v == g.hdr.NoData {
		return 0, false
	}
	return v, true
}

// Sample returns the height at a lat/lon position. ok is false outside
// the grid extent or on a no-data cell.
func (g *Grid) Sample(lat, lon float64) (float64, bool) {
	col, row, ok := g.CellIndex(lat, lon)
	if !ok {
		return 0, false
	}
	return g.At(col, row)
}

// SamplePoint is Sample for an orb point ([lon, lat]).
func (g *Grid) SamplePoint(p orb.Point) (float64, bool) {
	return g.Sample(p.Lat(), p.Lon())
}

// Contains reports whether a lat/lon falls within the grid extent.
func (g *Grid) Contains(lat, lon float64) bool {
	_, _, ok := g.CellIndex(lat, lon)
	return ok
}

// Bound returns the geographic extent of the grid.
func (g *Grid) Bound() orb.Bound {
	spanLat := float64(g.hdr.Height) * g.hdr.CellSize / metersPerDegreeLat
	spanLon := float64(g.hdr.Width) * g.hdr.CellSize / g.mPerDegLon
	return orb.Bound{
		Min: orb.Point{g.hdr.OriginLon, g.hdr.OriginLat - spanLat},
		Max: orb.Point{g.hdr.OriginLon + spanLon, g.hdr.OriginLat},
	}
}

// CellsWithin returns the heights of all valid cells whose center lies
// within radius meters of the given position. The result excludes
// no-data cells; an empty result means the neighborhood has no raster
// coverage at all.
func (g *Grid) CellsWithin(lat, lon, radius float64) []float64 {
	// Candidate window in cell space, then filter by center distance.
	span := int(math.Ceil(radius/g.hdr.CellSize)) + 1
	centerCol := (lon - g.hdr.OriginLon) * g.mPerDegLon / g.hdr.CellSize
	centerRow := (g.hdr.OriginLat - lat) * metersPerDegreeLat / g.hdr.CellSize

	var heights []float64
	for row := int(centerRow) - span; row <= int(centerRow)+span; row++ {
		for col := int(centerCol) - span; col <= int(centerCol)+span; col++ {
			dx := (float64(col) + 0.5 - centerCol) * g.hdr.CellSize
			dy := (float64(row) + 0.5 - centerRow) * g.hdr.CellSize
			if math.Hypot(dx, dy) > radius {
				continue
			}
			if h, ok := g.At(col, row); ok {
				heights = append(heights, h)
			}
		}
	}
	return heights
}
