// Package terrace loads the terrace registry: the static set of points
// the engine classifies. The registry is an external collaborator; the
// engine only reads it.
package terrace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Terrace is a point of interest with a stable identifier (a
// human-readable address in this domain). ResolvedHeight is filled in
// once per run by the height resolver and never mutated afterwards.
type Terrace struct {
	ID             string
	Lat            float64
	Lon            float64
	ResolvedHeight float64
}

// Point returns the terrace location as an orb point ([lon, lat]).
func (t Terrace) Point() orb.Point {
	return orb.Point{t.Lon, t.Lat}
}

// LoadRegistry reads the terrace registry at path. GeoJSON feature
// collections (.geojson, .json) and CSV files (id,lat,lon with a header
// row) are supported.
func LoadRegistry(path string) ([]Terrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading terrace registry %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(strings.NewReader(string(data)))
	default:
		return parseGeoJSON(data)
	}
}

func parseGeoJSON(data []byte) ([]Terrace, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing registry geojson: %w", err)
	}

	terraces := make([]Terrace, 0, len(fc.Features))
	for i, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("registry feature %d: geometry is %T, want Point", i, f.Geometry)
		}
		id := propertyID(f)
		if id == "" {
			return nil, fmt.Errorf("registry feature %d: missing id property", i)
		}
		terraces = append(terraces, Terrace{ID: id, Lat: point.Lat(), Lon: point.Lon()})
	}
	return terraces, nil
}

func propertyID(f *geojson.Feature) string {
	if s := f.Properties.MustString("id", ""); s != "" {
		return s
	}
	if s, ok := f.ID.(string); ok {
		return s
	}
	return ""
}

func parseCSV(r io.Reader) ([]Terrace, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing registry csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("registry csv has no data rows")
	}

	// First row is the header.
	var terraces []Terrace
	for i, rec := range records[1:] {
		if len(rec) < 3 {
			return nil, fmt.Errorf("registry csv row %d: want id,lat,lon, got %d columns", i+2, len(rec))
		}
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("registry csv row %d: invalid latitude %q", i+2, rec[1])
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("registry csv row %d: invalid longitude %q", i+2, rec[2])
		}
		terraces = append(terraces, Terrace{ID: rec[0], Lat: lat, Lon: lon})
	}
	return terraces, nil
}
