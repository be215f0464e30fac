package raster

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseASCIIGrid reads an ESRI ASCII grid (.asc). Only the matrix,
// dimensions and nodata sentinel are taken from the file; ASCII grids
// georeference in projected units, so the caller supplies the NW corner
// lat/lon and the cell size in meters.
func ParseASCIIGrid(r io.Reader, originLat, originLon, cellSize float64) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	hdr := Header{
		OriginLat: originLat,
		OriginLon: originLon,
		CellSize:  cellSize,
		NoData:    -9999,
	}

	var cells []float32
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		// Header lines are "key value" pairs; anything else is matrix data.
		if len(fields) == 2 {
			key := strings.ToLower(fields[0])
			switch key {
			case "ncols", "nrows":
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("ascii grid %s: %w", key, err)
				}
				if key == "ncols" {
					hdr.Width = n
				} else {
					hdr.Height = n
				}
				continue
			case "nodata_value":
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					return nil, fmt.Errorf("ascii grid nodata_value: %w", err)
				}
				hdr.NoData = v
				continue
			case "xllcorner", "yllcorner", "cellsize", "xllcenter", "yllcenter":
				// Projected georeferencing, replaced by the caller's values.
				continue
			}
		}

		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("ascii grid cell %q: %w", field, err)
			}
			cells = append(cells, float32(v))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ascii grid: %w", err)
	}

	return New(hdr, cells)
}
