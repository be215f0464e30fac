package classify

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// WriteGeoJSON serializes the collection to path atomically: the bytes
// land in a temp file in the destination directory and are renamed into
// place, so a failed write never leaves a truncated artifact and the
// batch work is only committed whole.
func WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("serializing feature collection: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp output in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing output %s: %w", path, err)
	}
	return nil
}
