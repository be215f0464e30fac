// Package service holds the read-side services backing the HTTP API.
package service

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TerraceService serves the published classification artifact. The
// artifact is reloaded when its modification time changes, so a fresh
// batch run becomes visible without restarting the server.
type TerraceService struct {
	path string

	mu      sync.RWMutex
	fc      *geojson.FeatureCollection
	byID    map[string]*geojson.Feature
	modTime time.Time
}

// NewTerraceService creates a service over the artifact at path. The
// file may not exist yet; loading is retried on every request.
func NewTerraceService(path string) *TerraceService {
	return &TerraceService{path: path}
}

// List returns the features inside bound, or every feature when bound
// is nil. The returned collection shares features with the loaded
// artifact; callers must not mutate them.
func (s *TerraceService) List(bound *orb.Bound) (*geojson.FeatureCollection, error) {
	if err := s.refresh(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := geojson.NewFeatureCollection()
	for _, f := range s.fc.Features {
		if bound != nil {
			pt, ok := f.Geometry.(orb.Point)
			if !ok || !bound.Contains(pt) {
				continue
			}
		}
		out.Append(f)
	}
	return out, nil
}

// Get returns the feature for one terrace id.
func (s *TerraceService) Get(id string) (*geojson.Feature, bool, error) {
	if err := s.refresh(); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.byID[id]
	return f, ok, nil
}

// Count returns the number of loaded terraces.
func (s *TerraceService) Count() (int, error) {
	if err := s.refresh(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fc.Features), nil
}

// refresh reloads the artifact when it changed on disk.
func (s *TerraceService) refresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("artifact unavailable: %w", err)
	}

	s.mu.RLock()
	fresh := s.fc != nil && info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing artifact: %w", err)
	}

	byID := make(map[string]*geojson.Feature, len(fc.Features))
	for _, f := range fc.Features {
		if id, ok := f.Properties["id"].(string); ok {
			byID[id] = f
		}
	}

	s.mu.Lock()
	s.fc = fc
	s.byID = byID
	s.modTime = info.ModTime()
	s.mu.Unlock()
	return nil
}
