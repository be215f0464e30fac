package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/du-phan/apero-soleil/internal/db"
)

func writeArtifact(t *testing.T) string {
	t.Helper()

	fc := geojson.NewFeatureCollection()

	paris := geojson.NewFeature(orb.Point{2.3522, 48.8566})
	paris.Properties["id"] = "cafe_de_flore"
	paris.Properties["t1200"] = true
	fc.Append(paris)

	suburb := geojson.NewFeature(orb.Point{2.4500, 48.9000})
	suburb.Properties["id"] = "terrasse_banlieue"
	suburb.Properties["t1200"] = false
	fc.Append(suburb)

	data, err := fc.MarshalJSON()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "terraces.geojson")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{Host: "localhost", Port: "0", ArtifactPath: writeArtifact(t)})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestTerracesAll(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/terraces", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestTerracesBoundingBox(t *testing.T) {
	s := newTestServer(t)

	// A box around central Paris excludes the suburb terrace.
	url := "/api/v1/terraces?swLng=2.30&swLat=48.80&neLng=2.40&neLat=48.90"
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "cafe_de_flore", fc.Features[0].Properties["id"])
}

func TestTerracesBadBoundingBox(t *testing.T) {
	s := newTestServer(t)

	for _, url := range []string{
		"/api/v1/terraces?swLng=2.30",
		"/api/v1/terraces?swLng=abc&swLat=48.80&neLng=2.40&neLat=48.90",
		"/api/v1/terraces?swLng=2.40&swLat=48.80&neLng=2.30&neLat=48.90",
	} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestTerraceByID(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/terraces/cafe_de_flore", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	f, err := geojson.UnmarshalFeature(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, true, f.Properties["t1200"])

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/terraces/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerracesArtifactMissing(t *testing.T) {
	s := New(Config{Host: "localhost", Port: "0", ArtifactPath: filepath.Join(t.TempDir(), "absent.geojson")})
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/terraces", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunsFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(db.RunRecord{
		Date:            "2026-06-20",
		ComputedAt:      time.Now().UTC(),
		Terraces:        2,
		Processed:       2,
		SunlitSlots:     40,
		WeatherAdjusted: true,
		OutputPath:      "terraces.geojson",
	}, nil))
	require.NoError(t, store.Close())

	s := New(Config{Host: "localhost", Port: "0", ArtifactPath: writeArtifact(t), DuckDBPath: dbPath})
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []struct {
			Date      string `json:"date"`
			Processed int    `json:"processed"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "2026-06-20", body.Runs[0].Date)
	assert.Equal(t, 2, body.Runs[0].Processed)
}

func TestStatsFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(db.RunRecord{
		Date:       "2026-06-20",
		ComputedAt: time.Now().UTC(),
		Terraces:   2,
		Processed:  2,
	}, []db.ClassificationRow{
		{Date: "2026-06-20", TerraceID: "cafe_de_flore", Slot: "t1200", Sunlit: true, Geometric: true, CloudPct: 5},
		{Date: "2026-06-20", TerraceID: "cafe_de_flore", Slot: "t1230", Sunlit: false, Geometric: false, ObstructionDist: 14, ObstructionHeight: 22},
		{Date: "2026-06-20", TerraceID: "terrasse_banlieue", Slot: "t1200", Sunlit: false, Geometric: true, CloudPct: 95},
	}))
	require.NoError(t, store.Close())

	s := New(Config{Host: "localhost", Port: "0", ArtifactPath: writeArtifact(t), DuckDBPath: dbPath})
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/2026-06-20/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Date     string `json:"date"`
		Terraces []struct {
			TerraceID   string `json:"terrace_id"`
			SunlitSlots int    `json:"sunlit_slots"`
			TotalSlots  int    `json:"total_slots"`
			FirstSunlit string `json:"first_sunlit"`
		} `json:"terraces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "2026-06-20", stats.Date)
	require.Len(t, stats.Terraces, 2)
	assert.Equal(t, "cafe_de_flore", stats.Terraces[0].TerraceID)
	assert.Equal(t, 1, stats.Terraces[0].SunlitSlots)
	assert.Equal(t, 2, stats.Terraces[0].TotalSlots)
	assert.Equal(t, "t1200", stats.Terraces[0].FirstSunlit)
	assert.Equal(t, 0, stats.Terraces[1].SunlitSlots)

	// A date with no classifications is a 404.
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/2026-06-21/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/2026-06-20/terraces/cafe_de_flore", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var slots struct {
		TerraceID string `json:"terrace_id"`
		Slots     []struct {
			Slot            string  `json:"slot"`
			Sunlit          bool    `json:"sunlit"`
			ObstructionDist float64 `json:"obstruction_dist"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	assert.Equal(t, "cafe_de_flore", slots.TerraceID)
	require.Len(t, slots.Slots, 2)
	assert.True(t, slots.Slots[0].Sunlit)
	assert.Equal(t, 14.0, slots.Slots[1].ObstructionDist)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/2026-06-20/terraces/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerStartsWithoutStore(t *testing.T) {
	// An unopenable store path degrades to running without diagnostics
	// rather than failing startup.
	bad := filepath.Join(t.TempDir(), "missing", "nested", "runs.db")
	s := New(Config{Host: "localhost", Port: "0", ArtifactPath: writeArtifact(t), DuckDBPath: bad})
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []json.RawMessage `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Runs)
}

func TestInfoCountsTerraces(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Name     string `json:"name"`
		Terraces int    `json:"terraces"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "apero-soleil", body.Name)
	assert.Equal(t, 2, body.Terraces)
}
