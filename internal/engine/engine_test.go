package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/du-phan/apero-soleil/internal/config"
	"github.com/du-phan/apero-soleil/internal/raster"
	"github.com/du-phan/apero-soleil/internal/shadow"
	"github.com/du-phan/apero-soleil/internal/solar"
	"github.com/du-phan/apero-soleil/internal/terrace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeFixtures lays down a flat 100x100 DSM around central Paris, a
// two-terrace registry (one inside coverage, one far outside) and a
// clear-sky cloud file for the given date.
func writeFixtures(t *testing.T, date string, clouds [24]float64) config.Engine {
	t.Helper()
	dir := t.TempDir()

	hdr := raster.Header{
		Width:     100,
		Height:    100,
		OriginLat: 48.8570,
		OriginLon: 2.3515,
		CellSize:  1,
		NoData:    -9999,
		Label:     "test flat",
	}
	grid, err := raster.New(hdr, make([]float32, hdr.Width*hdr.Height))
	require.NoError(t, err)

	dsmPath := filepath.Join(dir, "paris.dsm")
	require.NoError(t, raster.Write(dsmPath, grid))

	registryPath := filepath.Join(dir, "terraces.csv")
	registry := "id,lat,lon\nt1,48.8566,2.3522\nzz_far,40.0,3.0\n"
	require.NoError(t, os.WriteFile(registryPath, []byte(registry), 0o644))

	cloudPath := filepath.Join(dir, "clouds.json")
	payload, err := json.Marshal(map[string]any{"date": date, "cloudCover": clouds[:]})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cloudPath, payload, 0o644))

	cfg := config.Default()
	cfg.DSMPath = dsmPath
	cfg.RegistryPath = registryPath
	cfg.Date = date
	cfg.CloudFile = cloudPath
	cfg.OutputPath = filepath.Join(dir, "out.geojson")
	cfg.MaxDistance = 40
	cfg.Workers = 2
	return cfg
}

func readOutput(t *testing.T, path string) *geojson.FeatureCollection {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	return fc
}

func TestRunFlatSummerDay(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})

	summary, err := New(cfg, quietLogger(), nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Terraces)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.OutOfCoverage)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 25, summary.Slots)
	assert.True(t, summary.WeatherAdjusted)

	fc := readOutput(t, cfg.OutputPath)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "t1", f.Properties["id"])

	// Flat terrain, clear midsummer sky: every slot from 09:00 to 21:00
	// is daylight in Paris, so all 25 booleans are true.
	slots, err := cfg.Slots()
	require.NoError(t, err)
	require.Len(t, slots, 25)
	for _, s := range slots {
		v, ok := f.Properties[s.Key].(bool)
		require.True(t, ok, "missing slot %s", s.Key)
		assert.True(t, v, "slot %s should be sunlit", s.Key)
	}
}

func TestRunIdempotent(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})
	eng := New(cfg, quietLogger(), nil)

	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	_, err = eng.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated runs must serialize identical bytes")
}

func TestRunCloudDowngrade(t *testing.T) {
	// Full overcast at 12:00 and 13:00 UTC covers the 14:00-15:30 local
	// slots; geometry alone would leave them sunlit.
	var clouds [24]float64
	clouds[12] = 100
	clouds[13] = 100
	cfg := writeFixtures(t, "2026-06-20", clouds)

	summary, err := New(cfg, quietLogger(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.WeatherAdjusted)

	f := readOutput(t, cfg.OutputPath).Features[0]
	assert.Equal(t, false, f.Properties["t1400"], "overcast slot must be downgraded")
	assert.Equal(t, false, f.Properties["t1500"])
	assert.Equal(t, true, f.Properties["t1100"], "clear slot stays sunlit")
}

func TestRunWeatherFallback(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})
	cfg.CloudFile = filepath.Join(t.TempDir(), "missing.json")

	summary, err := New(cfg, quietLogger(), nil).Run(context.Background())
	require.NoError(t, err, "weather lookup failure must not fail the run")
	assert.False(t, summary.WeatherAdjusted)

	// Fallback is 0% cover: geometry alone decides.
	f := readOutput(t, cfg.OutputPath).Features[0]
	assert.Equal(t, true, f.Properties["t1200"])
}

func TestRunNightSlotsShaded(t *testing.T) {
	cfg := writeFixtures(t, "2026-12-21", [24]float64{})
	cfg.SlotStart = "17:00"
	cfg.SlotEnd = "21:00"

	summary, err := New(cfg, quietLogger(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SunlitSlots, "sun sets before 17:00 on the winter solstice")

	f := readOutput(t, cfg.OutputPath).Features[0]
	for _, key := range []string{"t1700", "t1800", "t1900", "t2000", "t2100"} {
		assert.Equal(t, false, f.Properties[key], "slot %s", key)
	}
}

func TestClassifySlotWeatherOnlyDowngrades(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})
	eng := New(cfg, quietLogger(), nil)

	grid, err := raster.Load(cfg.DSMPath)
	require.NoError(t, err)
	tracer := shadow.NewRaytracer(grid, cfg.StepDistance, cfg.MaxDistance)

	tr := terrace.Terrace{ID: "t1", Lat: 48.8566, Lon: 2.3522}
	noonSun := solar.Position{Azimuth: 180, Altitude: 60}

	// Flat terrain: geometrically sunlit. Exactly at the threshold stays
	// sunlit, above it is downgraded.
	res := eng.classifySlot(tracer, tr, noonSun, cfg.CloudThreshold)
	assert.True(t, res.Geometric)
	assert.True(t, res.Sunlit)

	res = eng.classifySlot(tracer, tr, noonSun, cfg.CloudThreshold+1)
	assert.True(t, res.Geometric)
	assert.False(t, res.Sunlit)

	// Night: clear skies never restore sun.
	res = eng.classifySlot(tracer, tr, solar.Position{Azimuth: 180, Altitude: -3}, 0)
	assert.False(t, res.Geometric)
	assert.False(t, res.Sunlit)
}

func TestRunMissingInputs(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})

	missing := cfg
	missing.DSMPath = filepath.Join(t.TempDir(), "absent.dsm")
	_, err := New(missing, quietLogger(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrInputNotFound)

	missing = cfg
	missing.RegistryPath = filepath.Join(t.TempDir(), "absent.csv")
	_, err = New(missing, quietLogger(), nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestRunPersistsToDuckDB(t *testing.T) {
	cfg := writeFixtures(t, "2026-06-20", [24]float64{})
	cfg.DuckDBPath = filepath.Join(t.TempDir(), "runs.db")

	summary, err := New(cfg, quietLogger(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	info, err := os.Stat(cfg.DuckDBPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
