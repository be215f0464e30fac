package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMeteoProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cloud_cover", r.URL.Query().Get("hourly"))
		assert.Equal(t, "2026-08-30", r.URL.Query().Get("start_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hourly": {
				"time": ["2026-08-30T09:00", "2026-08-30T10:00", "2026-08-30T11:00"],
				"cloud_cover": [10, 55, 90]
			}
		}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	series, err := p.HourlyCloudCover(context.Background(), 48.8566, 2.3522, date)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, 10.0, series[0].CoverPct)
	assert.Equal(t, 9, series[0].Hour.Hour())
	assert.Equal(t, 90.0, series[2].CoverPct)
}

func TestOpenMeteoProviderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	p.httpCfg.Backoff.MaxRetries = 0
	p.httpCfg.Backoff.InitialInterval = time.Millisecond

	_, err := p.HourlyCloudCover(context.Background(), 48.8566, 2.3522, time.Now())
	require.Error(t, err)

	var lookupErr *LookupError
	assert.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "openmeteo", lookupErr.Provider)
}

func TestOpenMeteoProviderMalformedSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": {"time": ["2026-08-30T09:00"], "cloud_cover": []}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL)
	_, err := p.HourlyCloudCover(context.Background(), 48.8566, 2.3522, time.Now())
	require.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	covers := `{"date": "2026-08-30", "cloudCover": [0,0,0,0,0,0,0,0,0,20,40,60,80,100,100,80,60,40,20,0,0,0,0,0]}`
	path := filepath.Join(t.TempDir(), "clouds.json")
	require.NoError(t, os.WriteFile(path, []byte(covers), 0o644))

	p := NewFileProvider(path)
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	series, err := p.HourlyCloudCover(context.Background(), 48.8566, 2.3522, date)
	require.NoError(t, err)
	require.Len(t, series, 24)
	assert.Equal(t, 100.0, series[13].CoverPct)
	assert.Equal(t, 13, series[13].Hour.Hour())
}

func TestFileProviderDateMismatch(t *testing.T) {
	covers := `{"date": "2026-08-29", "cloudCover": [0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0]}`
	path := filepath.Join(t.TempDir(), "clouds.json")
	require.NoError(t, os.WriteFile(path, []byte(covers), 0o644))

	p := NewFileProvider(path)
	_, err := p.HourlyCloudCover(context.Background(), 48.8566, 2.3522, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)

	var lookupErr *LookupError
	assert.True(t, errors.As(err, &lookupErr))
}

func TestNearestHour(t *testing.T) {
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	series := []HourlyCloud{
		{Hour: base.Add(9 * time.Hour), CoverPct: 10},
		{Hour: base.Add(10 * time.Hour), CoverPct: 50},
		{Hour: base.Add(11 * time.Hour), CoverPct: 90},
	}

	// 09:30 is equidistant; 10:20 rounds to 10:00; 10:40 rounds to 11:00.
	assert.Equal(t, 50.0, NearestHour(series, base.Add(10*time.Hour+20*time.Minute)))
	assert.Equal(t, 90.0, NearestHour(series, base.Add(10*time.Hour+40*time.Minute)))
	assert.Equal(t, 10.0, NearestHour(series, base.Add(9*time.Hour+5*time.Minute)))

	assert.Zero(t, NearestHour(nil, base))
}
