package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// OpenMeteoProvider fetches hourly cloud cover from the Open-Meteo
// forecast API. The API is keyless.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates the provider. baseURL is usually
// https://api.open-meteo.com/v1/forecast; tests point it at a stub.
func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (p *OpenMeteoProvider) Name() string { return p.name }

// HourlyCloudCover fetches the hourly cloud-cover series for the date.
func (p *OpenMeteoProvider) HourlyCloudCover(ctx context.Context, lat, lon float64, date time.Time) ([]HourlyCloud, error) {
	day := date.UTC().Format("2006-01-02")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("hourly", "cloud_cover")
		values.Set("start_date", day)
		values.Set("end_date", day)
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, &LookupError{Provider: p.name, Err: err}
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time       []string  `json:"time"`
			CloudCover []float64 `json:"cloud_cover"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &LookupError{Provider: p.name, Err: err}
	}
	if len(payload.Hourly.Time) != len(payload.Hourly.CloudCover) || len(payload.Hourly.Time) == 0 {
		return nil, &LookupError{Provider: p.name, Err: fmt.Errorf("malformed hourly series: %d times, %d values",
			len(payload.Hourly.Time), len(payload.Hourly.CloudCover))}
	}

	series := make([]HourlyCloud, 0, len(payload.Hourly.Time))
	for i, stamp := range payload.Hourly.Time {
		// Open-Meteo emits minute-resolution local stamps like
		// "2026-08-30T14:00"; with timezone=UTC they are UTC.
		hour, err := time.Parse("2006-01-02T15:04", stamp)
		if err != nil {
			return nil, &LookupError{Provider: p.name, Err: fmt.Errorf("parsing hourly stamp %q: %w", stamp, err)}
		}
		series = append(series, HourlyCloud{Hour: hour.UTC(), CoverPct: payload.Hourly.CloudCover[i]})
	}
	return series, nil
}
