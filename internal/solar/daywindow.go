package solar

import (
	"fmt"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// DayWindow holds the sun event times bounding a day's useful
// classification range. Used for run reporting; the per-slot altitude
// check stays authoritative for shading decisions.
type DayWindow struct {
	Dawn    time.Time
	Sunrise time.Time
	Sunset  time.Time
	Dusk    time.Time
}

// Window computes civil dawn/dusk and sunrise/sunset for the observer's
// date.
func Window(lat, lon float64, date time.Time) (DayWindow, error) {
	observer := astral.Observer{Latitude: lat, Longitude: lon}

	dawn, err := astral.Dawn(observer, date, astral.DepressionCivil)
	if err != nil {
		return DayWindow{}, fmt.Errorf("calculating civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(observer, date)
	if err != nil {
		return DayWindow{}, fmt.Errorf("calculating sunrise: %w", err)
	}
	sunset, err := astral.Sunset(observer, date)
	if err != nil {
		return DayWindow{}, fmt.Errorf("calculating sunset: %w", err)
	}
	dusk, err := astral.Dusk(observer, date, astral.DepressionCivil)
	if err != nil {
		return DayWindow{}, fmt.Errorf("calculating civil dusk: %w", err)
	}

	return DayWindow{Dawn: dawn, Sunrise: sunrise, Sunset: sunset, Dusk: dusk}, nil
}
