// Package solar computes the sun's apparent position for an instant and
// an observer. The position calculation is pure: no I/O, no caching, the
// same inputs always produce the same angles.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Position is the sun's apparent position: azimuth in degrees clockwise
// from north (0-360) and altitude in degrees above the horizon. A
// non-positive altitude means the sun is below the horizon and no sunlit
// determination is meaningful.
type Position struct {
	Azimuth  float64
	Altitude float64
}

// Up reports whether the sun is above the horizon.
func (p Position) Up() bool { return p.Altitude > 0 }

func degToRad(deg float64) float64 { return deg * math.Pi / 180 }
func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

func sinDeg(deg float64) float64 { return math.Sin(degToRad(deg)) }
func cosDeg(deg float64) float64 { return math.Cos(degToRad(deg)) }
func tanDeg(deg float64) float64 { return math.Tan(degToRad(deg)) }

// norm360 normalizes an angle to [0, 360).
func norm360(a float64) float64 { return a - 360*math.Floor(a/360) }

// PositionAt returns the sun position for an observer at lat/lon (WGS84
// degrees, longitude positive east) at instant t. NOAA solar equations:
// mean longitude, mean anomaly and equation of center give the apparent
// ecliptic longitude; declination and the equation of time follow from
// the obliquity; the hour angle then yields zenith and azimuth. A fixed
// refraction correction of 0.5667 degrees is applied to the altitude.
func PositionAt(lat, lon float64, t time.Time) Position {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0 // Julian centuries since J2000

	L0 := norm360(280.46646 + T*(36000.76983+T*0.0003032)) // mean longitude
	M := norm360(357.52911 + T*(35999.05029-T*0.0001537))  // mean anomaly
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)      // orbit eccentricity
	C := sinDeg(M)*(1.914602-T*(0.004817+T*0.000014)) +
		sinDeg(2*M)*(0.019993-T*0.000101) +
		sinDeg(3*M)*0.000289
	trueLong := L0 + C
	omega := 125.04 - 1934.136*T
	lambda := trueLong - 0.00569 - 0.00478*sinDeg(omega) // apparent longitude

	// Obliquity of the ecliptic and solar declination.
	eps := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	decl := math.Asin(sinDeg(eps) * sinDeg(lambda)) // radians

	// Equation of time, minutes.
	y := tanDeg(eps/2) * tanDeg(eps/2)
	eqTime := 4 * radToDeg(y*sinDeg(2*L0)-
		2*e*sinDeg(M)+
		4*e*y*sinDeg(M)*cosDeg(2*L0)-
		0.5*y*y*sinDeg(4*L0)-
		1.25*e*e*sinDeg(2*M))

	// True solar time and hour angle.
	ut := t.UTC()
	minutes := float64(ut.Hour()*60+ut.Minute()) + float64(ut.Second())/60
	trueSolar := minutes + 4*lon + eqTime
	ha := trueSolar/4 - 180

	latRad := degToRad(lat)
	cosZen := math.Sin(latRad)*math.Sin(decl) + math.Cos(latRad)*math.Cos(decl)*cosDeg(ha)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	zen := math.Acos(cosZen)
	altitude := 90 - radToDeg(zen) + 0.5667 // refraction

	azimuth := 0.0
	azDen := math.Cos(latRad) * math.Sin(zen)
	if azDen != 0 {
		azCos := (math.Sin(decl) - math.Sin(latRad)*cosZen) / azDen
		azCos = math.Max(-1, math.Min(1, azCos))
		azimuth = radToDeg(math.Acos(azCos))
		if ha > 0 {
			azimuth = 360 - azimuth
		}
	}

	return Position{Azimuth: azimuth, Altitude: altitude}
}
