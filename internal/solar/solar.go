package solar

import (
	"math"
	"time"
)

// Kind selects which horizon crossing of the day an event refers to.
type Kind string

const (
	Sunrise Kind = "sunrise" // morning crossing
	Sunset  Kind = "sunset"  // evening crossing
)

// Standard zenith angles, in degrees. The official value accounts for
// atmospheric refraction and the solar disk radius; the larger angles mark
// the twilight stages.
const (
	ZenithOfficial = 90.833
	ZenithCivil    = 96.0
	ZenithNautical = 102.0
)

// Place is a fixed observer location in degrees; north and east are positive.
type Place struct {
	Latitude  float64
	Longitude float64
}

// EventTime computes the local wall-clock time at which the sun crosses the
// given zenith angle on the given calendar date, using the NOAA low-order
// solar position approximation. The date's year, month, and day are read in
// loc, and the result is returned in loc.
//
// The boolean is false when the location has no crossing at that zenith on
// that date (polar day or polar night).
func EventTime(date time.Time, kind Kind, zenithDeg float64, place Place, loc *time.Location) (time.Time, bool) {
	year, month, day := date.In(loc).Date()
	dayOfYear := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).YearDay()

	// Fractional year angle.
	gamma := (2 * math.Pi / 365.0) * float64(dayOfYear-1)

	// Equation of time (minutes) and solar declination (radians), truncated
	// Fourier series with the published coefficients.
	eqTime := 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))

	decl := 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	zenith := zenithDeg * math.Pi / 180
	latRad := place.Latitude * math.Pi / 180

	cosHA := math.Cos(zenith)/(math.Cos(latRad)*math.Cos(decl)) -
		math.Tan(latRad)*math.Tan(decl)

	// Out of domain: the sun never reaches this zenith today.
	if cosHA > 1 || cosHA < -1 {
		return time.Time{}, false
	}

	haDeg := math.Acos(cosHA) * 180 / math.Pi

	// Solar noon in UTC minutes from midnight; each degree of hour angle is
	// four minutes of time.
	solarNoon := 720 - 4*place.Longitude - eqTime
	t1 := solarNoon - 4*haDeg
	t2 := solarNoon + 4*haDeg

	utcMinutes := math.Min(t1, t2)
	if kind == Sunset {
		utcMinutes = math.Max(t1, t2)
	}

	midnightUTC := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	instant := midnightUTC.Add(time.Duration(utcMinutes * float64(time.Minute)))

	return instant.In(loc), true
}
