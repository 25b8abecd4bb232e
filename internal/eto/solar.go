package eto

import "math"

// solarConstantMJ is Gsc, the solar constant in MJ m-2 min-1 (FAO-56 Eq 28).
const solarConstantMJ = 0.0820

// extraterrestrialRadiationHourly computes Ra (MJ m-2 h-1) for one hour,
// following FAO-56 Appendix eq 28-33 for the hourly period. latitudeDeg
// is the station latitude in decimal degrees (south negative); longitudeDeg
// is east-positive decimal degrees; hourUTC is the clock hour (0-23) at
// the start of the hourly period, dayOfYear is 1-366.
//
// This is the only step in the kernel that depends on each hour's
// timestamp: the solar time angle depends on both day-of-year and
// hour-of-day.
func extraterrestrialRadiationHourly(latitudeDeg, longitudeDeg float64, dayOfYear, hourUTC int) float64 {
	phi := latitudeDeg * math.Pi / 180

	dr := 1 + 0.033*math.Cos(2*math.Pi/365*float64(dayOfYear))
	delta := 0.409 * math.Sin(2*math.Pi/365*float64(dayOfYear)-1.39)

	b := 2 * math.Pi * (float64(dayOfYear) - 81) / 364
	sc := 0.1645*math.Sin(2*b) - 0.1255*math.Cos(b) - 0.025*math.Sin(b)

	// Standard meridian is 0 (UTC); longitude is expressed west-of-Greenwich
	// in the FAO formula, so negate east-positive input.
	lz := 0.0
	lm := -longitudeDeg

	tMid := float64(hourUTC) + 0.5
	omega := math.Pi/12*((tMid+0.06667*(lz-lm)+sc)-12)

	t1 := 1.0
	omega1 := omega - math.Pi*t1/24
	omega2 := omega + math.Pi*t1/24

	ra := (12 * 60 / math.Pi) * solarConstantMJ * dr *
		((omega2-omega1)*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*(math.Sin(omega2)-math.Sin(omega1)))

	if ra < 0 || math.IsNaN(ra) {
		ra = 0
	}
	return ra
}
