package eto

import "math"

// computeReferenceHour re-derives one hour's ETo with the same FAO-56
// formulas as Compute, but entirely scalar (no shared slices). Used as
// an independent check that the vectorized kernel and a naive per-hour
// loop agree; it shares constants and helpers with Compute, so it can
// only catch indexing/alignment bugs, not a formula error common to
// both.
func computeReferenceHour(elevationM, latitude, longitude float64, h refHour) float64 {
	u2 := h.WindSpeed10mMS * windHeightFactor
	if h.WindSpeed10mMS <= 0 {
		u2 = 0.5
	}

	p := 101.3 * math.Pow((293-0.0065*elevationM)/293, 5.26)
	gamma := 0.000665 * p

	es := satVaporPressure(h.TempC)
	td := h.TempC - 5
	if h.DewPointC != nil {
		td = *h.DewPointC
	}
	ea := satVaporPressure(td)
	vpd := math.Max(es-ea, 0)
	delta := 4098 * es / ((h.TempC + 237.3) * (h.TempC + 237.3))

	ra := extraterrestrialRadiationHourly(latitude, longitude, h.DayOfYear, h.HourUTC)

	isNight := h.ShortwaveRadiationWM2 == 0
	rsMJ := h.ShortwaveRadiationWM2 * 3600 / 1e6
	rso := (0.75 + 2e-5*elevationM) * ra
	ratio := 0.4
	if rso > 0.01 {
		ratio = math.Max(0.3, math.Min(1.0, rsMJ/rso))
	}
	tk := h.TempC + 273.16
	rnl := stefanHour * (tk * tk * tk * tk) * (0.34 - 0.14*math.Sqrt(math.Max(ea, 0))) * (1.35*ratio - 0.35)
	rns := (1 - albedo) * rsMJ
	rn := rns - rnl
	g := 0.0
	if isNight {
		g = soilHeatFluxNight
	}

	cn, cd := cnDay, cdDay
	if isNight {
		cn, cd = cnNight, cdNight
	}
	denom := delta + gamma*(1+cd*u2)
	if denom <= 0 {
		return 0
	}
	num := 0.408*delta*(rn-g) + gamma*(cn/(h.TempC+273))*u2*vpd
	v := num / denom
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// refHour is the minimal per-hour input the reference implementation needs.
type refHour struct {
	TempC                 float64
	WindSpeed10mMS        float64
	ShortwaveRadiationWM2 float64
	DewPointC             *float64
	DayOfYear             int
	HourUTC               int
}
