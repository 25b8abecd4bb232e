// Package eto computes hourly and daily FAO-56 Penman-Monteith reference
// evapotranspiration from a city's hourly forecast array.
package eto

import (
	"fmt"
	"math"
	"time"

	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/domain"
	"github.com/matopiba/forecast-pipeline/internal/vecmath"
)

// windHeightFactor is the constant part of the 10m->2m wind speed
// adjustment, ln(67.8*10 - 5.42), folded into a single multiplier.
var windHeightFactor = 4.87 / math.Log(67.8*10-5.42)

const (
	albedo     = 0.23
	stefanHour = 2.043e-10 // MJ K-4 m-2 h-1
	soilHeatFluxNight = -0.1 // MJ m-2 h-1

	cnDay, cdDay     = 37.0, 0.24
	cnNight, cdNight = 6.0, 0.96
)

// HourlyResult augments one input hour with its computed ETo.
type HourlyResult struct {
	domain.HourlyObs
	EtoHourlyMMH float64
}

// Warning records a non-fatal anomaly encountered while computing one
// city's kernel run.
type Warning struct {
	Hour  int
	Issue string
}

// Result is the ETo kernel's full output for one city's run.
type Result struct {
	Hourly   []HourlyResult
	Daily    []domain.DailyForecast
	Warnings []Warning
}

// Compute runs the vectorized FAO-56 Penman-Monteith kernel for one
// city. hourly must contain at least MinHours records and no NaN in any
// required field; DewPointC may be nil per-hour.
func Compute(city cities.Ref, hourly []domain.HourlyObs, loc *time.Location) (Result, error) {
	if len(hourly) < MinHours {
		return Result{}, fmt.Errorf("%w: got %d hours", ErrInsufficientHours, len(hourly))
	}
	if err := checkRequiredColumns(hourly); err != nil {
		return Result{}, err
	}

	n := len(hourly)
	t := make([]float64, n)
	rh := make([]float64, n)
	u10 := make([]float64, n)
	sw := make([]float64, n)
	for i, h := range hourly {
		t[i] = h.TempC
		rh[i] = h.RelativeHumidityPct
		u10[i] = h.WindSpeed10mMS
		sw[i] = h.ShortwaveRadiationWM2
	}

	// Step 1: wind adjustment 10m -> 2m.
	u2 := make([]float64, n)
	for i, u := range u10 {
		if u <= 0 {
			u2[i] = 0.5
			continue
		}
		u2[i] = u * windHeightFactor
	}

	// Steps 2-3: pressure and psychrometric constant (scalar, per city).
	p := 101.3 * math.Pow((293-0.0065*city.ElevationM)/293, 5.26)
	gamma := 0.000665 * p

	// Step 4: saturation vapor pressure.
	es := make([]float64, n)
	for i, ti := range t {
		es[i] = satVaporPressure(ti)
	}

	// Step 5: actual vapor pressure from dew point (or T-5 fallback).
	ea := make([]float64, n)
	warnings := []Warning{}
	for i, h := range hourly {
		td := t[i] - 5
		if h.DewPointC != nil {
			td = *h.DewPointC
		}
		ea[i] = satVaporPressure(td)
	}

	// Step 6: vapor pressure deficit, clamped to non-negative (a humid
	// hour can otherwise make es-ea slightly negative from rounding).
	vpdRaw := make([]float64, n)
	for i := range vpdRaw {
		vpdRaw[i] = es[i] - ea[i]
	}
	vpd := vecmath.MapClamp(vpdRaw, 0, math.MaxFloat64, func(x float64) float64 { return x })

	// Step 7: slope of the saturation vapor pressure curve.
	delta := make([]float64, n)
	for i, ti := range t {
		delta[i] = 4098 * es[i] / ((ti + 237.3) * (ti + 237.3))
	}

	// Step 9: extraterrestrial radiation, the one step that depends on
	// each hour's timestamp.
	ra := make([]float64, n)
	for i, h := range hourly {
		ra[i] = extraterrestrialRadiationHourly(city.Latitude, city.Longitude, h.TimestampUTC.YearDay(), h.TimestampUTC.Hour())
	}

	// Step 8: net radiation.
	rn := make([]float64, n)
	g := make([]float64, n)
	isNight := make([]bool, n)
	for i := range hourly {
		isNight[i] = sw[i] == 0
		rsMJ := sw[i] * 3600 / 1e6
		rso := (0.75 + 2e-5*city.ElevationM) * ra[i]
		ratio := 0.4
		if rso > 0.01 {
			ratio = vecmath.Clamp(rsMJ/rso, 0.3, 1.0)
		}
		tk := t[i] + 273.16
		rnl := stefanHour * (tk * tk * tk * tk) * (0.34 - 0.14*math.Sqrt(math.Max(ea[i], 0))) * (1.35*ratio - 0.35)
		rns := (1 - albedo) * rsMJ
		rn[i] = rns - rnl
		if isNight[i] {
			g[i] = soilHeatFluxNight
		} else {
			g[i] = 0
		}
	}

	// Steps 10-11: day/night coefficients and the hourly PM equation.
	etoHourly := make([]float64, n)
	for i := range hourly {
		cn, cd := cnDay, cdDay
		if isNight[i] {
			cn, cd = cnNight, cdNight
		}
		denom := delta[i] + gamma*(1+cd*u2[i])
		if denom <= 0 {
			etoHourly[i] = 0
			warnings = append(warnings, Warning{Hour: i, Issue: "non-positive denominator"})
			continue
		}
		num := 0.408*delta[i]*(rn[i]-g[i]) + gamma*(cn/(t[i]+273))*u2[i]*vpd[i]
		v := num / denom
		if math.IsNaN(v) || math.IsInf(v, 0) {
			warnings = append(warnings, Warning{Hour: i, Issue: "non-finite output"})
			v = 0
		}
		if v < 0 {
			v = 0
		}
		etoHourly[i] = v
	}

	results := make([]HourlyResult, n)
	for i, h := range hourly {
		results[i] = HourlyResult{HourlyObs: h, EtoHourlyMMH: etoHourly[i]}
	}

	daily, err := aggregateDaily(results, loc)
	if err != nil {
		return Result{}, err
	}

	return Result{Hourly: results, Daily: daily, Warnings: warnings}, nil
}

func satVaporPressure(tempC float64) float64 {
	return 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
}

func checkRequiredColumns(hourly []domain.HourlyObs) error {
	for i, h := range hourly {
		if math.IsNaN(h.TempC) || math.IsNaN(h.RelativeHumidityPct) ||
			math.IsNaN(h.WindSpeed10mMS) || math.IsNaN(h.ShortwaveRadiationWM2) {
			return fmt.Errorf("%w: hour %d", ErrMissingColumns, i)
		}
	}
	return nil
}
