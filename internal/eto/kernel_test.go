package eto

import (
	"math"
	"testing"
	"time"

	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/domain"
)

func syntheticCity() cities.Ref {
	return cities.Ref{
		Code:       "TO0001",
		Name:       "Test City",
		State:      "TO",
		Latitude:   -7.53,
		Longitude:  -48.3,
		ElevationM: 280,
	}
}

func syntheticHourly(start time.Time, hours int) []domain.HourlyObs {
	out := make([]domain.HourlyObs, hours)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		hourOfDay := ts.Hour()
		isDay := hourOfDay >= 6 && hourOfDay < 18
		sw := 0.0
		if isDay {
			// simple daytime bell curve peaking at midday
			mid := 12.0
			dist := math.Abs(float64(hourOfDay) - mid)
			sw = math.Max(0, 800*(1-dist/8))
		}
		temp := 22 + 8*math.Sin(float64(hourOfDay)/24*2*math.Pi-math.Pi/2)
		out[i] = domain.HourlyObs{
			TimestampUTC:          ts,
			TempC:                 temp,
			RelativeHumidityPct:   60,
			WindSpeed10mMS:        3.0,
			ShortwaveRadiationWM2: sw,
			PrecipitationMM:       0,
			ProviderEtoMMH:        0.05,
		}
	}
	return out
}

func TestComputeProducesTwoDays(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 48)

	result, err := Compute(city, hourly, time.UTC)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(result.Daily) != 2 {
		t.Fatalf("len(Daily) = %d, want 2", len(result.Daily))
	}
	d0, _ := time.Parse("2006-01-02", result.Daily[0].DateLocal)
	d1, _ := time.Parse("2006-01-02", result.Daily[1].DateLocal)
	if d1.Sub(d0) != 24*time.Hour {
		t.Fatalf("days not consecutive: %v, %v", d0, d1)
	}
}

func TestComputeNightHoursAreSmallNonNegative(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 48)

	result, err := Compute(city, hourly, time.UTC)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	for _, h := range result.Hourly {
		if h.ShortwaveRadiationWM2 != 0 {
			continue
		}
		if h.EtoHourlyMMH < 0 {
			t.Fatalf("night hour %v: ETo = %f, want >= 0", h.TimestampUTC, h.EtoHourlyMMH)
		}
		if h.EtoHourlyMMH > 0.1 {
			t.Errorf("night hour %v: ETo = %f, want < 0.1 mm/h", h.TimestampUTC, h.EtoHourlyMMH)
		}
	}
}

func TestComputeRejectsTooFewHours(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 10)
	_, err := Compute(city, hourly, time.UTC)
	if err == nil {
		t.Fatal("expected ErrInsufficientHours, got nil")
	}
}

func TestComputeRejectsMissingColumns(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 48)
	hourly[5].TempC = math.NaN()
	_, err := Compute(city, hourly, time.UTC)
	if err == nil {
		t.Fatal("expected ErrMissingColumns, got nil")
	}
}

func TestComputeMissingDewPointFallsBackToTMinus5(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 48)
	// DewPointC left nil throughout; kernel must not fail.
	if _, err := Compute(city, hourly, time.UTC); err != nil {
		t.Fatalf("Compute() with nil dew point error = %v", err)
	}
}

func TestVectorizedMatchesPerHourReference(t *testing.T) {
	city := syntheticCity()
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	hourly := syntheticHourly(start, 48)

	result, err := Compute(city, hourly, time.UTC)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	var dailySumVectorized, dailySumRef float64
	for i, h := range hourly {
		ref := computeReferenceHour(city.ElevationM, city.Latitude, city.Longitude, refHour{
			TempC:                 h.TempC,
			WindSpeed10mMS:        h.WindSpeed10mMS,
			ShortwaveRadiationWM2: h.ShortwaveRadiationWM2,
			DewPointC:             h.DewPointC,
			DayOfYear:             h.TimestampUTC.YearDay(),
			HourUTC:               h.TimestampUTC.Hour(),
		})
		got := result.Hourly[i].EtoHourlyMMH
		if math.Abs(got-ref) > 0.01 {
			t.Errorf("hour %d: vectorized = %f, reference = %f, diff > 0.01", i, got, ref)
		}
		dailySumVectorized += got
		dailySumRef += ref
	}
	if math.Abs(dailySumVectorized-dailySumRef) > 0.05*2 {
		t.Errorf("daily sums diverge: vectorized=%f reference=%f", dailySumVectorized, dailySumRef)
	}
}
