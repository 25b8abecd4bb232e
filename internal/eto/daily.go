package eto

import (
	"sort"
	"time"

	"github.com/matopiba/forecast-pipeline/internal/domain"
	"github.com/matopiba/forecast-pipeline/internal/vecmath"
)

// aggregateDaily groups hourly results by local calendar date (in loc)
// and reduces each group into one DailyForecast.
func aggregateDaily(hourly []HourlyResult, loc *time.Location) ([]domain.DailyForecast, error) {
	if loc == nil {
		loc = time.UTC
	}

	byDate := make(map[string][]HourlyResult)
	var order []string
	for _, h := range hourly {
		key := h.TimestampUTC.In(loc).Format("2006-01-02")
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = append(byDate[key], h)
	}
	sort.Strings(order)

	days := make([]domain.DailyForecast, 0, len(order))
	for _, key := range order {
		group := byDate[key]
		temp := make([]float64, len(group))
		rh := make([]float64, len(group))
		ws := make([]float64, len(group))
		sw := make([]float64, len(group))
		precip := make([]float64, len(group))
		etoH := make([]float64, len(group))
		etoProvider := make([]float64, len(group))
		for i, h := range group {
			temp[i] = h.TempC
			rh[i] = h.RelativeHumidityPct
			ws[i] = h.WindSpeed10mMS
			sw[i] = h.ShortwaveRadiationWM2
			precip[i] = h.PrecipitationMM
			etoH[i] = h.EtoHourlyMMH
			etoProvider[i] = h.ProviderEtoMMH
		}
		days = append(days, domain.DailyForecast{
			DateLocal:          key,
			TMaxC:              vecmath.Max(temp),
			TMinC:              vecmath.Min(temp),
			TMeanC:             vecmath.Mean(temp),
			RHMeanPct:          vecmath.Mean(rh),
			WSMeanMS:           vecmath.Mean(ws),
			RadiationSumMJM2:   vecmath.Sum(sw) * 3600 / 1e6,
			PrecipitationSumMM: vecmath.Sum(precip),
			EtoModelMMDay:      vecmath.Sum(etoH),
			EtoProviderMMDay:   vecmath.Sum(etoProvider),
		})
	}
	return days, nil
}
