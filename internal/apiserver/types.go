package apiserver

import "github.com/matopiba/forecast-pipeline/internal/domain"

// dayJSON is the wire shape for one city-day under GET /forecasts.
type dayJSON struct {
	Date               string  `json:"date"`
	TMaxC              float64 `json:"t_max_c"`
	TMinC              float64 `json:"t_min_c"`
	RHMeanPct          float64 `json:"rh_mean_pct"`
	WSMeanMS           float64 `json:"ws_mean_ms"`
	RadiationSumMJM2   float64 `json:"radiation_sum_mj_m2"`
	PrecipitationSumMM float64 `json:"precipitation_sum_mm"`
	EtoModelMMDay      float64 `json:"eto_model_mm_day"`
	EtoProviderMMDay   float64 `json:"eto_provider_mm_day"`
}

type cityJSON struct {
	CityName   string    `json:"city_name"`
	State      string    `json:"state"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ElevationM float64   `json:"elevation_m"`
	Days       []dayJSON `json:"days"`
}

type validationJSON struct {
	R2        float64 `json:"r2"`
	RMSEMMDay float64 `json:"rmse_mm_day"`
	BiasMMDay float64 `json:"bias_mm_day"`
	MAEMMDay  float64 `json:"mae_mm_day"`
	NSamples  int     `json:"n_samples"`
	Quality   string  `json:"quality"`
}

type metadataJSON struct {
	RunLabel         string  `json:"run_label"`
	UpdatedAtUTC     string  `json:"updated_at_utc"`
	NextUpdateUTC    string  `json:"next_update_utc"`
	NCitiesAttempted int     `json:"n_cities_attempted"`
	NCitiesSucceeded int     `json:"n_cities_succeeded"`
	SuccessRate      float64 `json:"success_rate"`
	Version          string  `json:"version"`
}

type forecastsResponse struct {
	Forecasts  map[string]cityJSON `json:"forecasts"`
	Validation validationJSON      `json:"validation"`
	Metadata   metadataJSON        `json:"metadata"`
}

type errorResponse struct {
	Error         string `json:"error"`
	NextUpdateUTC string `json:"next_update_utc,omitempty"`
}

func toMetadataJSON(m domain.RunMetadata) metadataJSON {
	return metadataJSON{
		RunLabel:         string(m.RunLabel),
		UpdatedAtUTC:     m.UpdatedAtUTC.UTC().Format("2006-01-02T15:04:05Z"),
		NextUpdateUTC:    m.NextUpdateUTC.UTC().Format("2006-01-02T15:04:05Z"),
		NCitiesAttempted: m.NCitiesAttempted,
		NCitiesSucceeded: m.NCitiesSucceeded,
		SuccessRate:      m.SuccessRate,
		Version:          m.Version,
	}
}

func toForecastsResponse(s domain.Snapshot) forecastsResponse {
	forecasts := make(map[string]cityJSON, len(s.Forecasts))
	for code, cf := range s.Forecasts {
		days := make([]dayJSON, len(cf.Days))
		for i, d := range cf.Days {
			days[i] = dayJSON{
				Date:               d.DateLocal,
				TMaxC:              d.TMaxC,
				TMinC:              d.TMinC,
				RHMeanPct:          d.RHMeanPct,
				WSMeanMS:           d.WSMeanMS,
				RadiationSumMJM2:   d.RadiationSumMJM2,
				PrecipitationSumMM: d.PrecipitationSumMM,
				EtoModelMMDay:      d.EtoModelMMDay,
				EtoProviderMMDay:   d.EtoProviderMMDay,
			}
		}
		forecasts[code] = cityJSON{
			CityName:   cf.City.Name,
			State:      cf.City.State,
			Latitude:   cf.City.Latitude,
			Longitude:  cf.City.Longitude,
			ElevationM: cf.City.ElevationM,
			Days:       days,
		}
	}
	return forecastsResponse{
		Forecasts: forecasts,
		Validation: validationJSON{
			R2:        s.Validation.R2,
			RMSEMMDay: s.Validation.RMSEMMDay,
			BiasMMDay: s.Validation.BiasMMDay,
			MAEMMDay:  s.Validation.MAEMMDay,
			NSamples:  s.Validation.NSamples,
			Quality:   string(s.Validation.Quality),
		},
		Metadata: toMetadataJSON(s.Metadata),
	}
}
