package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Forecasts: map[string]domain.CityForecast{
			"X0001": {
				City: domain.CityInfo{Code: "X0001", Name: "Balsas", State: "MA", Latitude: -7.5, Longitude: -46.0, ElevationM: 280},
				Days: []domain.DailyForecast{
					{DateLocal: "2026-07-30", TMaxC: 32, TMinC: 20, EtoModelMMDay: 5.1, EtoProviderMMDay: 5.0},
				},
			},
		},
		Validation: domain.ValidationMetrics{R2: 0.9, RMSEMMDay: 0.4, NSamples: 1, Quality: domain.QualityExcellent},
		Metadata: domain.RunMetadata{
			RunLabel:         domain.RunLabel00,
			UpdatedAtUTC:     time.Date(2026, 7, 30, 0, 5, 0, 0, time.UTC),
			NextUpdateUTC:    time.Date(2026, 7, 30, 6, 0, 0, 0, time.UTC),
			NCitiesAttempted: 1,
			NCitiesSucceeded: 1,
			SuccessRate:      1.0,
			Version:          "test",
		},
	}
}

func TestHandleForecastsReturnsSnapshot(t *testing.T) {
	gw, err := cache.NewGateway(8)
	if err != nil {
		t.Fatalf("cache.NewGateway() error = %v", err)
	}
	if err := gw.PutSnapshot(sampleSnapshot()); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}
	s := NewServer(gw, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/forecasts", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body forecastsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(body.Forecasts) != 1 {
		t.Errorf("len(Forecasts) = %d, want 1", len(body.Forecasts))
	}
	if body.Forecasts["X0001"].CityName != "Balsas" {
		t.Errorf("CityName = %q, want Balsas", body.Forecasts["X0001"].CityName)
	}
}

func TestHandleForecastsEmptyCacheReturns503(t *testing.T) {
	gw, err := cache.NewGateway(8)
	if err != nil {
		t.Fatalf("cache.NewGateway() error = %v", err)
	}
	s := NewServer(gw, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/forecasts", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.Error != "cache_empty" {
		t.Errorf("Error = %q, want cache_empty", body.Error)
	}
}

func TestHandleMetadataEmptyCacheReturns503NoHint(t *testing.T) {
	gw, err := cache.NewGateway(8)
	if err != nil {
		t.Fatalf("cache.NewGateway() error = %v", err)
	}
	s := NewServer(gw, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/metadata", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.NextUpdateUTC != "" {
		t.Errorf("NextUpdateUTC = %q, want empty", body.NextUpdateUTC)
	}
}

func TestHandleHealthAlwaysOK(t *testing.T) {
	gw, err := cache.NewGateway(8)
	if err != nil {
		t.Fatalf("cache.NewGateway() error = %v", err)
	}
	s := NewServer(gw, log.NewNopLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
