// Package forecast fetches hourly weather forecasts for a batch of
// cities from the external provider and normalizes them into
// domain.HourlyObs arrays.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/domain"
)

// MaxCoordinatesPerRequest is the provider's documented batch limit.
const MaxCoordinatesPerRequest = 50

// HourlyVariables is the exact hourly variable list the provider must
// return, in the order this client requests them.
var HourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"wind_speed_10m",
	"shortwave_radiation",
	"precipitation",
	"et0_fao_evapotranspiration",
}

const horizonDays = 2

// forecastTimezone pins the provider's hourly array to local civil-day
// boundaries; without it the provider defaults to GMT and a 48-hour
// window spans three distinct America/Sao_Paulo calendar dates instead
// of two.
const forecastTimezone = "America/Sao_Paulo"

// forecastLocation mirrors forecastTimezone for parsing the provider's
// "time" strings, which are returned in that zone once forecastTimezone
// is set on the request. Falls back to the fixed UTC-3 offset the region
// observes year-round (no DST) if the tzdata database isn't installed.
var forecastLocation = func() *time.Location {
	loc, err := time.LoadLocation(forecastTimezone)
	if err != nil {
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}()

// Client fetches batched hourly forecasts from the provider's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client pointed at baseURL (e.g. PROVIDER_BASE_URL),
// using a 30s-timeout HTTP client unless one is supplied via SetHTTPClient.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows overriding the HTTP client (for testing against
// an httptest.Server with a shorter timeout).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BatchResult is one batch's outcome: successes keyed by city code, and
// the shared error for cities that failed to parse or fetch at all.
type BatchResult struct {
	BatchIndex int
	Hourly     map[string][]domain.HourlyObs
	Failures   map[string]error
}

// FetchAll batches refs into groups of at most MaxCoordinatesPerRequest,
// issues up to 4 concurrent requests (bounded by a semaphore, matching
// the provider's courtesy limits), retries transient failures, and
// returns per-city hourly arrays plus per-city failure reasons for
// cities whose batch could not be fetched.
func (c *Client) FetchAll(ctx context.Context, refs []cities.Ref) (map[string][]domain.HourlyObs, map[string]error) {
	batches := splitBatches(refs, MaxCoordinatesPerRequest)
	if len(batches) == 0 {
		return map[string][]domain.HourlyObs{}, map[string]error{}
	}

	const workerPool = 4
	results := make([]BatchResult, len(batches))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workerPool)

	for i, batch := range batches {
		wg.Add(1)
		semaphore <- struct{}{} // acquire
		go func(idx int, b []cities.Ref) {
			defer wg.Done()
			defer func() { <-semaphore }() // release
			results[idx] = c.fetchBatch(ctx, idx, b)
		}(i, batch)
	}
	wg.Wait()

	hourly := make(map[string][]domain.HourlyObs)
	failures := make(map[string]error)
	for _, r := range results {
		for code, h := range r.Hourly {
			hourly[code] = h
		}
		for code, err := range r.Failures {
			failures[code] = err
		}
	}
	return hourly, failures
}

func splitBatches(refs []cities.Ref, size int) [][]cities.Ref {
	var batches [][]cities.Ref
	for i := 0; i < len(refs); i += size {
		end := i + size
		if end > len(refs) {
			end = len(refs)
		}
		batches = append(batches, refs[i:end])
	}
	return batches
}

func (c *Client) fetchBatch(ctx context.Context, index int, batch []cities.Ref) BatchResult {
	result := BatchResult{BatchIndex: index, Hourly: map[string][]domain.HourlyObs{}, Failures: map[string]error{}}

	locations, err := c.fetchWithRetry(ctx, batch)
	if err != nil {
		for _, ref := range batch {
			result.Failures[ref.Code] = err
		}
		return result
	}

	if len(locations) != len(batch) {
		for _, ref := range batch {
			result.Failures[ref.Code] = fmt.Errorf("%w: expected %d locations, got %d", ErrUpstreamMalformed, len(batch), len(locations))
		}
		return result
	}

	for i, ref := range batch {
		obs, err := toHourlyObs(locations[i])
		if err != nil {
			result.Failures[ref.Code] = err
			continue
		}
		result.Hourly[ref.Code] = obs
	}
	return result
}

func (c *Client) fetchWithRetry(ctx context.Context, batch []cities.Ref) ([]locationResponse, error) {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffs[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		locations, err := c.doFetch(ctx, batch)
		if err == nil {
			return locations, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, batch []cities.Ref) ([]locationResponse, error) {
	reqURL, err := c.buildURL(batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamBadRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamBadRequest, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransientNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		if kind := classifyStatus(resp.StatusCode); kind != nil {
			return nil, fmt.Errorf("%w: %v", kind, &apiError{status: resp.StatusCode, body: string(body)})
		}
		return nil, &apiError{status: resp.StatusCode, body: string(body)}
	}

	locations, err := decodeLocations(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	return locations, nil
}

func (c *Client) buildURL(batch []cities.Ref) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	lats := make([]string, len(batch))
	lons := make([]string, len(batch))
	for i, ref := range batch {
		lats[i] = strconv.FormatFloat(ref.Latitude, 'f', 4, 64)
		lons[i] = strconv.FormatFloat(ref.Longitude, 'f', 4, 64)
	}

	q := base.Query()
	q.Set("latitude", strings.Join(lats, ","))
	q.Set("longitude", strings.Join(lons, ","))
	q.Set("hourly", strings.Join(HourlyVariables, ","))
	q.Set("forecast_days", strconv.Itoa(horizonDays))
	q.Set("timezone", forecastTimezone)
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// locationResponse mirrors the provider's per-location hourly payload:
// parallel arrays aligned by index, one entry per requested hour.
type locationResponse struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Hourly    hourlyArrays `json:"hourly"`
}

type hourlyArrays struct {
	Time                     []string  `json:"time"`
	Temperature2m            []float64 `json:"temperature_2m"`
	RelativeHumidity2m       []float64 `json:"relative_humidity_2m"`
	DewPoint2m               []float64 `json:"dew_point_2m"`
	WindSpeed10m             []float64 `json:"wind_speed_10m"`
	ShortwaveRadiation       []float64 `json:"shortwave_radiation"`
	Precipitation            []float64 `json:"precipitation"`
	Et0FaoEvapotranspiration []float64 `json:"et0_fao_evapotranspiration"`
}

// decodeLocations accepts either a JSON array of locations (the shape
// returned when multiple coordinates are requested) or a single JSON
// object (returned for a one-city batch), matching the provider's
// documented behavior.
func decodeLocations(body []byte) ([]locationResponse, error) {
	var asArray []locationResponse
	if err := json.Unmarshal(body, &asArray); err == nil {
		return asArray, nil
	}
	var single locationResponse
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []locationResponse{single}, nil
}

func toHourlyObs(loc locationResponse) ([]domain.HourlyObs, error) {
	h := loc.Hourly
	n := len(h.Time)
	if n < minHours {
		return nil, fmt.Errorf("insufficient hours: got %d", n)
	}
	for _, arr := range [][]float64{h.Temperature2m, h.RelativeHumidity2m, h.WindSpeed10m, h.ShortwaveRadiation, h.Et0FaoEvapotranspiration} {
		if len(arr) != n {
			return nil, fmt.Errorf("%w: mismatched array lengths", ErrUpstreamMalformed)
		}
	}

	obs := make([]domain.HourlyObs, n)
	for i := 0; i < n; i++ {
		ts, err := time.ParseInLocation("2006-01-02T15:04", h.Time[i], forecastLocation)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing time %q: %v", ErrUpstreamMalformed, h.Time[i], err)
		}
		var dew *float64
		if i < len(h.DewPoint2m) && !math.IsNaN(h.DewPoint2m[i]) {
			v := h.DewPoint2m[i]
			dew = &v
		}
		precip := 0.0
		if i < len(h.Precipitation) {
			precip = h.Precipitation[i]
		}
		obs[i] = domain.HourlyObs{
			TimestampUTC:          ts.UTC(),
			TempC:                 h.Temperature2m[i],
			RelativeHumidityPct:   h.RelativeHumidity2m[i],
			WindSpeed10mMS:        h.WindSpeed10m[i],
			ShortwaveRadiationWM2: h.ShortwaveRadiation[i],
			PrecipitationMM:       precip,
			DewPointC:             dew,
			ProviderEtoMMH:        h.Et0FaoEvapotranspiration[i],
		}
	}
	return obs, nil
}

// minHours mirrors eto.MinHours; both packages key off the same
// spec-mandated 24-hour floor.
const minHours = 24
