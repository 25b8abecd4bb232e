package orchestrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"

	"github.com/matopiba/forecast-pipeline/internal/audit"
	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/domain"
)

type fakeClient struct {
	hourly   map[string][]domain.HourlyObs
	failures map[string]error
}

func (f *fakeClient) FetchAll(ctx context.Context, refs []cities.Ref) (map[string][]domain.HourlyObs, map[string]error) {
	return f.hourly, f.failures
}

func syntheticHourlyFor(n int) []domain.HourlyObs {
	out := make([]domain.HourlyObs, n)
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		hour := ts.Hour()
		sw := 0.0
		if hour >= 6 && hour < 18 {
			sw = 500
		}
		out[i] = domain.HourlyObs{
			TimestampUTC:          ts,
			TempC:                 25,
			RelativeHumidityPct:   55,
			WindSpeed10mMS:        2.5,
			ShortwaveRadiationWM2: sw,
			ProviderEtoMMH:        0.1,
		}
	}
	return out
}

// testRoster builds a valid roster (cities.Load accepts exactly
// cities.ExpectedCount rows) with codes X0000, X0001, ...
func testRoster(t *testing.T) *cities.Roster {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("code,name,state,latitude,longitude,elevation_m\n")
	for i := 0; i < cities.ExpectedCount; i++ {
		sb.WriteString("X0")
		sb.WriteByte(byte('0' + i/100))
		sb.WriteByte(byte('0' + i/10%10))
		sb.WriteByte(byte('0' + i%10))
		sb.WriteString(",City,MA,-5.0,-45.0,100.0\n")
	}
	roster, err := cities.Load(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("cities.Load() error = %v", err)
	}
	return roster
}

func newTestOrchestrator(t *testing.T, client FetchClient) *Orchestrator {
	t.Helper()
	roster := testRoster(t)
	cacheGW, err := cache.NewGateway(8)
	if err != nil {
		t.Fatalf("cache.NewGateway() error = %v", err)
	}
	auditGW, err := audit.Open(":memory:")
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}
	t.Cleanup(func() { auditGW.Close() })
	return New(roster, client, cacheGW, auditGW, log.NewNopLogger(), time.UTC, "test")
}

func TestRunHappyPath(t *testing.T) {
	client := &fakeClient{
		hourly:   map[string][]domain.HourlyObs{},
		failures: map[string]error{},
	}
	o := newTestOrchestrator(t, client)
	for _, ref := range o.roster.All()[:5] {
		client.hourly[ref.Code] = syntheticHourlyFor(48)
	}

	report, err := o.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Success {
		t.Fatal("report.Success = false, want true")
	}
	if report.NCitiesSucceeded != 5 {
		t.Errorf("NCitiesSucceeded = %d, want 5", report.NCitiesSucceeded)
	}

	snap, err := o.cache.GetSnapshot()
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if len(snap.Forecasts) != 5 {
		t.Errorf("len(Forecasts) = %d, want 5", len(snap.Forecasts))
	}
}

func TestRunRejectsConcurrentFire(t *testing.T) {
	client := &fakeClient{hourly: map[string][]domain.HourlyObs{}, failures: map[string]error{}}
	o := newTestOrchestrator(t, client)
	o.mu.Lock()
	defer o.mu.Unlock()

	_, err := o.Run(context.Background(), 0)
	if !errors.Is(err, ErrRunAlreadyInProgress) {
		t.Errorf("err = %v, want ErrRunAlreadyInProgress", err)
	}
}

func TestRunZeroSuccessfulCitiesStillPersists(t *testing.T) {
	client := &fakeClient{
		hourly: map[string][]domain.HourlyObs{},
		failures: map[string]error{
			"X0000": errors.New("upstream down"),
		},
	}
	o := newTestOrchestrator(t, client)

	report, err := o.Run(context.Background(), 6)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.NCitiesSucceeded != 0 {
		t.Errorf("NCitiesSucceeded = %d, want 0", report.NCitiesSucceeded)
	}
	if report.Quality != domain.QualityBelowExpected {
		t.Errorf("Quality = %s, want BELOW_EXPECTED", report.Quality)
	}

	snap, err := o.cache.GetSnapshot()
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v (snapshot must still be written)", err)
	}
	if len(snap.Forecasts) != 0 {
		t.Errorf("len(Forecasts) = %d, want 0", len(snap.Forecasts))
	}
	if math.IsNaN(snap.Validation.R2) != true {
		t.Errorf("Validation.R2 = %v, want NaN", snap.Validation.R2)
	}
}

func TestRunInvalidHourIsRejected(t *testing.T) {
	client := &fakeClient{hourly: map[string][]domain.HourlyObs{}, failures: map[string]error{}}
	o := newTestOrchestrator(t, client)
	if _, err := o.Run(context.Background(), 3); err == nil {
		t.Fatal("expected error for non-scheduled hour 3, got nil")
	}
}
