// Package orchestrator runs the five-phase pipeline: fetch, compute,
// validate, persist hot, persist audit.
package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/matopiba/forecast-pipeline/internal/audit"
	"github.com/matopiba/forecast-pipeline/internal/cache"
	"github.com/matopiba/forecast-pipeline/internal/cities"
	"github.com/matopiba/forecast-pipeline/internal/domain"
	"github.com/matopiba/forecast-pipeline/internal/eto"
	"github.com/matopiba/forecast-pipeline/internal/forecast"
	"github.com/matopiba/forecast-pipeline/internal/profile"
	"github.com/matopiba/forecast-pipeline/internal/validate"
)

// ErrRunAlreadyInProgress is returned when a fire arrives while a run
// is still executing; the fire is discarded, not queued.
var ErrRunAlreadyInProgress = errors.New("orchestrator: run already in progress")

// ErrCacheWriteFailed is returned when Phase 4's retry-once-then-abort
// policy is exhausted.
var ErrCacheWriteFailed = errors.New("orchestrator: hot cache write failed twice")

// Phase soft budgets; exceeding one logs a warning but never cancels
// the run.
var (
	phase1Budget = 60 * time.Second
	phase2Budget = 15 * time.Second
	phase4Budget = 5 * time.Second
	phase5Budget = 5 * time.Second
)

// TaskDeadline is the whole-task hard deadline.
const TaskDeadline = 10 * time.Minute

// FetchClient is the subset of forecast.Client the orchestrator needs,
// narrowed to ease substitution in tests.
type FetchClient interface {
	FetchAll(ctx context.Context, refs []cities.Ref) (map[string][]domain.HourlyObs, map[string]error)
}

// Orchestrator wires together the roster, forecast client, ETo kernel,
// validator, and both persistence gateways into one runnable pipeline.
type Orchestrator struct {
	roster   *cities.Roster
	client   FetchClient
	cache    *cache.Gateway
	audit    *audit.Gateway // nil if DB_URL was not configured
	logger   log.Logger
	location *time.Location
	version  string

	mu      sync.Mutex
	running bool

	// Timings is optional; when set, each phase's duration is also
	// recorded there for cross-run comparison by operators.
	Timings *profile.PipelineTimings
}

// New builds an Orchestrator. auditGateway may be nil: audit writes are
// then skipped with a warning when DB_URL is absent.
func New(roster *cities.Roster, client FetchClient, cacheGateway *cache.Gateway, auditGateway *audit.Gateway, logger log.Logger, location *time.Location, version string) *Orchestrator {
	return &Orchestrator{
		roster:   roster,
		client:   client,
		cache:    cacheGateway,
		audit:    auditGateway,
		logger:   logger,
		location: location,
		version:  version,
	}
}

// CityFailure records why one city dropped out of the run.
type CityFailure struct {
	CityCode  string
	ErrorKind string
}

// RunReport is the structured outcome logged and stored in the audit
// row's metadata_json column.
type RunReport struct {
	RunID            string
	Success          bool
	RunLabel         domain.RunLabel
	DurationS        float64
	NCitiesAttempted int
	NCitiesSucceeded int
	Quality          domain.Quality
	Failures         []CityFailure
}

// Run executes one full pipeline pass for the scheduling instant at
// triggerHourUTC (0, 6, 12, or 18). Only one Run may execute at a time;
// a concurrent call returns ErrRunAlreadyInProgress immediately.
func (o *Orchestrator) Run(ctx context.Context, triggerHourUTC int) (RunReport, error) {
	if !o.mu.TryLock() {
		return RunReport{}, ErrRunAlreadyInProgress
	}
	defer o.mu.Unlock()

	runLabel, ok := domain.LabelForHour(triggerHourUTC)
	if !ok {
		return RunReport{}, fmt.Errorf("orchestrator: %d is not a scheduled hour", triggerHourUTC)
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := log.With(o.logger, "run_id", runID, "run_label", string(runLabel))
	level.Info(logger).Log("msg", "run starting")

	ctx, cancel := context.WithTimeout(ctx, TaskDeadline)
	defer cancel()

	refs := o.roster.All()
	failures := map[string]string{}

	// Phase 1: fetch.
	phaseStart := time.Now()
	hourlyByCity, fetchFailures := o.client.FetchAll(ctx, refs)
	if elapsed := time.Since(phaseStart); elapsed > phase1Budget {
		level.Warn(logger).Log("msg", "phase 1 exceeded soft budget", "elapsed_s", elapsed.Seconds())
	}
	if o.Timings != nil {
		o.Timings.RecordFetchTime(time.Since(phaseStart))
	}
	for code, err := range fetchFailures {
		failures[code] = err.Error()
	}

	// Phase 2: compute.
	phaseStart = time.Now()
	forecasts := make(map[string]domain.CityForecast, len(hourlyByCity))
	for code, hourly := range hourlyByCity {
		ref, found := o.roster.ByCode(code)
		if !found {
			continue
		}
		result, err := eto.Compute(ref, hourly, o.location)
		if err != nil {
			failures[code] = err.Error()
			continue
		}
		forecasts[code] = domain.CityForecast{
			City: domain.CityInfo{
				Code:       ref.Code,
				Name:       ref.Name,
				State:      ref.State,
				Latitude:   ref.Latitude,
				Longitude:  ref.Longitude,
				ElevationM: ref.ElevationM,
			},
			Days: result.Daily,
		}
	}
	if elapsed := time.Since(phaseStart); elapsed > phase2Budget {
		level.Warn(logger).Log("msg", "phase 2 exceeded soft budget", "elapsed_s", elapsed.Seconds())
	}
	if o.Timings != nil {
		o.Timings.RecordComputeTime(time.Since(phaseStart))
	}

	// Phase 3: validate (diagnostic only).
	var pairs []validate.Pair
	for _, cf := range forecasts {
		for _, day := range cf.Days {
			pairs = append(pairs, validate.Pair{Model: day.EtoModelMMDay, Provider: day.EtoProviderMMDay})
		}
	}
	metrics := validate.Compute(pairs)
	if metrics.Quality == domain.QualityBelowExpected {
		level.Warn(logger).Log("msg", "validation quality below expected", "r2", metrics.R2, "rmse", metrics.RMSEMMDay)
	}

	updatedAt := time.Now().UTC()
	metadata := domain.RunMetadata{
		RunLabel:         runLabel,
		UpdatedAtUTC:     updatedAt,
		NextUpdateUTC:    updatedAt.Add(cache.TTL),
		NCitiesAttempted: len(refs),
		NCitiesSucceeded: len(forecasts),
		SuccessRate:      float64(len(forecasts)) / float64(len(refs)),
		Version:          o.version,
	}
	snapshot := domain.Snapshot{Forecasts: forecasts, Validation: metrics, Metadata: metadata}

	// Phase 4: persist hot. Retry once after 500ms; a second failure
	// aborts the run (without a hot cache, readers cannot be served).
	phaseStart = time.Now()
	if err := o.cache.PutSnapshot(snapshot); err != nil {
		level.Warn(logger).Log("msg", "hot cache write failed, retrying", "err", err)
		time.Sleep(500 * time.Millisecond)
		if err := o.cache.PutSnapshot(snapshot); err != nil {
			level.Error(logger).Log("msg", "hot cache write failed twice, aborting run", "err", err)
			return RunReport{}, fmt.Errorf("%w: %v", ErrCacheWriteFailed, err)
		}
	}
	if elapsed := time.Since(phaseStart); elapsed > phase4Budget {
		level.Warn(logger).Log("msg", "phase 4 exceeded soft budget", "elapsed_s", elapsed.Seconds())
	}
	if o.Timings != nil {
		o.Timings.RecordPersistTime(time.Since(phaseStart))
	}

	report := RunReport{
		RunID:            runID,
		Success:          true,
		RunLabel:         runLabel,
		DurationS:        time.Since(start).Seconds(),
		NCitiesAttempted: len(refs),
		NCitiesSucceeded: len(forecasts),
		Quality:          metrics.Quality,
	}
	for code, kind := range failures {
		report.Failures = append(report.Failures, CityFailure{CityCode: code, ErrorKind: kind})
	}

	// Phase 5: persist audit. Failures are logged and swallowed.
	phaseStart = time.Now()
	o.persistAudit(ctx, logger, updatedAt, runLabel, metrics, report)
	if elapsed := time.Since(phaseStart); elapsed > phase5Budget {
		level.Warn(logger).Log("msg", "phase 5 exceeded soft budget", "elapsed_s", elapsed.Seconds())
	}

	level.Info(logger).Log("msg", "run complete", "n_succeeded", report.NCitiesSucceeded, "quality", report.Quality, "duration_s", report.DurationS)
	return report, nil
}

func (o *Orchestrator) persistAudit(ctx context.Context, logger log.Logger, updatedAt time.Time, runLabel domain.RunLabel, metrics domain.ValidationMetrics, report RunReport) {
	if o.audit == nil {
		level.Warn(logger).Log("msg", "audit log not configured, skipping")
		return
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		level.Warn(logger).Log("msg", "failed to marshal run report", "err", err)
		reportJSON = []byte("{}")
	}
	row := audit.Row{
		RunLabel:     string(runLabel),
		UpdatedAt:    updatedAt,
		NCities:      report.NCitiesSucceeded,
		SuccessRate:  float64(report.NCitiesSucceeded) / float64(maxInt(report.NCitiesAttempted, 1)),
		Quality:      string(metrics.Quality),
		MetadataJSON: string(reportJSON),
	}
	if !isNaN(metrics.R2) {
		row.R2 = sql.NullFloat64{Float64: metrics.R2, Valid: true}
	}
	if metrics.NSamples > 0 {
		row.RMSE = sql.NullFloat64{Float64: metrics.RMSEMMDay, Valid: true}
		row.Bias = sql.NullFloat64{Float64: metrics.BiasMMDay, Valid: true}
		row.MAE = sql.NullFloat64{Float64: metrics.MAEMMDay, Valid: true}
	}
	if err := o.audit.UpsertRun(ctx, row); err != nil {
		level.Warn(logger).Log("msg", "audit write failed", "err", err)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isNaN(f float64) bool {
	return f != f
}
