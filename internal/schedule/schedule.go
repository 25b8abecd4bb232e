// Package schedule fires the orchestration task at fixed UTC instants.
// The scheduler is deliberately stateless: a missed fire is never made
// up, and at-least-once delivery is tolerated because the orchestrator's
// audit upsert is idempotent on updated_at.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/matopiba/forecast-pipeline/internal/orchestrator"
)

// DefaultCron is the default schedule: every six hours starting at
// midnight UTC.
const DefaultCron = "0 0,6,12,18 * * *"

// Runner is the subset of Orchestrator the scheduler drives.
type Runner interface {
	Run(ctx context.Context, triggerHourUTC int) (orchestrator.RunReport, error)
}

// Scheduler fires Runner.Run at a fixed set of UTC hours every day.
type Scheduler struct {
	hours  []int
	runner Runner
	logger log.Logger
	now    func() time.Time
}

// New builds a Scheduler from a cron expression in the restricted form
// this system needs: "minute hour * * *" where hour is a comma-separated
// list of 0-23 and minute is always 0. This covers DefaultCron and any
// equivalent SCHEDULE_CRON override; it is not a general cron parser.
func New(cronExpr string, runner Runner, logger log.Logger) (*Scheduler, error) {
	hours, err := parseHours(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return &Scheduler{hours: hours, runner: runner, logger: logger, now: time.Now}, nil
}

func parseHours(cronExpr string) ([]int, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("expected 5 cron fields, got %d", len(fields))
	}
	if fields[0] != "0" {
		return nil, fmt.Errorf("only minute=0 is supported, got %q", fields[0])
	}
	parts := strings.Split(fields[1], ",")
	hours := make([]int, 0, len(parts))
	for _, p := range parts {
		h, err := strconv.Atoi(p)
		if err != nil || h < 0 || h > 23 {
			return nil, fmt.Errorf("invalid hour %q", p)
		}
		hours = append(hours, h)
	}
	sort.Ints(hours)
	if len(hours) == 0 {
		return nil, errors.New("no hours configured")
	}
	return hours, nil
}

// NextFire returns the next scheduled UTC instant strictly after from.
func (s *Scheduler) NextFire(from time.Time) time.Time {
	from = from.UTC()
	for _, h := range s.hours {
		candidate := time.Date(from.Year(), from.Month(), from.Day(), h, 0, 0, 0, time.UTC)
		if candidate.After(from) {
			return candidate
		}
	}
	// No remaining hour today; wrap to the first configured hour tomorrow.
	tomorrow := from.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), s.hours[0], 0, 0, 0, time.UTC)
}

// Run blocks, firing the runner at each scheduled instant until ctx is
// canceled. A fire that finds a run already in progress is logged and
// discarded rather than queued.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.NextFire(s.now())
		wait := next.Sub(s.now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		report, err := s.runner.Run(ctx, next.Hour())
		if errors.Is(err, orchestrator.ErrRunAlreadyInProgress) {
			level.Warn(s.logger).Log("msg", "scheduled fire discarded, run already in progress", "hour", next.Hour())
			continue
		}
		if err != nil {
			level.Error(s.logger).Log("msg", "scheduled run failed", "hour", next.Hour(), "err", err)
			continue
		}
		level.Info(s.logger).Log("msg", "scheduled run completed", "run_id", report.RunID, "n_succeeded", report.NCitiesSucceeded)
	}
}
