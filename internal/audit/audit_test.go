package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestUpsertRunInsertsThenUpdatesInPlace(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	updatedAt := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	row := Row{
		RunLabel:     "12h UTC",
		UpdatedAt:    updatedAt,
		NCities:      337,
		R2:           sql.NullFloat64{Float64: 0.8, Valid: true},
		RMSE:         sql.NullFloat64{Float64: 1.0, Valid: true},
		SuccessRate:  1.0,
		Quality:      "EXCELLENT",
		MetadataJSON: `{"attempt":1}`,
	}
	if err := g.UpsertRun(ctx, row); err != nil {
		t.Fatalf("UpsertRun() error = %v", err)
	}

	row.Quality = "ACCEPTABLE"
	row.MetadataJSON = `{"attempt":2}`
	if err := g.UpsertRun(ctx, row); err != nil {
		t.Fatalf("UpsertRun() (retry) error = %v", err)
	}

	rows, err := g.LatestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("LatestRuns() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1 (upsert must not duplicate)", len(rows))
	}
	if rows[0].Quality != "ACCEPTABLE" {
		t.Errorf("Quality = %s, want ACCEPTABLE (second write should win)", rows[0].Quality)
	}
}

func TestLatestRunsOrdersNewestFirst(t *testing.T) {
	g := openTestGateway(t)
	ctx := context.Background()
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	for i, label := range []string{"00h UTC", "06h UTC", "12h UTC"} {
		row := Row{
			RunLabel:     label,
			UpdatedAt:    base.Add(time.Duration(i*6) * time.Hour),
			NCities:      337,
			SuccessRate:  1.0,
			Quality:      "EXCELLENT",
			MetadataJSON: "{}",
		}
		if err := g.UpsertRun(ctx, row); err != nil {
			t.Fatalf("UpsertRun() error = %v", err)
		}
	}

	rows, err := g.LatestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("LatestRuns() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if rows[0].RunLabel != "12h UTC" {
		t.Errorf("rows[0].RunLabel = %s, want 12h UTC (newest first)", rows[0].RunLabel)
	}
}
