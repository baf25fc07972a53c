package ops

import (
	"context"
	"time"

	"github.com/hpungsan/attune/internal/alignment"
	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/embedding"
)

// Collapse loads the look-back window and runs the collapse heuristic.
// The report is recomputed on every call and never stored.
func Collapse(ctx context.Context, env *Env) (*alignment.Report, error) {
	now := env.now()
	opts := env.collapseOptions()
	window := opts.Window
	if window <= 0 {
		window = alignment.DefaultWindow
	}
	cutoff := now.Add(-window).Unix()

	checkins, err := db.CheckInsSince(ctx, env.DB, cutoff)
	if err != nil {
		return nil, err
	}
	na, err := db.NumericSeries(ctx, env.DB, db.SeriesNegativeAffect, cutoff)
	if err != nil {
		return nil, err
	}

	report := alignment.Assess(now, checkins, na, opts)
	return &report, nil
}

// DueOutput describes whether a check-in is due now.
type DueOutput struct {
	Due           bool   `json:"due"`
	Reason        string `json:"reason"`
	NextDueAt     int64  `json:"next_due_at"`
	LastCheckInAt *int64 `json:"last_checkin_at"`
}

// Due evaluates the schedule against the most recently inserted check-in.
func Due(ctx context.Context, env *Env) (*DueOutput, error) {
	last, err := db.LastCheckIn(ctx, env.DB)
	if err != nil {
		return nil, err
	}

	now := env.now()
	out := &DueOutput{}
	var lastAt *time.Time
	if last != nil {
		t := time.Unix(last.Timestamp, 0).In(now.Location())
		lastAt = &t
		ts := last.Timestamp
		out.LastCheckInAt = &ts
	}

	d := alignment.Evaluate(now, lastAt, env.schedule())
	out.Due = d.Due
	out.Reason = d.Reason
	out.NextDueAt = d.NextDueAt.Unix()
	return out, nil
}

// StatusOutput reports the scoring backend and journal size.
type StatusOutput struct {
	Scoring        embedding.Status `json:"scoring"`
	DriftThreshold float64          `json:"drift_threshold"`
	CheckIns       int              `json:"checkins"`
	Moods          int              `json:"moods"`
}

// Status reports the scoring mode indicator.
func Status(ctx context.Context, env *Env) (*StatusOutput, error) {
	checkins, err := db.CountCheckIns(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	moods, err := db.CountMoods(ctx, env.DB)
	if err != nil {
		return nil, err
	}

	var st embedding.Status
	if env.Embeddings != nil {
		st = env.Embeddings.Status()
	} else {
		st = embedding.NewLoader(nil, embedding.LoaderOptions{}, nil).Status()
	}

	return &StatusOutput{
		Scoring:        st,
		DriftThreshold: env.driftThreshold(),
		CheckIns:       checkins,
		Moods:          moods,
	}, nil
}
