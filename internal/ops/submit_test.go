package ops

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
)

func TestSubmit_FirstCheckInHasNoPriorScore(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	out, err := Submit(ctx, env, SubmitInput{
		Retrospective: "slept in, answered email",
		Prospective:   "finish quarterly report draft",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)
	require.Equal(t, int64(1), out.Seq)
	require.Equal(t, testNow.Unix(), out.Timestamp)
	require.Empty(t, out.PriorID)
	require.Nil(t, out.AlignmentToPriorIntent)
	require.Nil(t, out.AlignmentToTarget)
	require.False(t, out.DriftFlag)
}

func TestSubmit_FollowedThroughAndDrift_Fallback(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	first, err := Submit(ctx, env, SubmitInput{
		Retrospective: "planning",
		Prospective:   "finish quarterly report draft",
	})
	require.NoError(t, err)

	second, err := Submit(ctx, env, SubmitInput{
		Retrospective: "finish quarterly report draft",
		Prospective:   "review budget spreadsheet",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.PriorID)
	require.NotNil(t, second.AlignmentToPriorIntent)
	require.InDelta(t, 1.0, *second.AlignmentToPriorIntent, 1e-9)
	require.False(t, second.DriftFlag)
	require.Equal(t, journal.ModeFallback, second.ScoringMode)

	third, err := Submit(ctx, env, SubmitInput{
		Retrospective: "watched movies afternoon",
		Prospective:   "sleep early",
	})
	require.NoError(t, err)
	require.Equal(t, second.ID, third.PriorID)
	require.NotNil(t, third.AlignmentToPriorIntent)
	require.InDelta(t, 0.0, *third.AlignmentToPriorIntent, 1e-9)
	require.True(t, third.DriftFlag)
}

func TestSubmit_Semantic(t *testing.T) {
	env, p := newSemanticEnv(t)
	ctx := context.Background()

	_, err := Submit(ctx, env, SubmitInput{
		Retrospective: "inbox",
		Prospective:   "write the report",
	})
	require.NoError(t, err)

	out, err := Submit(ctx, env, SubmitInput{
		Retrospective: "wrote most of the report",
		Prospective:   "go for a run",
		Target:        "stay healthy with a daily run",
	})
	require.NoError(t, err)
	require.Equal(t, journal.ModeSemantic, out.ScoringMode)
	require.NotNil(t, out.AlignmentToPriorIntent)
	require.InDelta(t, 1.0, *out.AlignmentToPriorIntent, 1e-6)
	require.False(t, out.DriftFlag)
	require.NotNil(t, out.AlignmentToTarget)
	require.InDelta(t, 1.0, *out.AlignmentToTarget, 1e-6)
	require.Greater(t, p.calls.Load(), int32(0))

	out, err = Submit(ctx, env, SubmitInput{
		Retrospective: "watched a movie",
		Prospective:   "write the report",
	})
	require.NoError(t, err)
	require.NotNil(t, out.AlignmentToPriorIntent)
	require.InDelta(t, 0.0, *out.AlignmentToPriorIntent, 1e-6)
	require.True(t, out.DriftFlag)
	require.Nil(t, out.AlignmentToTarget)

	// Vectors are persisted for replay.
	c, err := db.GetCheckIn(ctx, env.DB, out.ID)
	require.NoError(t, err)
	require.NotEmpty(t, c.Embeddings.Retrospective)
	require.NotEmpty(t, c.Embeddings.Prospective)
}

func TestSubmit_Validation(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	_, err := Submit(ctx, env, SubmitInput{Retrospective: "  ", Prospective: ""})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	long := strings.Repeat("a", env.Cfg.CheckInMaxChars+1)
	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", Prospective: long})
	require.True(t, errors.Is(err, errors.ErrTooLarge))
	require.Contains(t, err.Error(), "prospective")

	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", HoursSlept: float64Ptr(25)})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", HoursSlept: float64Ptr(-1)})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", HoursSlept: float64Ptr(math.NaN())})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "NaN hours_slept must be rejected")

	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", HoursSlept: float64Ptr(math.Inf(1))})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Submit(ctx, env, SubmitInput{Retrospective: "ok", Timestamp: int64Ptr(0)})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))

	n, err := db.CountCheckIns(ctx, env.DB)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSubmit_OneSidedCheckIn(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	_, err := Submit(ctx, env, SubmitInput{Retrospective: "only looking back"})
	require.NoError(t, err)

	// The prior has no prospective text, so there is nothing to compare against.
	out, err := Submit(ctx, env, SubmitInput{Retrospective: "looking back again", Prospective: "next"})
	require.NoError(t, err)
	require.Nil(t, out.AlignmentToPriorIntent)
	require.False(t, out.DriftFlag)
}

func TestSubmit_StoresOptionalFields(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx := context.Background()

	out, err := Submit(ctx, env, SubmitInput{
		Retrospective: "  trimmed  ",
		Prospective:   "plan",
		HoursSlept:    float64Ptr(6.5),
		Timestamp:     int64Ptr(1700000000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), out.Timestamp)

	got, err := Fetch(ctx, env, FetchInput{ID: out.ID})
	require.NoError(t, err)
	require.Equal(t, "trimmed", got.Retrospective)
	require.NotNil(t, got.HoursSlept)
	require.Equal(t, 6.5, *got.HoursSlept)
}

func TestSubmit_CancelledContext(t *testing.T) {
	env, _ := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Submit(ctx, env, SubmitInput{Retrospective: "a", Prospective: "b"})
	require.Error(t, err)
}
