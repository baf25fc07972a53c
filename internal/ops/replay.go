package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/attune/internal/alignment"
	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
)

// ReplayInput contains parameters for the Replay operation.
type ReplayInput struct {
	ID string
}

// ReplayOutput compares stored scores with scores recomputed from stored
// vectors, or from stored text for fallback-mode check-ins.
type ReplayOutput struct {
	ID       string                 `json:"id"`
	PriorID  string                 `json:"prior_id,omitempty"`
	Mode     string                 `json:"scoring_mode,omitempty"`
	Stored   alignment.ReplayResult `json:"stored"`
	Replayed alignment.ReplayResult `json:"replayed"`
	// Matches is true when both prior-intent scores agree (within float tolerance) and drift agrees.
	Matches bool `json:"matches"`
}

const replayTolerance = 1e-6

// Replay recomputes a check-in's alignment from persisted embeddings, or
// from persisted text when it was scored in fallback mode. No provider is called and the stored record is never modified.
func Replay(ctx context.Context, env *Env, input ReplayInput) (*ReplayOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c, err := db.GetCheckIn(ctx, env.DB, id)
	if err != nil {
		return nil, err
	}
	prior, err := db.PriorCheckIn(ctx, env.DB, c.Seq)
	if err != nil {
		return nil, err
	}

	replayed := alignment.Replay(prior, c, env.driftThreshold(), env.logger())
	stored := alignment.ReplayResult{
		AlignmentToPriorIntent: c.AlignmentToPriorIntent,
		AlignmentToTarget:      c.AlignmentToTarget,
		DriftFlag:              c.DriftFlag,
	}

	out := &ReplayOutput{
		ID:       c.ID,
		Mode:     c.ScoringMode,
		Stored:   stored,
		Replayed: replayed,
		Matches: sameScore(stored.AlignmentToPriorIntent, replayed.AlignmentToPriorIntent) &&
			stored.DriftFlag == replayed.DriftFlag,
	}
	if prior != nil {
		out.PriorID = prior.ID
	}
	return out, nil
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	d := *a - *b
	return d < replayTolerance && d > -replayTolerance
}
