package ops

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/alignment"
	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/similarity"
)

// SubmitInput contains parameters for the Submit operation.
type SubmitInput struct {
	Retrospective string   // what happened in the last block
	Prospective   string   // intent for the next block
	Target        string   // optional separate direction to compare Prospective against
	HoursSlept    *float64 // optional, 0..24
	Timestamp     *int64   // optional, default: now
}

// SubmitOutput contains the result of the Submit operation.
type SubmitOutput struct {
	ID                     string   `json:"id"`
	Seq                    int64    `json:"seq"`
	Timestamp              int64    `json:"timestamp"`
	PriorID                string   `json:"prior_id,omitempty"`
	AlignmentToPriorIntent *float64 `json:"alignment_to_prior_intent"`
	AlignmentToTarget      *float64 `json:"alignment_to_target"`
	DriftFlag              bool     `json:"drift_flag"`
	ScoringMode            string   `json:"scoring_mode,omitempty"`
}

// Submit validates and appends a check-in, scoring it against the
// previously inserted one. Scoring problems never block the append.
func Submit(ctx context.Context, env *Env, input SubmitInput) (*SubmitOutput, error) {
	retro := journal.CleanText(input.Retrospective)
	pro := journal.CleanText(input.Prospective)
	target := journal.CleanText(input.Target)

	if retro == "" && pro == "" {
		return nil, errors.NewInvalidRequest("retrospective or prospective is required")
	}
	maxChars := env.config().CheckInMaxChars
	fields := []struct{ name, text string }{
		{"retrospective", retro},
		{"prospective", pro},
		{"target", target},
	}
	for _, f := range fields {
		if n := journal.CountChars(f.text); maxChars > 0 && n > maxChars {
			return nil, errors.NewTooLarge(f.name, maxChars, n)
		}
	}
	if !validHoursSlept(input.HoursSlept) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("hours_slept must be between 0 and 24, got %g", *input.HoursSlept))
	}

	now := env.now()
	ts := now.Unix()
	if input.Timestamp != nil {
		if *input.Timestamp <= 0 {
			return nil, errors.NewInvalidRequest("timestamp must be a positive unix time")
		}
		ts = *input.Timestamp
	}

	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	env.writeMu.Lock()
	defer env.writeMu.Unlock()

	prior, err := db.LastCheckIn(ctx, env.DB)
	if err != nil {
		return nil, err
	}

	res := alignment.Compute(ctx, env.scorer(), prior,
		alignment.Input{Retrospective: retro, Prospective: pro, Target: target},
		env.driftThreshold())

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("submit")
	}

	c := &journal.CheckIn{
		ID:                     id,
		Timestamp:              ts,
		Retrospective:          retro,
		Prospective:            pro,
		Target:                 target,
		HoursSlept:             input.HoursSlept,
		AlignmentToPriorIntent: res.AlignmentToPriorIntent,
		AlignmentToTarget:      res.AlignmentToTarget,
		DriftFlag:              res.DriftFlag,
		ScoringMode:            res.ScoringMode,
		Embeddings:             env.encodeVectors(id, res.Vectors),
		CreatedAt:              now.Unix(),
	}

	seq, err := db.InsertCheckIn(ctx, env.DB, c)
	if err != nil {
		return nil, err
	}

	out := &SubmitOutput{
		ID:                     id,
		Seq:                    seq,
		Timestamp:              ts,
		AlignmentToPriorIntent: c.AlignmentToPriorIntent,
		AlignmentToTarget:      c.AlignmentToTarget,
		DriftFlag:              c.DriftFlag,
		ScoringMode:            c.ScoringMode,
	}
	if prior != nil {
		out.PriorID = prior.ID
	}

	env.logger().Debug("check-in stored",
		zap.String("id", id),
		zap.Int64("seq", seq),
		zap.Bool("drift", c.DriftFlag),
		zap.String("mode", c.ScoringMode))
	return out, nil
}

// encodeVectors serializes scoring vectors. An encode failure drops the
// vector; it never fails the submission.
func (e *Env) encodeVectors(id string, v alignment.Vectors) journal.Embeddings {
	enc := func(field string, vec []float32) string {
		raw, err := similarity.EncodeVector(vec)
		if err != nil {
			e.logger().Warn("dropping unencodable embedding",
				zap.String("id", id), zap.String("field", field), zap.Error(err))
			return ""
		}
		return raw
	}
	return journal.Embeddings{
		Retrospective: enc("retrospective", v.Retrospective),
		Prospective:   enc("prospective", v.Prospective),
		Target:        enc("target", v.Target),
	}
}

// validHoursSlept accepts nil or a finite value in [0, 24]. NaN compares
// false against both bounds, so it is rejected explicitly.
func validHoursSlept(h *float64) bool {
	if h == nil {
		return true
	}
	return !math.IsNaN(*h) && *h >= 0 && *h <= 24
}
