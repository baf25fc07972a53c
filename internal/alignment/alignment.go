// Package alignment computes how well a check-in matches stated intent,
// the rolling collapse early-warning heuristic, and the check-in schedule.
// Everything here is pure apart from the similarity scorer call.
package alignment

import (
	"context"
	"strings"

	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/similarity"
)

// DefaultDriftThreshold is the prior-intent alignment below which a check-in drifts.
const DefaultDriftThreshold = 0.35

// Input is the text of a new check-in.
type Input struct {
	Retrospective string
	Prospective   string
	Target        string
}

// Vectors are the embeddings produced while scoring, kept for replay.
type Vectors struct {
	Retrospective []float32
	Prospective   []float32
	Target        []float32
}

// Result is the outcome of scoring one check-in.
type Result struct {
	AlignmentToPriorIntent *float64
	AlignmentToTarget      *float64
	DriftFlag              bool
	// ScoringMode is the mode of the comparisons that produced a score.
	// A single fallback comparison marks the whole result as fallback.
	ScoringMode string
	Vectors     Vectors
}

// Vectorizer is implemented by scorers that can embed a single text. It
// lets Compute keep the prospective vector even when nothing compared it,
// so the next check-in can be replayed.
type Vectorizer interface {
	Vector(ctx context.Context, text string) []float32
}

// Compute scores a new check-in against the prior one (by insertion order)
// and against its own target. prior may be nil.
func Compute(ctx context.Context, scorer similarity.Scorer, prior *journal.CheckIn, in Input, threshold float64) Result {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	var res Result
	var modes []string

	if prior != nil {
		c := scorer.Compare(ctx, prior.Prospective, in.Retrospective)
		res.AlignmentToPriorIntent = c.Score
		res.Vectors.Retrospective = c.B
		if c.Score != nil {
			modes = append(modes, c.Mode)
		}
	}

	if strings.TrimSpace(in.Target) != "" {
		c := scorer.Compare(ctx, in.Target, in.Prospective)
		res.AlignmentToTarget = c.Score
		res.Vectors.Target = c.A
		res.Vectors.Prospective = c.B
		if c.Score != nil {
			modes = append(modes, c.Mode)
		}
	}

	// Skip extra provider calls once a comparison has already degraded.
	if v, ok := scorer.(Vectorizer); ok && combineModes(modes) != journal.ModeFallback {
		if res.Vectors.Prospective == nil && strings.TrimSpace(in.Prospective) != "" {
			res.Vectors.Prospective = v.Vector(ctx, in.Prospective)
		}
		if res.Vectors.Retrospective == nil && strings.TrimSpace(in.Retrospective) != "" {
			res.Vectors.Retrospective = v.Vector(ctx, in.Retrospective)
		}
	}

	res.DriftFlag = IsDrift(res.AlignmentToPriorIntent, threshold)
	res.ScoringMode = combineModes(modes)
	return res
}

// IsDrift reports whether a prior-intent score is below threshold.
// A nil score is never drift; a score exactly at the threshold is not drift.
func IsDrift(score *float64, threshold float64) bool {
	return score != nil && *score < threshold
}

func combineModes(modes []string) string {
	mode := ""
	for _, m := range modes {
		if m == journal.ModeFallback {
			return journal.ModeFallback
		}
		mode = m
	}
	return mode
}
