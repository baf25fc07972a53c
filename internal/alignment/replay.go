package alignment

import (
	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/logging"
	"github.com/hpungsan/attune/internal/similarity"
)

// ReplayResult is a recomputation of a stored check-in's scores.
type ReplayResult struct {
	AlignmentToPriorIntent *float64 `json:"alignment_to_prior_intent"`
	AlignmentToTarget      *float64 `json:"alignment_to_target"`
	DriftFlag              bool     `json:"drift_flag"`
}

// Replay recomputes alignments from persisted embedding vectors without
// calling any provider. Missing or malformed vectors yield nil scores,
// except for fallback-mode check-ins: their pairs never had vectors, so
// token overlap is recomputed from the stored text instead.
func Replay(prior, c *journal.CheckIn, threshold float64, log *zap.Logger) ReplayResult {
	log = logging.OrNop(log)
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	fromText := c.ScoringMode == journal.ModeFallback

	var res ReplayResult
	if prior != nil {
		res.AlignmentToPriorIntent = replayPair(log, c.ID,
			"prior.prospective", prior.Embeddings.Prospective,
			"retrospective", c.Embeddings.Retrospective)
		if res.AlignmentToPriorIntent == nil && fromText {
			res.AlignmentToPriorIntent = similarity.OverlapScore(prior.Prospective, c.Retrospective)
		}
	}
	if c.Target != "" {
		res.AlignmentToTarget = replayPair(log, c.ID,
			"target", c.Embeddings.Target,
			"prospective", c.Embeddings.Prospective)
		if res.AlignmentToTarget == nil && fromText {
			res.AlignmentToTarget = similarity.OverlapScore(c.Target, c.Prospective)
		}
	}
	res.DriftFlag = IsDrift(res.AlignmentToPriorIntent, threshold)
	return res
}

func replayPair(log *zap.Logger, id, nameA, rawA, nameB, rawB string) *float64 {
	a := decodeOrAbsent(log, id, nameA, rawA)
	b := decodeOrAbsent(log, id, nameB, rawB)
	if a == nil || b == nil {
		return nil
	}
	if len(a) != len(b) {
		log.Error("stored embedding dimension mismatch",
			zap.String("id", id),
			zap.Int("len_a", len(a)),
			zap.Int("len_b", len(b)))
		return nil
	}
	sim, ok := similarity.Cosine(a, b)
	if !ok {
		return nil
	}
	return &sim
}

func decodeOrAbsent(log *zap.Logger, id, field, raw string) []float32 {
	v, err := similarity.DecodeVector(raw)
	if err != nil {
		log.Warn("malformed stored embedding, treating as absent",
			zap.String("id", id),
			zap.String("field", field),
			zap.Error(err))
		return nil
	}
	return v
}
