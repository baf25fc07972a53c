package similarity

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/journal"
)

// Comparison is the result of comparing two texts.
type Comparison struct {
	// Score is nil when either text is empty or no score could be produced.
	Score *float64
	// Mode is the strategy that produced Score (journal.ModeSemantic or ModeFallback).
	Mode string
	// A and B are the embedding vectors, when the semantic strategy produced them.
	A, B []float32
}

// Scorer compares two texts. Implementations must be substitutable: same
// value range, same nil semantics.
type Scorer interface {
	Compare(ctx context.Context, a, b string) Comparison
	Mode() string
}

// Embedder maps text to a fixed-length dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Select returns the scorer for a provider snapshot: semantic when emb is
// non-nil, token overlap otherwise. Callers snapshot the provider once per
// operation so the mode cannot change mid-computation.
func Select(emb Embedder, timeout time.Duration, log *zap.Logger) Scorer {
	if emb == nil {
		return TokenOverlap{}
	}
	return NewEmbeddingScorer(emb, timeout, log)
}

// TokenOverlap scores texts by cosine similarity of term-frequency vectors
// over their shared vocabulary.
type TokenOverlap struct{}

// Mode implements Scorer.
func (TokenOverlap) Mode() string { return journal.ModeFallback }

// Compare implements Scorer.
func (TokenOverlap) Compare(_ context.Context, a, b string) Comparison {
	return Comparison{Score: OverlapScore(a, b), Mode: journal.ModeFallback}
}

// OverlapScore is the token-overlap similarity. It is 0 for disjoint
// vocabularies and nil when either text has no tokens after filtering.
func OverlapScore(a, b string) *float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return nil
	}
	va, vb := termVectors(ta, tb)
	sim, ok := Cosine(va, vb)
	if !ok {
		return nil
	}
	return &sim
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
