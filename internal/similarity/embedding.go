package similarity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/logging"
)

// DefaultEmbedTimeout bounds one comparison when no timeout is configured.
const DefaultEmbedTimeout = 4 * time.Second

// EmbeddingScorer scores texts by cosine similarity of provider embeddings.
// Provider errors and timeouts degrade to token overlap; they never reach the caller.
type EmbeddingScorer struct {
	emb     Embedder
	timeout time.Duration
	log     *zap.Logger
}

// NewEmbeddingScorer creates a semantic scorer. A non-positive timeout uses DefaultEmbedTimeout.
func NewEmbeddingScorer(emb Embedder, timeout time.Duration, log *zap.Logger) *EmbeddingScorer {
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	return &EmbeddingScorer{
		emb:     emb,
		timeout: timeout,
		log:     logging.OrNop(log).Named("similarity"),
	}
}

// Mode implements Scorer.
func (s *EmbeddingScorer) Mode() string { return journal.ModeSemantic }

// Compare implements Scorer.
func (s *EmbeddingScorer) Compare(ctx context.Context, a, b string) Comparison {
	if blank(a) || blank(b) {
		return Comparison{Mode: journal.ModeSemantic}
	}

	va, vb, err := s.embedPair(ctx, a, b)
	if err != nil {
		s.log.Warn("embedding failed, using token overlap",
			zap.String("provider", s.emb.Name()),
			zap.Duration("timeout", s.timeout),
			zap.Error(err))
		return TokenOverlap{}.Compare(ctx, a, b)
	}

	if len(va) != len(vb) {
		s.log.Error("embedding dimension mismatch",
			zap.String("provider", s.emb.Name()),
			zap.Int("len_a", len(va)),
			zap.Int("len_b", len(vb)))
		return Comparison{Mode: journal.ModeSemantic, A: va, B: vb}
	}

	sim, ok := Cosine(va, vb)
	if !ok {
		s.log.Debug("embedding produced no score (empty or zero vector)")
		return Comparison{Mode: journal.ModeSemantic, A: va, B: vb}
	}
	return Comparison{Score: &sim, Mode: journal.ModeSemantic, A: va, B: vb}
}

// embedPair embeds both texts concurrently under the scorer timeout.
func (s *EmbeddingScorer) embedPair(ctx context.Context, a, b string) ([]float32, []float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var va, vb []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.embed(gctx, a)
		va = v
		return err
	})
	g.Go(func() error {
		v, err := s.embed(gctx, b)
		vb = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return va, vb, nil
}

// embed calls the provider but returns as soon as ctx is done, even if the
// provider ignores cancellation. The result channel is buffered so the
// provider goroutine can always finish.
func (s *EmbeddingScorer) embed(ctx context.Context, text string) ([]float32, error) {
	type result struct {
		v   []float32
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := s.emb.Embed(ctx, text)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.v) == 0 {
			return nil, fmt.Errorf("provider %s returned an empty vector", s.emb.Name())
		}
		return r.v, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("embed: %w", ctx.Err())
	}
}

// Vector embeds a single text under the scorer timeout. It returns nil for
// blank text or on any provider failure.
func (s *EmbeddingScorer) Vector(ctx context.Context, text string) []float32 {
	if blank(text) {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.embed(ctx, text)
	if err != nil {
		s.log.Warn("embedding for replay failed",
			zap.String("provider", s.emb.Name()),
			zap.Error(err))
		return nil
	}
	return v
}
