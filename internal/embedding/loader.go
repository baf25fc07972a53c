package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/logging"
)

// Warm-up defaults.
const (
	DefaultWarmupAttempts = 5
	DefaultWarmupBackoff  = 2 * time.Second
	DefaultProbeTimeout   = 10 * time.Second
	maxWarmupBackoff      = 30 * time.Second
)

// Status describes the current scoring backend.
type Status struct {
	Mode       string `json:"mode"`
	Provider   string `json:"provider,omitempty"`
	Configured bool   `json:"configured"`
	Ready      bool   `json:"ready"`
	LastError  string `json:"last_error,omitempty"`
}

// LoaderOptions tunes the background warm-up.
type LoaderOptions struct {
	Attempts     int
	Backoff      time.Duration
	ProbeTimeout time.Duration
}

type published struct {
	p Provider
}

// Loader makes a provider available asynchronously. Until warm-up succeeds
// Snapshot returns nil and scoring runs in fallback mode.
type Loader struct {
	provider Provider
	opts     LoaderOptions
	log      *zap.Logger

	ready   atomic.Pointer[published]
	lastErr atomic.Pointer[string]

	once sync.Once
	done chan struct{}
}

// NewLoader creates a loader for p. A nil p yields a loader that is
// permanently in fallback mode.
func NewLoader(p Provider, opts LoaderOptions, log *zap.Logger) *Loader {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultWarmupAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultWarmupBackoff
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Loader{
		provider: p,
		opts:     opts,
		log:      logging.OrNop(log).Named("embedding"),
		done:     make(chan struct{}),
	}
}

// NewReadyLoader returns a loader with p already published.
func NewReadyLoader(p Provider) *Loader {
	l := NewLoader(p, LoaderOptions{}, nil)
	if p != nil {
		l.ready.Store(&published{p: p})
	}
	l.once.Do(func() { close(l.done) })
	return l
}

// Start launches the warm-up in the background. It is safe to call more
// than once; only the first call has an effect. Cancelling ctx abandons
// the warm-up.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		if l.provider == nil {
			close(l.done)
			return
		}
		go l.warmup(ctx)
	})
}

// Done is closed once the warm-up has finished, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Snapshot returns the ready provider, or nil while loading or after failure.
func (l *Loader) Snapshot() Provider {
	if pub := l.ready.Load(); pub != nil {
		return pub.p
	}
	return nil
}

// Ready reports whether semantic scoring is available.
func (l *Loader) Ready() bool {
	return l.ready.Load() != nil
}

// Status reports the scoring mode indicator.
func (l *Loader) Status() Status {
	st := Status{Mode: journal.ModeFallback, Configured: l.provider != nil}
	if l.provider != nil {
		st.Provider = l.provider.Name()
	}
	if l.Ready() {
		st.Mode = journal.ModeSemantic
		st.Ready = true
	}
	if msg := l.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}

func (l *Loader) warmup(ctx context.Context) {
	defer close(l.done)

	backoff := l.opts.Backoff
	for attempt := 1; attempt <= l.opts.Attempts; attempt++ {
		err := l.probe(ctx)
		if err == nil {
			l.ready.Store(&published{p: l.provider})
			l.lastErr.Store(nil)
			l.log.Info("embedding provider ready",
				zap.String("provider", l.provider.Name()),
				zap.Int("attempt", attempt))
			return
		}

		msg := err.Error()
		l.lastErr.Store(&msg)
		l.log.Warn("embedding provider not ready",
			zap.String("provider", l.provider.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == l.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxWarmupBackoff)
	}
	l.log.Warn("embedding provider unavailable, staying in fallback mode",
		zap.String("provider", l.provider.Name()))
}

// probe uses HealthCheck when available, otherwise a tiny embed.
func (l *Loader) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.opts.ProbeTimeout)
	defer cancel()

	if hc, ok := l.provider.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	_, err := l.provider.Embed(ctx, "warm up")
	return err
}
