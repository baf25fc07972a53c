package ops

import (
	"crypto/rand"
	"database/sql"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/alignment"
	"github.com/hpungsan/attune/internal/config"
	"github.com/hpungsan/attune/internal/embedding"
	"github.com/hpungsan/attune/internal/logging"
	"github.com/hpungsan/attune/internal/similarity"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Env carries the dependencies every operation needs.
type Env struct {
	DB         *sql.DB
	Cfg        *config.Config
	Embeddings *embedding.Loader
	Log        *zap.Logger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
	// ExportsDir is the default export location; empty means ~/.attune/exports.
	ExportsDir string

	// writeMu serializes appends so "previous check-in" is stable while scoring.
	writeMu sync.Mutex
}

// NewEnv builds an Env. A nil loader means fallback scoring only.
func NewEnv(database *sql.DB, cfg *config.Config, loader *embedding.Loader, log *zap.Logger) *Env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if loader == nil {
		loader = embedding.NewLoader(nil, embedding.LoaderOptions{}, log)
	}
	return &Env{
		DB:         database,
		Cfg:        cfg,
		Embeddings: loader,
		Log:        logging.OrNop(log),
	}
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *zap.Logger {
	return logging.OrNop(e.Log)
}

func (e *Env) config() *config.Config {
	if e.Cfg == nil {
		return config.DefaultConfig()
	}
	return e.Cfg
}

// scorer snapshots the provider once; the mode cannot change mid-operation.
func (e *Env) scorer() similarity.Scorer {
	var emb similarity.Embedder
	if e.Embeddings != nil {
		if p := e.Embeddings.Snapshot(); p != nil {
			emb = p
		}
	}
	return similarity.Select(emb, e.config().EmbedTimeout(), e.logger())
}

func (e *Env) driftThreshold() float64 {
	if t := e.config().DriftThreshold; t > 0 {
		return t
	}
	return alignment.DefaultDriftThreshold
}

func (e *Env) schedule() alignment.Schedule {
	cfg := e.config()
	start, end := cfg.ActiveHours()
	return alignment.Schedule{
		StartHour: start,
		EndHour:   end,
		Interval:  cfg.CheckInInterval(),
	}
}

// collapseOptions maps config thresholds onto the heuristic. Zero values
// are filled in by the alignment package defaults.
func (e *Env) collapseOptions() alignment.Options {
	cfg := e.config()
	return alignment.Options{
		Window:              time.Duration(cfg.CollapseWindowDays) * 24 * time.Hour,
		SleepMinSamples:     cfg.SleepMinSamples,
		SleepMediumBelow:    cfg.SleepMediumBelow,
		SleepHighBelow:      cfg.SleepHighBelow,
		StrainMinSamples:    cfg.StrainMinSamples,
		StrainRatio:         cfg.StrainRatio,
		AlignmentWindow:     cfg.AlignmentTrendWindow,
		AlignmentMinSamples: cfg.AlignmentMinSamples,
		AlignmentRatio:      cfg.AlignmentDeclineRatio,
	}
}

// pageBounds applies limit defaults and bounds.
func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// generateULID generates a new ULID.
func generateULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
