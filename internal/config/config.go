package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// CheckInMaxChars is the maximum character count for each check-in text field.
	CheckInMaxChars int `json:"checkin_max_chars"`

	// DriftThreshold is the alignment score below which a check-in is flagged as drift.
	DriftThreshold float64 `json:"drift_threshold"`

	// CheckInIntervalHours is the minimum gap between check-ins before another is due.
	CheckInIntervalHours float64 `json:"checkin_interval_hours"`

	// ActiveStartHour and ActiveEndHour bound the local-time window [start, end)
	// in which check-ins can be due. They are pointers so that midnight (0)
	// is distinguishable from "not set".
	ActiveStartHour *int `json:"active_start_hour,omitempty"`
	ActiveEndHour   *int `json:"active_end_hour,omitempty"`

	// PollIntervalMinutes controls how often `attune watch` re-evaluates the due predicate.
	PollIntervalMinutes int `json:"poll_interval_minutes"`

	// AlignmentTrendWindow is how many recent alignment scores the decline signal looks at.
	AlignmentTrendWindow int `json:"alignment_trend_window"`

	// Collapse thresholds. Zero uses the built-in default for that threshold.
	CollapseWindowDays    int     `json:"collapse_window_days,omitempty"`
	SleepMinSamples       int     `json:"sleep_min_samples,omitempty"`
	SleepMediumBelow      float64 `json:"sleep_medium_below,omitempty"`
	SleepHighBelow        float64 `json:"sleep_high_below,omitempty"`
	StrainMinSamples      int     `json:"strain_min_samples,omitempty"`
	StrainRatio           float64 `json:"strain_ratio,omitempty"`
	AlignmentMinSamples   int     `json:"alignment_min_samples,omitempty"`
	AlignmentDeclineRatio float64 `json:"alignment_decline_ratio,omitempty"`

	// EmbeddingProvider selects the semantic scorer backend: "", "none", "ollama" or "genai".
	// Empty or "none" keeps token-overlap scoring only.
	EmbeddingProvider string `json:"embedding_provider,omitempty"`

	OllamaEndpoint string `json:"ollama_endpoint,omitempty"`
	OllamaModel    string `json:"ollama_model,omitempty"`
	OllamaToken    string `json:"ollama_token,omitempty"`

	GenAIAPIKey string `json:"genai_api_key,omitempty"`
	GenAIModel  string `json:"genai_model,omitempty"`

	// EmbedTimeoutMillis bounds a single embedding comparison. On timeout the
	// scorer falls back to token overlap instead of blocking the check-in.
	EmbedTimeoutMillis int `json:"embed_timeout_ms"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.attune/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool of a type ("checkin", "mood", ...).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CheckInMaxChars:      8000,
		DriftThreshold:       0.35,
		CheckInIntervalHours: 3,
		ActiveStartHour:      intPtr(8),
		ActiveEndHour:        intPtr(20),
		PollIntervalMinutes:  5,
		AlignmentTrendWindow: 5,
		OllamaEndpoint:       "http://localhost:11434",
		OllamaModel:          "nomic-embed-text",
		GenAIModel:           "gemini-embedding-001",
		EmbedTimeoutMillis:   4000,
		LogLevel:             "info",
	}
}

// ActiveHours returns the [start, end) window, using 8..20 for unset bounds.
func (c *Config) ActiveHours() (start, end int) {
	start, end = 8, 20
	if c.ActiveStartHour != nil {
		start = *c.ActiveStartHour
	}
	if c.ActiveEndHour != nil {
		end = *c.ActiveEndHour
	}
	return start, end
}

// SetActiveHours sets both bounds of the active window.
func (c *Config) SetActiveHours(start, end int) {
	c.ActiveStartHour = intPtr(start)
	c.ActiveEndHour = intPtr(end)
}

// CheckInInterval returns the configured interval as a duration.
func (c *Config) CheckInInterval() time.Duration {
	return time.Duration(c.CheckInIntervalHours * float64(time.Hour))
}

// PollInterval returns the watcher polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// EmbedTimeout returns the per-comparison embedding timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutMillis) * time.Millisecond
}

// Load loads configuration from baseDir/config.json, then applies the
// environment overlay (baseDir/.env and ATTUNE_* variables).
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load(filepath.Join(baseDir, ".env"))
	ApplyEnv(cfg)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ApplyEnv overrides config values from ATTUNE_* environment variables.
func ApplyEnv(cfg *Config) {
	cfg.EmbeddingProvider = envOrDefault("ATTUNE_EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.OllamaEndpoint = envOrDefault("ATTUNE_OLLAMA_ENDPOINT", cfg.OllamaEndpoint)
	cfg.OllamaModel = envOrDefault("ATTUNE_OLLAMA_MODEL", cfg.OllamaModel)
	cfg.OllamaToken = envOrDefault("ATTUNE_OLLAMA_TOKEN", cfg.OllamaToken)
	cfg.GenAIAPIKey = envOrDefault("ATTUNE_GENAI_API_KEY", envOrDefault("GEMINI_API_KEY", cfg.GenAIAPIKey))
	cfg.GenAIModel = envOrDefault("ATTUNE_GENAI_MODEL", cfg.GenAIModel)
	cfg.LogLevel = envOrDefault("ATTUNE_LOG_LEVEL", cfg.LogLevel)
	cfg.EmbedTimeoutMillis = envOrDefaultInt("ATTUNE_EMBED_TIMEOUT_MS", cfg.EmbedTimeoutMillis)
	cfg.DriftThreshold = envOrDefaultFloat("ATTUNE_DRIFT_THRESHOLD", cfg.DriftThreshold)
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.CheckInMaxChars = pickInt(overlay.CheckInMaxChars, base.CheckInMaxChars)
	result.DriftThreshold = pickFloat(overlay.DriftThreshold, base.DriftThreshold)
	result.CheckInIntervalHours = pickFloat(overlay.CheckInIntervalHours, base.CheckInIntervalHours)
	result.ActiveStartHour = pickIntPtr(overlay.ActiveStartHour, base.ActiveStartHour)
	result.ActiveEndHour = pickIntPtr(overlay.ActiveEndHour, base.ActiveEndHour)
	result.PollIntervalMinutes = pickInt(overlay.PollIntervalMinutes, base.PollIntervalMinutes)
	result.AlignmentTrendWindow = pickInt(overlay.AlignmentTrendWindow, base.AlignmentTrendWindow)
	result.EmbedTimeoutMillis = pickInt(overlay.EmbedTimeoutMillis, base.EmbedTimeoutMillis)
	result.CollapseWindowDays = pickInt(overlay.CollapseWindowDays, base.CollapseWindowDays)
	result.SleepMinSamples = pickInt(overlay.SleepMinSamples, base.SleepMinSamples)
	result.SleepMediumBelow = pickFloat(overlay.SleepMediumBelow, base.SleepMediumBelow)
	result.SleepHighBelow = pickFloat(overlay.SleepHighBelow, base.SleepHighBelow)
	result.StrainMinSamples = pickInt(overlay.StrainMinSamples, base.StrainMinSamples)
	result.StrainRatio = pickFloat(overlay.StrainRatio, base.StrainRatio)
	result.AlignmentMinSamples = pickInt(overlay.AlignmentMinSamples, base.AlignmentMinSamples)
	result.AlignmentDeclineRatio = pickFloat(overlay.AlignmentDeclineRatio, base.AlignmentDeclineRatio)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.EmbeddingProvider = pickString(overlay.EmbeddingProvider, base.EmbeddingProvider)
	result.OllamaEndpoint = pickString(overlay.OllamaEndpoint, base.OllamaEndpoint)
	result.OllamaModel = pickString(overlay.OllamaModel, base.OllamaModel)
	result.OllamaToken = pickString(overlay.OllamaToken, base.OllamaToken)
	result.GenAIAPIKey = pickString(overlay.GenAIAPIKey, base.GenAIAPIKey)
	result.GenAIModel = pickString(overlay.GenAIModel, base.GenAIModel)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// pickIntPtr treats nil as unset, so an explicit zero overrides base.
func pickIntPtr(overlay, base *int) *int {
	if overlay != nil {
		return intPtr(*overlay)
	}
	if base != nil {
		return intPtr(*base)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func pickFloat(overlay, base float64) float64 {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
