package journal

// Scoring modes recorded on a check-in.
const (
	ModeSemantic = "semantic" // embedding cosine similarity
	ModeFallback = "fallback" // token-overlap cosine similarity
)

// CheckIn is one journaling record for a 3-hour block.
// Check-ins are append-only: once stored they are never updated or deleted.
type CheckIn struct {
	// ID is a ULID that uniquely identifies this check-in
	ID string

	// Seq is the insertion sequence assigned by the store.
	// "Previous check-in" always means the highest Seq below this one, never the
	// closest Timestamp, so inaccurate device clocks cannot reorder history.
	Seq int64

	// Timestamp is the Unix time the check-in refers to
	Timestamp int64

	// Retrospective is what the user did during the block (may be empty)
	Retrospective string

	// Prospective is the stated intent for the next block (may be empty)
	Prospective string

	// Target is an optional, separately captured direction the prospective text
	// is compared against. Empty means no target was given.
	Target string

	// HoursSlept is an optional sleep observation
	HoursSlept *float64

	// AlignmentToPriorIntent is sim(previous.Prospective, Retrospective)
	AlignmentToPriorIntent *float64

	// AlignmentToTarget is sim(Target, Prospective)
	AlignmentToTarget *float64

	// DriftFlag is true when AlignmentToPriorIntent is present and below the drift threshold
	DriftFlag bool

	// ScoringMode is ModeSemantic, ModeFallback, or empty if nothing was scored
	ScoringMode string

	// Embeddings holds the serialized vectors used for scoring, kept for replay only
	Embeddings Embeddings

	// CreatedAt is the Unix timestamp when the check-in was stored
	CreatedAt int64
}

// Embeddings holds raw JSON-encoded vectors as stored. Empty means absent.
// They are decoded lazily so a malformed value never blocks reading a check-in.
type Embeddings struct {
	Retrospective string `json:"retrospective,omitempty"`
	Prospective   string `json:"prospective,omitempty"`
	Target        string `json:"target,omitempty"`
}

// IsZero reports whether no vectors are stored.
func (e Embeddings) IsZero() bool {
	return e.Retrospective == "" && e.Prospective == "" && e.Target == ""
}

// CheckInSummary is the public view of a check-in without stored vectors.
type CheckInSummary struct {
	ID                     string   `json:"id"`
	Seq                    int64    `json:"seq"`
	Timestamp              int64    `json:"timestamp"`
	Retrospective          string   `json:"retrospective"`
	Prospective            string   `json:"prospective"`
	Target                 string   `json:"target,omitempty"`
	HoursSlept             *float64 `json:"hours_slept,omitempty"`
	AlignmentToPriorIntent *float64 `json:"alignment_to_prior_intent"`
	AlignmentToTarget      *float64 `json:"alignment_to_target"`
	DriftFlag              bool     `json:"drift_flag"`
	ScoringMode            string   `json:"scoring_mode,omitempty"`
	CreatedAt              int64    `json:"created_at"`
}

// ToSummary converts a CheckIn to its public summary.
func (c *CheckIn) ToSummary() CheckInSummary {
	return CheckInSummary{
		ID:                     c.ID,
		Seq:                    c.Seq,
		Timestamp:              c.Timestamp,
		Retrospective:          c.Retrospective,
		Prospective:            c.Prospective,
		Target:                 c.Target,
		HoursSlept:             c.HoursSlept,
		AlignmentToPriorIntent: c.AlignmentToPriorIntent,
		AlignmentToTarget:      c.AlignmentToTarget,
		DriftFlag:              c.DriftFlag,
		ScoringMode:            c.ScoringMode,
		CreatedAt:              c.CreatedAt,
	}
}

// SeriesPoint is one observation of an auxiliary numeric series.
type SeriesPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}
