package journal

// Export record kinds.
const (
	KindCheckIn = "checkin"
	KindMood    = "mood"
)

// ExportRecord is one line of a JSONL journal export.
// The header line sets AttuneExport; every other line carries Kind and one payload.
type ExportRecord struct {
	// Header detection field - true only for header line
	AttuneExport bool `json:"_attune_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	Kind    string         `json:"kind,omitempty"`
	CheckIn *CheckInRecord `json:"checkin,omitempty"`
	Mood    *MoodRecord    `json:"mood,omitempty"`
}

// CheckInRecord is the export form of a CheckIn. Seq is not exported:
// imported records are appended and receive new sequence numbers in file order.
type CheckInRecord struct {
	ID                     string     `json:"id"`
	Timestamp              int64      `json:"timestamp"`
	Retrospective          string     `json:"retrospective"`
	Prospective            string     `json:"prospective"`
	Target                 string     `json:"target,omitempty"`
	HoursSlept             *float64   `json:"hours_slept,omitempty"`
	AlignmentToPriorIntent *float64   `json:"alignment_to_prior_intent,omitempty"`
	AlignmentToTarget      *float64   `json:"alignment_to_target,omitempty"`
	DriftFlag              bool       `json:"drift_flag"`
	ScoringMode            string     `json:"scoring_mode,omitempty"`
	Embeddings             Embeddings `json:"embeddings,omitempty"`
	CreatedAt              int64      `json:"created_at"`
}

// MoodRecord is the export form of a MoodEntry.
type MoodRecord struct {
	ID             string         `json:"id"`
	Timestamp      int64          `json:"timestamp"`
	Ratings        map[string]int `json:"ratings"`
	PositiveAffect int            `json:"positive_affect"` // IGNORED on import, recomputed
	NegativeAffect int            `json:"negative_affect"` // IGNORED on import, recomputed
	Note           string         `json:"note,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

// CheckInToRecord converts a CheckIn for export.
func CheckInToRecord(c *CheckIn) *CheckInRecord {
	return &CheckInRecord{
		ID:                     c.ID,
		Timestamp:              c.Timestamp,
		Retrospective:          c.Retrospective,
		Prospective:            c.Prospective,
		Target:                 c.Target,
		HoursSlept:             c.HoursSlept,
		AlignmentToPriorIntent: c.AlignmentToPriorIntent,
		AlignmentToTarget:      c.AlignmentToTarget,
		DriftFlag:              c.DriftFlag,
		ScoringMode:            c.ScoringMode,
		Embeddings:             c.Embeddings,
		CreatedAt:              c.CreatedAt,
	}
}

// ToCheckIn converts an export record back to a CheckIn.
// Scores are kept as exported: they describe the history they were computed in.
func (r *CheckInRecord) ToCheckIn() *CheckIn {
	return &CheckIn{
		ID:                     r.ID,
		Timestamp:              r.Timestamp,
		Retrospective:          r.Retrospective,
		Prospective:            r.Prospective,
		Target:                 r.Target,
		HoursSlept:             r.HoursSlept,
		AlignmentToPriorIntent: r.AlignmentToPriorIntent,
		AlignmentToTarget:      r.AlignmentToTarget,
		DriftFlag:              r.DriftFlag,
		ScoringMode:            r.ScoringMode,
		Embeddings:             r.Embeddings,
		CreatedAt:              r.CreatedAt,
	}
}

// MoodToRecord converts a MoodEntry for export.
func MoodToRecord(m *MoodEntry) *MoodRecord {
	return &MoodRecord{
		ID:             m.ID,
		Timestamp:      m.Timestamp,
		Ratings:        m.Ratings,
		PositiveAffect: m.PositiveAffect,
		NegativeAffect: m.NegativeAffect,
		Note:           m.Note,
		CreatedAt:      m.CreatedAt,
	}
}

// ToMood converts an export record back to a MoodEntry, recomputing PA/NA
// from the ratings. Invalid ratings are reported as an error.
func (r *MoodRecord) ToMood() (*MoodEntry, error) {
	ratings, pa, na, err := ScorePANAS(r.Ratings)
	if err != nil {
		return nil, err
	}
	return &MoodEntry{
		ID:             r.ID,
		Timestamp:      r.Timestamp,
		Ratings:        ratings,
		PositiveAffect: pa,
		NegativeAffect: na,
		Note:           r.Note,
		CreatedAt:      r.CreatedAt,
	}, nil
}
