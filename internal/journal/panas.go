package journal

import (
	"fmt"
	"sort"
	"strings"
)

// PANAS rating bounds (1 = very slightly or not at all, 5 = extremely).
const (
	MinRating = 1
	MaxRating = 5
)

// PositiveItems are the ten positive-affect adjectives of the PANAS.
var PositiveItems = []string{
	"interested", "excited", "strong", "enthusiastic", "proud",
	"alert", "inspired", "determined", "attentive", "active",
}

// NegativeItems are the ten negative-affect adjectives of the PANAS.
var NegativeItems = []string{
	"distressed", "upset", "guilty", "scared", "hostile",
	"irritable", "ashamed", "nervous", "jittery", "afraid",
}

// MoodEntry is one completed PANAS questionnaire.
type MoodEntry struct {
	ID             string
	Seq            int64
	Timestamp      int64
	Ratings        map[string]int
	PositiveAffect int
	NegativeAffect int
	Note           string
	CreatedAt      int64
}

// MoodSummary is the public view of a mood entry.
type MoodSummary struct {
	ID             string         `json:"id"`
	Seq            int64          `json:"seq"`
	Timestamp      int64          `json:"timestamp"`
	PositiveAffect int            `json:"positive_affect"`
	NegativeAffect int            `json:"negative_affect"`
	Ratings        map[string]int `json:"ratings,omitempty"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

// ToSummary converts a MoodEntry to its public summary.
func (m *MoodEntry) ToSummary() MoodSummary {
	return MoodSummary{
		ID:             m.ID,
		Seq:            m.Seq,
		Timestamp:      m.Timestamp,
		PositiveAffect: m.PositiveAffect,
		NegativeAffect: m.NegativeAffect,
		Ratings:        m.Ratings,
		Note:           m.Note,
		CreatedAt:      m.CreatedAt,
	}
}

// ScorePANAS validates a full set of 20 item ratings and returns the
// positive and negative affect sums (each in 10..50).
// Item names are matched case-insensitively; the returned map uses canonical names.
func ScorePANAS(ratings map[string]int) (map[string]int, int, int, error) {
	canonical := make(map[string]int, len(ratings))
	for name, v := range ratings {
		key := Normalize(name)
		if !isItem(key) {
			return nil, 0, 0, fmt.Errorf("unknown PANAS item %q", name)
		}
		if _, dup := canonical[key]; dup {
			return nil, 0, 0, fmt.Errorf("duplicate PANAS item %q", name)
		}
		if v < MinRating || v > MaxRating {
			return nil, 0, 0, fmt.Errorf("rating for %q must be between %d and %d, got %d", key, MinRating, MaxRating, v)
		}
		canonical[key] = v
	}

	var missing []string
	pa, na := 0, 0
	for _, item := range PositiveItems {
		v, ok := canonical[item]
		if !ok {
			missing = append(missing, item)
			continue
		}
		pa += v
	}
	for _, item := range NegativeItems {
		v, ok := canonical[item]
		if !ok {
			missing = append(missing, item)
			continue
		}
		na += v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, 0, 0, fmt.Errorf("missing PANAS items: %s", strings.Join(missing, ", "))
	}

	return canonical, pa, na, nil
}

func isItem(name string) bool {
	for _, item := range PositiveItems {
		if item == name {
			return true
		}
	}
	for _, item := range NegativeItems {
		if item == name {
			return true
		}
	}
	return false
}
