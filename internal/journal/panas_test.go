package journal

import (
	"strings"
	"testing"
)

// fullRatings returns a complete PANAS rating set with every positive item at
// pos and every negative item at neg.
func fullRatings(pos, neg int) map[string]int {
	r := make(map[string]int, 20)
	for _, item := range PositiveItems {
		r[item] = pos
	}
	for _, item := range NegativeItems {
		r[item] = neg
	}
	return r
}

func TestScorePANAS_Sums(t *testing.T) {
	tests := []struct {
		name   string
		pos    int
		neg    int
		wantPA int
		wantNA int
	}{
		{"minimum", 1, 1, 10, 10},
		{"maximum", 5, 5, 50, 50},
		{"mixed", 4, 2, 40, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pa, na, err := ScorePANAS(fullRatings(tt.pos, tt.neg))
			if err != nil {
				t.Fatalf("ScorePANAS() error = %v", err)
			}
			if pa != tt.wantPA {
				t.Errorf("PA = %d, want %d", pa, tt.wantPA)
			}
			if na != tt.wantNA {
				t.Errorf("NA = %d, want %d", na, tt.wantNA)
			}
		})
	}
}

func TestScorePANAS_CaseInsensitiveNames(t *testing.T) {
	r := fullRatings(3, 1)
	delete(r, "interested")
	r["  Interested "] = 5

	canonical, pa, _, err := ScorePANAS(r)
	if err != nil {
		t.Fatalf("ScorePANAS() error = %v", err)
	}
	if canonical["interested"] != 5 {
		t.Errorf("canonical[interested] = %d, want 5", canonical["interested"])
	}
	if pa != 32 {
		t.Errorf("PA = %d, want 32", pa)
	}
}

func TestScorePANAS_Errors(t *testing.T) {
	t.Run("missing items", func(t *testing.T) {
		r := fullRatings(3, 3)
		delete(r, "afraid")
		delete(r, "alert")
		_, _, _, err := ScorePANAS(r)
		if err == nil {
			t.Fatal("expected error for missing items")
		}
		if !strings.Contains(err.Error(), "afraid, alert") {
			t.Errorf("error = %q, want sorted missing list", err.Error())
		}
	})

	t.Run("out of range", func(t *testing.T) {
		r := fullRatings(3, 3)
		r["upset"] = 6
		if _, _, _, err := ScorePANAS(r); err == nil {
			t.Fatal("expected error for rating 6")
		}
		r["upset"] = 0
		if _, _, _, err := ScorePANAS(r); err == nil {
			t.Fatal("expected error for rating 0")
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		r := fullRatings(3, 3)
		r["sleepy"] = 2
		if _, _, _, err := ScorePANAS(r); err == nil {
			t.Fatal("expected error for unknown item")
		}
	})

	t.Run("duplicate after normalization", func(t *testing.T) {
		r := fullRatings(3, 3)
		r["PROUD"] = 2
		if _, _, _, err := ScorePANAS(r); err == nil {
			t.Fatal("expected error for duplicate item")
		}
	})
}

func TestMoodRecord_ToMoodRecomputes(t *testing.T) {
	rec := MoodRecord{
		ID:             "01TEST",
		Timestamp:      100,
		Ratings:        fullRatings(2, 4),
		PositiveAffect: 999,
		NegativeAffect: 999,
	}
	m, err := rec.ToMood()
	if err != nil {
		t.Fatalf("ToMood() error = %v", err)
	}
	if m.PositiveAffect != 20 || m.NegativeAffect != 40 {
		t.Errorf("PA/NA = %d/%d, want 20/40", m.PositiveAffect, m.NegativeAffect)
	}
}
