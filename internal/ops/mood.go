package ops

import (
	"context"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
)

// MaxNoteChars bounds the free-text note on a mood entry.
const MaxNoteChars = 2000

// MoodInput contains parameters for the RecordMood operation.
type MoodInput struct {
	Ratings   map[string]int // all 20 PANAS items, each 1..5
	Note      string
	Timestamp *int64 // optional, default: now
}

// MoodOutput contains the result of the RecordMood operation.
type MoodOutput struct {
	ID             string `json:"id"`
	Seq            int64  `json:"seq"`
	Timestamp      int64  `json:"timestamp"`
	PositiveAffect int    `json:"positive_affect"`
	NegativeAffect int    `json:"negative_affect"`
}

// RecordMood scores and appends a PANAS entry.
func RecordMood(ctx context.Context, env *Env, input MoodInput) (*MoodOutput, error) {
	if len(input.Ratings) == 0 {
		return nil, errors.NewInvalidRequest("ratings are required")
	}
	ratings, pa, na, err := journal.ScorePANAS(input.Ratings)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	note := journal.CleanText(input.Note)
	if n := journal.CountChars(note); n > MaxNoteChars {
		return nil, errors.NewTooLarge("note", MaxNoteChars, n)
	}

	now := env.now()
	ts := now.Unix()
	if input.Timestamp != nil {
		if *input.Timestamp <= 0 {
			return nil, errors.NewInvalidRequest("timestamp must be a positive unix time")
		}
		ts = *input.Timestamp
	}

	id, err := generateULID(now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	m := &journal.MoodEntry{
		ID:             id,
		Timestamp:      ts,
		Ratings:        ratings,
		PositiveAffect: pa,
		NegativeAffect: na,
		Note:           note,
		CreatedAt:      now.Unix(),
	}

	env.writeMu.Lock()
	seq, err := db.InsertMood(ctx, env.DB, m)
	env.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	return &MoodOutput{
		ID:             id,
		Seq:            seq,
		Timestamp:      ts,
		PositiveAffect: pa,
		NegativeAffect: na,
	}, nil
}

// MoodListInput contains parameters for the ListMoods operation.
type MoodListInput struct {
	Limit          int
	Offset         int
	IncludeRatings bool
}

// MoodListOutput contains a page of mood entries, newest first.
type MoodListOutput struct {
	Items      []journal.MoodSummary `json:"items"`
	Pagination Pagination            `json:"pagination"`
}

// ListMoods retrieves mood entries with pagination.
func ListMoods(ctx context.Context, env *Env, input MoodListInput) (*MoodListOutput, error) {
	limit, offset := pageBounds(input.Limit, input.Offset)

	moods, err := db.ListMoods(ctx, env.DB, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountMoods(ctx, env.DB)
	if err != nil {
		return nil, err
	}

	items := make([]journal.MoodSummary, 0, len(moods))
	for i := range moods {
		s := moods[i].ToSummary()
		if !input.IncludeRatings {
			s.Ratings = nil
		}
		items = append(items, s)
	}

	return &MoodListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
