package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID                string
	IncludeEmbeddings bool
}

// FetchOutput is a check-in, optionally with its stored vectors.
type FetchOutput struct {
	journal.CheckInSummary
	Embeddings *journal.Embeddings `json:"embeddings,omitempty"`
}

// Fetch retrieves a single check-in by ID.
func Fetch(ctx context.Context, env *Env, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	c, err := db.GetCheckIn(ctx, env.DB, id)
	if err != nil {
		return nil, err
	}

	out := &FetchOutput{CheckInSummary: c.ToSummary()}
	if input.IncludeEmbeddings && !c.Embeddings.IsZero() {
		emb := c.Embeddings
		out.Embeddings = &emb
	}
	return out, nil
}

// ListInput contains parameters for paginated list operations.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListOutput contains a page of check-ins, newest first.
type ListOutput struct {
	Items      []journal.CheckInSummary `json:"items"`
	Pagination Pagination               `json:"pagination"`
	Sort       string                   `json:"sort"`
}

// List retrieves check-in summaries with pagination.
func List(ctx context.Context, env *Env, input ListInput) (*ListOutput, error) {
	limit, offset := pageBounds(input.Limit, input.Offset)

	checkins, err := db.ListCheckIns(ctx, env.DB, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountCheckIns(ctx, env.DB)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	items := make([]journal.CheckInSummary, 0, len(checkins))
	for i := range checkins {
		items = append(items, checkins[i].ToSummary())
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "seq_desc",
	}, nil
}

// LatestOutput contains the most recent check-in, if any.
type LatestOutput struct {
	Item *journal.CheckInSummary `json:"item"`
}

// Latest returns the most recently inserted check-in. Item is nil when the journal is empty.
func Latest(ctx context.Context, env *Env) (*LatestOutput, error) {
	c, err := db.LastCheckIn(ctx, env.DB)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &LatestOutput{}, nil
	}
	s := c.ToSummary()
	return &LatestOutput{Item: &s}, nil
}
