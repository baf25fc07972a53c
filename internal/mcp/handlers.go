package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/logging"
	"github.com/hpungsan/attune/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// SubmitRequest represents the arguments for checkin_submit.
type SubmitRequest struct {
	Retrospective string   `json:"retrospective,omitempty"`
	Prospective   string   `json:"prospective,omitempty"`
	Target        string   `json:"target,omitempty"`
	HoursSlept    *float64 `json:"hours_slept,omitempty"`
	Timestamp     *int64   `json:"timestamp,omitempty"`
}

// FetchRequest represents the arguments for checkin_fetch.
type FetchRequest struct {
	ID                string `json:"id"`
	IncludeEmbeddings bool   `json:"include_embeddings,omitempty"`
}

// ListRequest represents the arguments for checkin_list and mood_list.
type ListRequest struct {
	Limit          int  `json:"limit,omitempty"`
	Offset         int  `json:"offset,omitempty"`
	IncludeRatings bool `json:"include_ratings,omitempty"`
}

// ReplayRequest represents the arguments for checkin_replay.
type ReplayRequest struct {
	ID string `json:"id"`
}

// MoodRequest represents the arguments for mood_record.
type MoodRequest struct {
	Ratings   map[string]int `json:"ratings"`
	Note      string         `json:"note,omitempty"`
	Timestamp *int64         `json:"timestamp,omitempty"`
}

// ExportRequest represents the arguments for journal_export.
type ExportRequest struct {
	Path       string `json:"path,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// ImportRequest represents the arguments for journal_import.
type ImportRequest struct {
	Path       string `json:"path"`
	Passphrase string `json:"passphrase,omitempty"`
	Mode       string `json:"mode,omitempty"`
}

// HandleSubmit handles the checkin_submit tool call.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SubmitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Submit(ctx, h.env, ops.SubmitInput{
		Retrospective: input.Retrospective,
		Prospective:   input.Prospective,
		Target:        input.Target,
		HoursSlept:    input.HoursSlept,
		Timestamp:     input.Timestamp,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleFetch handles the checkin_fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.env, ops.FetchInput{
		ID:                input.ID,
		IncludeEmbeddings: input.IncludeEmbeddings,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleList handles the checkin_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.env, ops.ListInput{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleLatest handles the checkin_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Latest(ctx, h.env)
	if err != nil {
		return h.fail(err), nil
	}
	return successResult(result)
}

// HandleReplay handles the checkin_replay tool call.
func (h *Handlers) HandleReplay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReplayRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Replay(ctx, h.env, ops.ReplayInput{ID: input.ID})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleDue handles the checkin_due tool call.
func (h *Handlers) HandleDue(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Due(ctx, h.env)
	if err != nil {
		return h.fail(err), nil
	}
	return successResult(result)
}

// HandleMoodRecord handles the mood_record tool call.
func (h *Handlers) HandleMoodRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MoodRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RecordMood(ctx, h.env, ops.MoodInput{
		Ratings:   input.Ratings,
		Note:      input.Note,
		Timestamp: input.Timestamp,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleMoodList handles the mood_list tool call.
func (h *Handlers) HandleMoodList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListMoods(ctx, h.env, ops.MoodListInput{
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeRatings: input.IncludeRatings,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleCollapse handles the collapse_status tool call.
func (h *Handlers) HandleCollapse(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Collapse(ctx, h.env)
	if err != nil {
		return h.fail(err), nil
	}
	return successResult(result)
}

// HandleScoringStatus handles the scoring_status tool call.
func (h *Handlers) HandleScoringStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.env)
	if err != nil {
		return h.fail(err), nil
	}
	return successResult(result)
}

// HandleExport handles the journal_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Path:       input.Path,
		Passphrase: input.Passphrase,
	})
	if err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// HandleImport handles the journal_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	mode := ops.ImportMode(input.Mode)
	result, err := ops.Import(ctx, h.env, ops.ImportInput{
		Path:       input.Path,
		Passphrase: input.Passphrase,
		Mode:       mode,
	})
	if err != nil {
		return h.fail(err), nil
	}
	if err := result.Failure(mode); err != nil {
		return h.fail(err), nil
	}

	return successResult(result)
}

// Result helpers

// fail logs errors that are masked from the client, then builds the result.
func (h *Handlers) fail(err error) *mcp.CallToolResult {
	var aErr *errors.AttuneError
	if !stderrors.As(err, &aErr) || aErr.Code == errors.ErrInternal {
		logging.OrNop(h.env.Log).Error("tool call failed", zap.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var aErr *errors.AttuneError
	if stderrors.As(err, &aErr) {
		msg := aErr.Message
		switch {
		case aErr.Code == errors.ErrInternal:
			msg = "an internal error occurred"
		case err != error(aErr):
			// Keep wrapper context for non-internal errors.
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    aErr.Code,
			"message": msg,
			"status":  aErr.Status,
		}
		if aErr.Code != errors.ErrInternal && aErr.Details != nil {
			errorObj["details"] = aErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
