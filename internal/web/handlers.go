package web

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/attune/internal/errors"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
	log      *zap.Logger
}

// dashboardRecent is how many check-ins the dashboard shows.
const dashboardRecent = 5

// HandleDashboard handles GET /: latest check-in, due state and collapse signals.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recent, err := ops.List(ctx, h.env, ops.ListInput{Limit: dashboardRecent})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	due, err := ops.Due(ctx, h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	report, err := ops.Collapse(ctx, h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	status, err := ops.Status(ctx, h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DashboardPageData{
		PageData: PageData{
			Title:   "Dashboard",
			Version: h.renderer.version,
			Nav:     "dashboard",
		},
		Recent:   recent.Items,
		Due:      due,
		Collapse: report,
		Status:   status,
	}
	if len(recent.Items) > 0 {
		data.Latest = &recent.Items[0]
	}

	h.renderer.renderPage(w, r, "dashboard", data)
}

// HandleCheckIns handles GET /checkins: paginated check-in history.
func (h *Handlers) HandleCheckIns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.env, ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "checkins", CheckInsPageData{
		PageData: PageData{
			Title:   "Check-ins",
			Version: h.renderer.version,
			Nav:     "checkins",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleDetail handles GET /checkins/{id}: one check-in with its replay.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("check-in ID is required"))
		return
	}

	c, err := ops.Fetch(r.Context(), h.env, ops.FetchInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// Replay is informational; a failure does not hide the check-in.
	replay, err := ops.Replay(r.Context(), h.env, ops.ReplayInput{ID: id})
	if err != nil {
		h.log.Warn("replay failed", zap.String("id", id), zap.Error(err))
		replay = nil
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   "Check-in " + formatTime(c.Timestamp),
			Version: h.renderer.version,
			Nav:     "checkins",
		},
		CheckIn:       c,
		Replay:        replay,
		Retrospective: renderMarkdown(c.Retrospective),
		Prospective:   renderMarkdown(c.Prospective),
		Target:        renderMarkdown(c.Target),
	})
}

// HandleSubmit handles POST /checkins: append a check-in from a form.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	input := ops.SubmitInput{
		Retrospective: r.FormValue("retrospective"),
		Prospective:   r.FormValue("prospective"),
		Target:        r.FormValue("target"),
	}
	if s := strings.TrimSpace(r.FormValue("hours_slept")); s != "" {
		hours, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("hours_slept must be a number"))
			return
		}
		input.HoursSlept = &hours
	}

	result, err := ops.Submit(r.Context(), h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := "/checkins/" + result.ID
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleMoods handles GET /moods: mood history and the PANAS form.
func (h *Handlers) HandleMoods(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListMoods(r.Context(), h.env, ops.MoodListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "moods", MoodsPageData{
		PageData: PageData{
			Title:   "Mood",
			Version: h.renderer.version,
			Nav:     "moods",
		},
		Items:         result.Items,
		Pagination:    result.Pagination,
		PositiveItems: journal.PositiveItems,
		NegativeItems: journal.NegativeItems,
	})
}

// HandleRecordMood handles POST /moods: record a PANAS entry from a form.
func (h *Handlers) HandleRecordMood(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	ratings := make(map[string]int, len(journal.PositiveItems)+len(journal.NegativeItems))
	for _, items := range [][]string{journal.PositiveItems, journal.NegativeItems} {
		for _, item := range items {
			s := r.FormValue(item)
			if s == "" {
				continue
			}
			v, err := strconv.Atoi(s)
			if err != nil {
				h.renderer.renderError(w, r, errors.NewInvalidRequest(item+" must be an integer"))
				return
			}
			ratings[item] = v
		}
	}

	result, err := ops.RecordMood(r.Context(), h.env, ops.MoodInput{
		Ratings: ratings,
		Note:    r.FormValue("note"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/moods")
		w.WriteHeader(http.StatusOK)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, result)
		return
	}
	http.Redirect(w, r, "/moods", http.StatusSeeOther)
}

// HandleStatus handles GET /api/status: due state, collapse report and scoring mode as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := ops.Status(r.Context(), h.env)
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}
	due, err := ops.Due(r.Context(), h.env)
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}
	report, err := ops.Collapse(r.Context(), h.env)
	if err != nil {
		r.Header.Set("Accept", "application/json")
		h.renderer.renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"due":      due,
		"collapse": report,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
