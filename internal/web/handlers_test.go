package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/attune/internal/alignment"
	"github.com/hpungsan/attune/internal/config"
	"github.com/hpungsan/attune/internal/db"
	"github.com/hpungsan/attune/internal/journal"
	"github.com/hpungsan/attune/internal/ops"
)

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

// setupTest returns a handler tree over a fresh journal.
func setupTest(t *testing.T) (http.Handler, *ops.Env) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := ops.NewEnv(database, config.DefaultConfig(), nil, nil)
	env.Now = func() time.Time { return testNow }

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		t.Fatalf("static sub-FS: %v", err)
	}

	h := &Handlers{
		env:      env,
		renderer: NewRenderer(templateSub, "test", nil),
		log:      env.Log,
	}
	return securityHeaders(routes(h, staticSub)), env
}

func do(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// seedCheckIn submits a check-in through the JSON path and returns its ID.
func seedCheckIn(t *testing.T, handler http.Handler, retro, pro string) string {
	t.Helper()
	req := postForm("/checkins", url.Values{"retrospective": {retro}, "prospective": {pro}})
	req.Header.Set("Accept", "application/json")
	w := do(t, handler, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("seed check-in: status = %d, body = %s", w.Code, w.Body.String())
	}
	var out ops.SubmitOutput
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode submit output: %v", err)
	}
	return out.ID
}

func fullMoodForm(pos, neg int) url.Values {
	form := url.Values{}
	for _, item := range journal.PositiveItems {
		form.Set(item, strconv.Itoa(pos))
	}
	for _, item := range journal.NegativeItems {
		form.Set(item, strconv.Itoa(neg))
	}
	return form
}

// --- Dashboard ---

func TestHandleDashboard_Empty(t *testing.T) {
	handler, _ := setupTest(t)

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("full page should include layout")
	}
	if !strings.Contains(body, "No check-ins yet.") {
		t.Error("empty dashboard should say there are no check-ins")
	}
	if !strings.Contains(body, "A check-in is due now") {
		t.Error("first check-in should be due")
	}
}

func TestHandleDashboard_WithCheckIns(t *testing.T) {
	handler, _ := setupTest(t)
	id := seedCheckIn(t, handler, "cleared the inbox", "write the report")

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "/checkins/"+id) {
		t.Error("dashboard should link the latest check-in")
	}
	if !strings.Contains(body, "Next check-in at") {
		t.Error("check-in should not be due right after submitting")
	}
}

func TestHandleDashboard_HTMXPartial(t *testing.T) {
	handler, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	w := do(t, handler, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("HTMX request should render only the content block")
	}
}

// --- Submit ---

func TestHandleSubmit_Redirect(t *testing.T) {
	handler, _ := setupTest(t)

	w := do(t, handler, postForm("/checkins", url.Values{
		"retrospective": {"finished the draft"},
		"prospective":   {"send it for review"},
		"hours_slept":   {"7.5"},
	}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body = %s", w.Code, w.Body.String())
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/checkins/") {
		t.Fatalf("Location = %q, want /checkins/{id}", loc)
	}

	detail := do(t, handler, httptest.NewRequest(http.MethodGet, loc, nil))
	if detail.Code != http.StatusOK {
		t.Fatalf("detail status = %d, want 200", detail.Code)
	}
	body := detail.Body.String()
	if !strings.Contains(body, "finished the draft") {
		t.Error("detail should render the retrospective")
	}
	if !strings.Contains(body, "7.5") {
		t.Error("detail should render hours slept")
	}
}

func TestHandleSubmit_HTMXRedirect(t *testing.T) {
	handler, _ := setupTest(t)

	req := postForm("/checkins", url.Values{"prospective": {"plan the week"}})
	req.Header.Set("HX-Request", "true")
	w := do(t, handler, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("HX-Redirect"), "/checkins/") {
		t.Errorf("HX-Redirect = %q", w.Header().Get("HX-Redirect"))
	}
}

func TestHandleSubmit_JSONScoresFollowThrough(t *testing.T) {
	handler, _ := setupTest(t)
	seedCheckIn(t, handler, "", "write the quarterly report")

	req := postForm("/checkins", url.Values{"retrospective": {"wrote the quarterly report"}, "prospective": {"rest"}})
	req.Header.Set("Accept", "application/json")
	w := do(t, handler, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var out ops.SubmitOutput
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AlignmentToPriorIntent == nil {
		t.Fatal("second check-in should be scored against the first")
	}
	if out.PriorID == "" {
		t.Error("prior_id should be set")
	}
}

func TestHandleSubmit_Validation(t *testing.T) {
	handler, _ := setupTest(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"both texts empty", url.Values{"target": {"ship it"}}},
		{"bad hours_slept", url.Values{"prospective": {"plan"}, "hours_slept": {"lots"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, handler, postForm("/checkins", tt.form))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if !strings.Contains(w.Body.String(), "error-message") {
				t.Error("error page should carry the message")
			}
		})
	}
}

// --- Lists and detail ---

func TestHandleCheckIns_Pagination(t *testing.T) {
	handler, _ := setupTest(t)
	for i := 0; i < 3; i++ {
		seedCheckIn(t, handler, "did "+strconv.Itoa(i), "intent "+strconv.Itoa(i))
	}

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/checkins?limit=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "intent 2") || !strings.Contains(body, "intent 1") {
		t.Error("first page should hold the two newest check-ins")
	}
	if strings.Contains(body, "intent 0") {
		t.Error("oldest check-in should be on the next page")
	}
	if !strings.Contains(body, "offset=2") {
		t.Error("pager should link to the next page")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	handler, _ := setupTest(t)

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/checkins/01NOPE", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleDetail_NotFoundJSON(t *testing.T) {
	handler, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/checkins/01NOPE", nil)
	req.Header.Set("Accept", "application/json")
	w := do(t, handler, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", payload.Error.Code)
	}
}

func TestHandleDetail_EscapesRawHTML(t *testing.T) {
	handler, _ := setupTest(t)
	id := seedCheckIn(t, handler, "<script>alert(1)</script>", "**bold plan**")

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/checkins/"+id, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML in journal text must not be rendered")
	}
	if !strings.Contains(body, "<strong>bold plan</strong>") {
		t.Error("markdown should be rendered")
	}
}

// --- Moods ---

func TestHandleMoods_Form(t *testing.T) {
	handler, _ := setupTest(t)

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/moods", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, item := range []string{"enthusiastic", "jittery"} {
		if !strings.Contains(body, `name="`+item+`"`) {
			t.Errorf("form missing item %q", item)
		}
	}
}

func TestHandleRecordMood(t *testing.T) {
	handler, env := setupTest(t)

	form := fullMoodForm(4, 2)
	form.Set("note", "good morning")
	w := do(t, handler, postForm("/moods", form))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body = %s", w.Code, w.Body.String())
	}

	list, err := ops.ListMoods(t.Context(), env, ops.MoodListInput{})
	if err != nil {
		t.Fatalf("ListMoods: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(list.Items))
	}
	if list.Items[0].PositiveAffect != 40 || list.Items[0].NegativeAffect != 20 {
		t.Errorf("PA/NA = %d/%d, want 40/20", list.Items[0].PositiveAffect, list.Items[0].NegativeAffect)
	}

	page := do(t, handler, httptest.NewRequest(http.MethodGet, "/moods", nil))
	if !strings.Contains(page.Body.String(), "good morning") {
		t.Error("history should show the note")
	}
}

func TestHandleRecordMood_Validation(t *testing.T) {
	handler, _ := setupTest(t)

	form := fullMoodForm(3, 3)
	form.Set("alert", "very")
	if w := do(t, handler, postForm("/moods", form)); w.Code != http.StatusBadRequest {
		t.Errorf("non-integer rating: status = %d, want 400", w.Code)
	}

	form = fullMoodForm(3, 3)
	form.Set("alert", "9")
	if w := do(t, handler, postForm("/moods", form)); w.Code != http.StatusBadRequest {
		t.Errorf("out of range rating: status = %d, want 400", w.Code)
	}

	form = fullMoodForm(3, 3)
	form.Del("afraid")
	if w := do(t, handler, postForm("/moods", form)); w.Code != http.StatusBadRequest {
		t.Errorf("missing item: status = %d, want 400", w.Code)
	}
}

// --- API ---

func TestHandleStatus(t *testing.T) {
	handler, _ := setupTest(t)
	seedCheckIn(t, handler, "", "plan")

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var payload struct {
		Status   ops.StatusOutput `json:"status"`
		Due      ops.DueOutput    `json:"due"`
		Collapse alignment.Report `json:"collapse"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status.Scoring.Mode != journal.ModeFallback {
		t.Errorf("mode = %q, want fallback", payload.Status.Scoring.Mode)
	}
	if payload.Status.CheckIns != 1 {
		t.Errorf("checkins = %d, want 1", payload.Status.CheckIns)
	}
	if payload.Due.Due {
		t.Error("should not be due right after a check-in")
	}
	if payload.Collapse.Level != alignment.LevelNone {
		t.Errorf("collapse level = %q, want none", payload.Collapse.Level)
	}
}

// --- Middleware and helpers ---

func TestSecurityHeaders(t *testing.T) {
	handler, _ := setupTest(t)

	w := do(t, handler, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("static status = %d, want 200", w.Code)
	}
	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/checkins?"+tt.query, nil)
		if got := parseIntParam(req, "limit", 20); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestFormatScore(t *testing.T) {
	if got := formatScore(nil); got != "—" {
		t.Errorf("formatScore(nil) = %q", got)
	}
	v := 0.8125
	if got := formatScore(&v); got != "0.81" {
		t.Errorf("formatScore(0.8125) = %q, want 0.81", got)
	}
}
