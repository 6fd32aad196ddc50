package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/auth"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/handlers"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/repository"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/services"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/testutil"
	"github.com/JEECE-SI/the-glitch-kitchen/pkg/classifier"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type harness struct {
	repo      *repository.Repository
	clock     *clockwork.FakeClock
	games     *services.GameService
	reference []models.RecipeStep
	cls       *classifier.MockClient
	handlers  *handlers.Handlers
	router    http.Handler
	cookie    *http.Cookie
	header    http.Header
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	clock := clockwork.NewFakeClockAt(t0)
	log := logger.Nop()

	games := services.NewGameService(log, repo, clock)
	games.SetBaseURL("https://kitchen.example")
	timers := services.NewTimerService(log, repo, clock)
	refs := services.NewReferenceService(log, repo)

	reference, err := services.LoadReference("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := refs.Seed(context.Background(), reference); err != nil {
		t.Fatal(err)
	}

	opts := services.DefaultEvaluationOptions()
	opts.RateLimit = 2
	opts.DedupGrace = 0
	cls := classifier.NewMockClient()
	evals := services.NewEvaluationService(log, repo, cls, clock, opts)

	h := handlers.NewForTesting(games, timers, refs, evals)
	h.Health = repo
	return &harness{
		repo:      repo,
		clock:     clock,
		games:     games,
		reference: reference,
		cls:       cls,
		handlers:  h,
		router:    h.Router(),
	}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.header {
		req.Header[k] = v
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/staff/login", handlers.LoginRequest{Password: "test-password"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			h.cookie = c
		}
	}
	if h.cookie == nil {
		t.Fatal("expected session cookie")
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return v
}

func (h *harness) createGame(t *testing.T) models.GameInstance {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/staff/games", handlers.GameCreateRequest{Name: "Session du soir"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create game: %d %s", rr.Code, rr.Body.String())
	}
	return decode[models.GameInstance](t, rr)
}

func (h *harness) createTeam(t *testing.T, gameID, name string) models.Team {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/staff/games/"+gameID+"/teams", handlers.TeamCreateRequest{Name: name})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create team: %d %s", rr.Code, rr.Body.String())
	}
	return decode[models.Team](t, rr)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[handlers.HealthResponse](t, rr); got.Status != "ok" {
		t.Errorf("unexpected health %+v", got)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := newHarness(t)
	h.repo.Close()

	rr := h.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodGet, "/healthz", nil)
	if rr.Header().Get(handlers.RequestIDHeader) == "" {
		t.Error("expected a generated request ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(handlers.RequestIDHeader, "trace-42")
	rr = httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	if got := rr.Header().Get(handlers.RequestIDHeader); got != "trace-42" {
		t.Errorf("expected caller request ID, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/recipe/evaluate", nil)
	req.Header.Set("Origin", "https://kitchen.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("expected CORS headers, got %v", rr.Header())
	}
}

func TestStaffRoutesRequireSession(t *testing.T) {
	h := newHarness(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/staff/games"},
		{http.MethodPost, "/api/staff/games"},
		{http.MethodPost, "/api/staff/games/g1/timer/start"},
		{http.MethodGet, "/api/staff/reference"},
		{http.MethodDelete, "/api/staff/teams/t1/attempts"},
	}
	for _, p := range paths {
		rr := h.do(t, p.method, p.path, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rr.Code)
		}
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, "/api/staff/login", handlers.LoginRequest{Password: "nope"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestLogout_EndsSession(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	if rr := h.do(t, http.MethodPost, "/api/staff/logout", nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
	if rr := h.do(t, http.MethodGet, "/api/staff/games", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", rr.Code)
	}
}

func TestGames_CreateListGet(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	g := h.createGame(t)
	if g.Status != "setup" || g.Settings != models.DefaultGameSettings() {
		t.Errorf("unexpected game %+v", g)
	}

	rr := h.do(t, http.MethodGet, "/api/staff/games", nil)
	if games := decode[[]models.GameInstance](t, rr); len(games) != 1 {
		t.Errorf("expected 1 game, got %d", len(games))
	}

	rr = h.do(t, http.MethodGet, "/api/staff/games/"+g.ID, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get game: %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/staff/games/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown game, got %d", rr.Code)
	}
}

func TestGames_CreateValidation(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rr := h.do(t, http.MethodPost, "/api/staff/games", handlers.GameCreateRequest{Name: " "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, "/api/staff/games", `{"name":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for broken JSON, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, "/api/staff/games", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", rr.Code)
	}
}

func TestTimer_Flow(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	base := "/api/staff/games/" + g.ID

	rr := h.do(t, http.MethodPost, base+"/timer/pause", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("pause before start: expected 409, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/start", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rr.Code, rr.Body.String())
	}
	view := decode[models.TimerView](t, rr)
	if view.Status != "annonce_c1" || view.TimeLeftSeconds != 300 || !view.TimerActive {
		t.Errorf("unexpected view after start %+v", view)
	}

	h.clock.Advance(60 * time.Second)
	rr = h.do(t, http.MethodGet, "/api/games/"+g.ID+"/timer", nil)
	if view := decode[models.TimerView](t, rr); view.TimeLeftSeconds != 240 {
		t.Errorf("expected 240s left, got %d", view.TimeLeftSeconds)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/phase", handlers.PhaseSelectRequest{Phase: "contests"})
	if view := decode[models.TimerView](t, rr); view.Status != "contests_c1" || view.TimeLeftSeconds != 1200 {
		t.Errorf("unexpected view after phase select %+v", view)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/phase", handlers.PhaseSelectRequest{Phase: "dessert"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown phase: expected 400, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/adjust", handlers.AdjustTimeRequest{DeltaSeconds: -200})
	if view := decode[models.TimerView](t, rr); view.TimeLeftSeconds != 1000 {
		t.Errorf("expected 1000s after adjust, got %d", view.TimeLeftSeconds)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/adjust", handlers.AdjustTimeRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("zero adjust: expected 400, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/pause", nil)
	if view := decode[models.TimerView](t, rr); view.TimerActive {
		t.Error("expected timer to be paused")
	}

	rr = h.do(t, http.MethodPost, base+"/timer/reset-phase", nil)
	if view := decode[models.TimerView](t, rr); view.TimeLeftSeconds != 1200 || view.TimerActive {
		t.Errorf("unexpected view after reset-phase %+v", view)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/advance-cycle", nil)
	if view := decode[models.TimerView](t, rr); view.Status != "annonce_c2" {
		t.Errorf("expected annonce_c2, got %s", view.Status)
	}

	rr = h.do(t, http.MethodPost, base+"/timer/reset-instance", nil)
	if view := decode[models.TimerView](t, rr); view.Status != "setup" {
		t.Errorf("expected setup, got %s", view.Status)
	}

	rr = h.do(t, http.MethodGet, base+"/logs", nil)
	logs := decode[[]models.GameLog](t, rr)
	if len(logs) < 7 {
		t.Errorf("expected a log entry per transition, got %d", len(logs))
	}

	rr = h.do(t, http.MethodGet, base+"/logs?limit=2", nil)
	if logs := decode[[]models.GameLog](t, rr); len(logs) != 2 {
		t.Errorf("expected 2 logs with limit, got %d", len(logs))
	}

	rr = h.do(t, http.MethodGet, base+"/logs?limit=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", rr.Code)
	}
}

func TestTimer_UnknownGame(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rr := h.do(t, http.MethodPost, "/api/staff/games/missing/timer/start", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	rr = h.do(t, http.MethodGet, "/api/games/missing/timer", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 on public timer, got %d", rr.Code)
	}
}

func TestSettings_Update(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)

	settings := models.GameSettings{AnnonceMinutes: 3, ContestsMinutes: 15, TempsLibreMinutes: 8}
	rr := h.do(t, http.MethodPut, "/api/staff/games/"+g.ID+"/settings", settings)
	if rr.Code != http.StatusOK {
		t.Fatalf("update settings: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[models.GameInstance](t, rr); got.Settings != settings {
		t.Errorf("settings = %+v", got.Settings)
	}

	rr = h.do(t, http.MethodPut, "/api/staff/games/"+g.ID+"/settings", models.GameSettings{AnnonceMinutes: 0, ContestsMinutes: 15, TempsLibreMinutes: 8})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero duration, got %d", rr.Code)
	}
}

func TestContest_Assign(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")

	h.do(t, http.MethodPost, "/api/staff/games/"+g.ID+"/timer/start", nil)

	rr := h.do(t, http.MethodPut, "/api/staff/games/"+g.ID+"/contests/1", handlers.ContestAssignRequest{Rank: "first", TeamID: team.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rr.Code, rr.Body.String())
	}
	view := decode[models.TimerView](t, rr)
	if view.ContestAssignments["1"]["first"] != team.ID {
		t.Errorf("unexpected assignments %+v", view.ContestAssignments)
	}

	other := h.createGame(t)
	rr = h.do(t, http.MethodPut, "/api/staff/games/"+other.ID+"/contests/1", handlers.ContestAssignRequest{Rank: "first", TeamID: team.ID})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("team from another game: expected 400, got %d", rr.Code)
	}
}

func TestTeams_CreateListJoinQR(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)

	team := h.createTeam(t, g.ID, "Brigade Rouge")
	if len(team.JoinCode) != 8 {
		t.Errorf("unexpected join code %q", team.JoinCode)
	}

	rr := h.do(t, http.MethodPost, "/api/staff/games/"+g.ID+"/teams", handlers.TeamCreateRequest{Name: "brigade rouge"})
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate name: expected 409, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/staff/games/"+g.ID+"/teams", nil)
	if teams := decode[[]models.Team](t, rr); len(teams) != 1 {
		t.Errorf("expected 1 team, got %d", len(teams))
	}

	rr = h.do(t, http.MethodGet, "/api/join/"+strings.ToLower(team.JoinCode), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("join: %d", rr.Code)
	}
	if join := decode[handlers.JoinResponse](t, rr); join.TeamID != team.ID || join.GameID != g.ID {
		t.Errorf("unexpected join response %+v", join)
	}

	rr = h.do(t, http.MethodGet, "/api/join/NOPE0000", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown code: expected 404, got %d", rr.Code)
	}

	rr = h.do(t, http.MethodGet, "/api/staff/teams/"+team.ID+"/qr", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("qr: %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG data")
	}
}

func TestEvaluate_Success(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")

	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{TeamID: team.ID, Steps: h.reference})
	if rr.Code != http.StatusOK {
		t.Fatalf("evaluate: %d %s", rr.Code, rr.Body.String())
	}
	result := decode[models.EvaluationResult](t, rr)
	if result.GlobalScore != 100 || result.AttemptNumber != 1 || result.AttemptsRemaining != 2 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(result.Steps) != 10 {
		t.Errorf("expected 10 scored steps, got %d", len(result.Steps))
	}

	rr = h.do(t, http.MethodGet, "/api/teams/"+team.ID+"/attempts", nil)
	attempts := decode[handlers.AttemptsResponse](t, rr)
	if len(attempts.Attempts) != 1 || attempts.AttemptsRemaining != 2 {
		t.Errorf("unexpected attempts %+v", attempts)
	}

	rr = h.do(t, http.MethodDelete, "/api/staff/teams/"+team.ID+"/attempts", nil)
	if got := decode[handlers.ResetAttemptsResponse](t, rr); got.Deleted != 1 {
		t.Errorf("expected 1 deleted attempt, got %d", got.Deleted)
	}
}

func TestEvaluate_InvalidBody(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", `{"team_id":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if got := decode[handlers.APIError](t, rr); got.Code != services.CodeInvalidRequest {
		t.Errorf("expected invalid_request, got %q", got.Code)
	}

	rr = h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing team: expected 400, got %d", rr.Code)
	}
}

func TestEvaluate_UnknownTeam(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{TeamID: "ghost", Steps: h.reference})
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if got := decode[handlers.APIError](t, rr); got.Code != services.CodeTeamNotFound {
		t.Errorf("expected team_not_found, got %q", got.Code)
	}
}

func TestEvaluate_RateLimited(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")
	req := services.EvaluationRequest{TeamID: team.ID, Steps: h.reference}

	for i := 0; i < 2; i++ {
		if rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req); rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: %d", i+1, rr.Code)
		}
	}

	h.clock.Advance(15 * time.Second)
	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "45" {
		t.Errorf("Retry-After = %q, want 45", got)
	}
	if got := decode[handlers.APIError](t, rr); got.RetryAfterSeconds != 45 || got.Code != services.CodeRateLimited {
		t.Errorf("unexpected error body %+v", got)
	}
}

func TestEvaluate_RateLimitIgnoresProxyHeadersByDefault(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")
	other := h.createTeam(t, g.ID, "Brigade Verte")

	var codes []int
	for i, teamID := range []string{team.ID, team.ID, other.ID} {
		h.header = http.Header{}
		h.header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))
		h.header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{TeamID: teamID, Steps: h.reference})
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestEvaluate_TrustProxyKeysOnForwardedAddress(t *testing.T) {
	h := newHarness(t)
	h.handlers.TrustProxy = true
	h.router = h.handlers.Router()
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")
	other := h.createTeam(t, g.ID, "Brigade Verte")
	req := services.EvaluationRequest{TeamID: team.ID, Steps: h.reference}

	h.header = http.Header{"X-Real-Ip": {"203.0.113.1"}}
	for i := 0; i < 2; i++ {
		if rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req); rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: %d", i+1, rr.Code)
		}
	}
	if rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for the same forwarded client, got %d", rr.Code)
	}

	h.header = http.Header{"X-Real-Ip": {"203.0.113.2"}}
	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{TeamID: other.ID, Steps: h.reference})
	if rr.Code != http.StatusOK {
		t.Errorf("another forwarded client should have its own window, got %d", rr.Code)
	}
}

func TestEvaluate_MaxAttempts(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")
	req := services.EvaluationRequest{TeamID: team.ID, Steps: h.reference}

	for i := 0; i < 3; i++ {
		if rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req); rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: %d", i+1, rr.Code)
		}
		h.clock.Advance(time.Minute)
	}

	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	got := decode[handlers.APIError](t, rr)
	if got.Code != services.CodeMaxAttemptsReached || got.AttemptsRemaining == nil || *got.AttemptsRemaining != 0 {
		t.Errorf("unexpected error body %+v", got)
	}
	if h.cls.Calls() != 3 {
		t.Errorf("expected no classifier call past the cap, got %d calls", h.cls.Calls())
	}
}

func TestEvaluate_ClassifierFailure(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	g := h.createGame(t)
	team := h.createTeam(t, g.ID, "Brigade Rouge")

	classifier.WithError(errors.Join(classifier.ErrUnavailable, errors.New("connection refused")))(h.cls)

	rr := h.do(t, http.MethodPost, "/api/recipe/evaluate", services.EvaluationRequest{TeamID: team.ID, Steps: h.reference})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := decode[handlers.APIError](t, rr); got.Code != services.CodeClassifierUnavailable {
		t.Errorf("expected classifier_unavailable, got %q", got.Code)
	}
}

func TestReference_GetReplace(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	rr := h.do(t, http.MethodGet, "/api/staff/reference", nil)
	ref := decode[handlers.ReferenceResponse](t, rr)
	if len(ref.Steps) != 10 || ref.Steps[0].StepIndex != 1 {
		t.Fatalf("unexpected reference %+v", ref.Steps)
	}

	steps := append([]models.RecipeStep(nil), ref.Steps...)
	steps[0], steps[9] = steps[9], steps[0]
	steps[4].Tool = "Spatule"
	rr = h.do(t, http.MethodPut, "/api/staff/reference", handlers.ReferenceUpdateRequest{Steps: steps})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace: %d %s", rr.Code, rr.Body.String())
	}
	ref = decode[handlers.ReferenceResponse](t, rr)
	if ref.Steps[0].StepIndex != 1 || ref.Steps[4].Tool != "Spatule" {
		t.Errorf("expected sorted updated reference, got %+v", ref.Steps)
	}

	rr = h.do(t, http.MethodPut, "/api/staff/reference", handlers.ReferenceUpdateRequest{Steps: steps[:9]})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("incomplete reference: expected 400, got %d", rr.Code)
	}
}
