package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"rinkside/internal/config"
	"rinkside/internal/hockey"
	"rinkside/internal/store"
)

func TestCreateGame(t *testing.T) {
	_, ts := newMemoryServer(t)

	body := createGame(t, ts, "rink-1")
	if body["slug"] != "rink-1" || body["status"] != "scheduled" {
		t.Fatalf("unexpected game %v", body)
	}
	if number(t, body["home_team_id"]) != homeTeam || number(t, body["away_team_id"]) != awayTeam {
		t.Fatalf("unexpected teams %v", body)
	}

	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]any{
		"slug": "rink-1", "home_team_id": homeTeam, "away_team_id": awayTeam,
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCreateGameValidation(t *testing.T) {
	_, ts := newMemoryServer(t)

	cases := []struct {
		name    string
		payload map[string]any
		field   string
	}{
		{name: "missing slug", payload: map[string]any{"home_team_id": 1, "away_team_id": 2}, field: "slug"},
		{name: "same team", payload: map[string]any{"slug": "x", "home_team_id": 1, "away_team_id": 1}, field: "away_team_id"},
		{name: "unknown field", payload: map[string]any{"slug": "x", "home_team_id": 1, "away_team_id": 2, "rink": "north"}, field: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, ts, http.MethodPost, "/api/games", tc.payload)
			expectStatus(t, resp, http.StatusBadRequest)
			body := decodeBody(t, resp)
			if body["field"] != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, body)
			}
		})
	}
}

func TestAddGoalGroupsAssists(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	added := postGoal(t, ts, "g", homeTeam, 7, []int{3, 9}, "10:00")
	if got := len(list(t, added["events"])); got != 3 {
		t.Fatalf("expected goal and two assists, got %d", got)
	}
	if number(t, object(t, added["game"])["home_score"]) != 1 {
		t.Fatalf("expected home score 1, got %v", added["game"])
	}

	body := fetchGame(t, ts, "g")
	rows := list(t, body["rows"])
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := object(t, rows[0])
	if row["kind"] != "goal" || row["clock"] != "10:00" || len(list(t, row["assists"])) != 2 {
		t.Fatalf("unexpected row %v", row)
	}
	if body["overridden"] != false {
		t.Fatalf("expected derived score to match, got %v", body["overridden"])
	}
}

func TestAddGoalValidation(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	cases := []struct {
		name    string
		payload map[string]any
		field   string
	}{
		{name: "third assist", payload: map[string]any{"team_id": homeTeam, "scorer_id": 7, "assists": []int{1, 2, 3}, "period": 1, "clock": "10:00"}, field: "assists"},
		{name: "bad clock", payload: map[string]any{"team_id": homeTeam, "scorer_id": 7, "period": 1, "clock": "1:5"}, field: "clock"},
		{name: "bad period", payload: map[string]any{"team_id": homeTeam, "scorer_id": 7, "period": 5, "clock": "10:00"}, field: "period"},
		{name: "foreign team", payload: map[string]any{"team_id": 99, "scorer_id": 7, "period": 1, "clock": "10:00"}, field: "team_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, ts, http.MethodPost, "/api/games/g/goals", tc.payload)
			expectStatus(t, resp, http.StatusBadRequest)
			body := decodeBody(t, resp)
			if body["field"] != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, body)
			}
		})
	}
	if rows := list(t, fetchGame(t, ts, "g")["rows"]); len(rows) != 0 {
		t.Fatalf("expected nothing persisted, got %v", rows)
	}
}

func TestUnknownGameIsNotFound(t *testing.T) {
	_, ts := newMemoryServer(t)

	resp := doRequest(t, ts, http.MethodGet, "/api/games/missing", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = doRequest(t, ts, http.MethodPost, "/api/games/missing/goals", map[string]any{
		"team_id": homeTeam, "scorer_id": 7, "period": 1, "clock": "10:00",
	})
	expectStatus(t, resp, http.StatusNotFound)

	resp = doRequest(t, ts, http.MethodGet, "/games/missing", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAddEvent(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/g/events", map[string]any{
		"kind": "penalty", "team_id": awayTeam, "player_id": 4, "period": 2, "clock": "04:12", "infraction": "hooking",
	})
	expectStatus(t, resp, http.StatusCreated)
	evt := object(t, list(t, decodeBody(t, resp)["events"])[0])
	if evt["kind"] != "penalty" || number(t, evt["minutes"]) != 2 || evt["infraction"] != "hooking" {
		t.Fatalf("unexpected penalty %v", evt)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/events", map[string]any{
		"kind": "goal", "team_id": awayTeam, "player_id": 4, "period": 2, "clock": "04:12",
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDeleteGroupRemovesGoalAndAssists(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")
	postGoal(t, ts, "g", homeTeam, 7, []int{3}, "10:00")
	postGoal(t, ts, "g", awayTeam, 2, nil, "10:00")

	resp := doRequest(t, ts, http.MethodDelete, "/api/games/g/groups?period=1&clock=10:00&team_id=10", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if number(t, body["removed"]) != 2 {
		t.Fatalf("expected goal and assist removed, got %v", body["removed"])
	}
	game := object(t, body["game"])
	if number(t, game["home_score"]) != 0 || number(t, game["away_score"]) != 1 {
		t.Fatalf("unexpected score %v", game)
	}

	resp = doRequest(t, ts, http.MethodDelete, "/api/games/g/groups?period=1&clock=10:00&team_id=10", nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = doRequest(t, ts, http.MethodDelete, "/api/games/g/groups?period=1&clock=10&team_id=10", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if field := decodeBody(t, resp)["field"]; field != "clock" {
		t.Fatalf("expected clock field, got %v", field)
	}
}

func TestDeleteEvent(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")
	added := postGoal(t, ts, "g", homeTeam, 7, nil, "10:00")
	id := number(t, object(t, list(t, added["events"])[0])["id"])

	resp := doRequest(t, ts, http.MethodDelete, "/api/games/g/events/"+strconv.Itoa(id), nil)
	expectStatus(t, resp, http.StatusOK)
	if number(t, object(t, decodeBody(t, resp)["game"])["home_score"]) != 0 {
		t.Fatalf("expected score to drop after delete")
	}

	resp = doRequest(t, ts, http.MethodDelete, "/api/games/g/events/"+strconv.Itoa(id), nil)
	expectStatus(t, resp, http.StatusNotFound)

	resp = doRequest(t, ts, http.MethodDelete, "/api/games/g/events/abc", nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestManualScoreIsReplacedByRecompute(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")
	postGoal(t, ts, "g", homeTeam, 7, nil, "10:00")

	resp := doRequest(t, ts, http.MethodPut, "/api/games/g/score", map[string]any{"home": 5, "away": 2})
	expectStatus(t, resp, http.StatusOK)
	if number(t, decodeBody(t, resp)["home_score"]) != 5 {
		t.Fatalf("expected manual score to persist")
	}
	if fetchGame(t, ts, "g")["overridden"] != true {
		t.Fatalf("expected the manual score to be flagged")
	}

	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/score", map[string]any{"home": -1, "away": 0})
	expectStatus(t, resp, http.StatusBadRequest)
	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/score", map[string]any{"home": 1})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/recompute", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if number(t, body["home_score"]) != 1 || number(t, body["away_score"]) != 0 {
		t.Fatalf("expected recompute to restore 1-0, got %v", body)
	}
}

func TestSetStatus(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	resp := doRequest(t, ts, http.MethodPut, "/api/games/g/status", map[string]any{"status": "live"})
	expectStatus(t, resp, http.StatusOK)
	if decodeBody(t, resp)["status"] != "live" {
		t.Fatalf("expected live")
	}

	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/status", map[string]any{"status": "scheduled"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/status", map[string]any{"status": "paused"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/status", map[string]any{"status": "final"})
	expectStatus(t, resp, http.StatusOK)
}

func TestRosterToggleAndSave(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	toggle := func(player int) map[string]any {
		resp := doRequest(t, ts, http.MethodPost, "/api/games/g/roster/toggle", map[string]any{"team_id": homeTeam, "player_id": player})
		expectStatus(t, resp, http.StatusOK)
		return decodeBody(t, resp)
	}
	save := func() map[string]any {
		resp := doRequest(t, ts, http.MethodPost, "/api/games/g/roster/save", nil)
		expectStatus(t, resp, http.StatusOK)
		return decodeBody(t, resp)
	}

	if toggle(14)["dressed"] != true {
		t.Fatalf("expected player dressed")
	}
	if got := save(); number(t, got["upserted"]) != 1 || number(t, got["deleted"]) != 0 {
		t.Fatalf("unexpected save %v", got)
	}
	if got := save(); number(t, got["upserted"]) != 0 || number(t, got["deleted"]) != 0 {
		t.Fatalf("expected idempotent save, got %v", got)
	}

	resp := doRequest(t, ts, http.MethodGet, "/api/games/g/roster", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if len(list(t, body["persisted"])) != 1 || len(list(t, object(t, body["desired"])["home"])) != 1 {
		t.Fatalf("unexpected roster %v", body)
	}

	if toggle(14)["dressed"] != false {
		t.Fatalf("expected player undressed")
	}
	if got := save(); number(t, got["deleted"]) != 1 {
		t.Fatalf("expected one delete, got %v", got)
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/roster/toggle", map[string]any{"team_id": 99, "player_id": 1})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGoalieEndpoints(t *testing.T) {
	_, ts := newMemoryServer(t)
	createGame(t, ts, "g")

	resp := doRequest(t, ts, http.MethodPut, "/api/games/g/goalies/active", map[string]any{"team_id": awayTeam, "player_id": 30})
	expectStatus(t, resp, http.StatusOK)
	lines := decodeGoalies(t, resp)
	if len(lines) != 1 || lines[0]["active"] != true {
		t.Fatalf("unexpected goalies %v", lines)
	}

	postGoal(t, ts, "g", homeTeam, 7, nil, "10:00")
	goalies := list(t, fetchGame(t, ts, "g")["goalies"])
	if number(t, object(t, goalies[0])["goals_against"]) != 1 {
		t.Fatalf("expected the away goalie to be charged, got %v", goalies)
	}

	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/goalies", map[string]any{
		"team_id": awayTeam, "player_id": 30, "shots_against": 12, "goals_against": 1, "minutes_played": 3600,
	})
	expectStatus(t, resp, http.StatusOK)
	line := decodeBody(t, resp)
	if number(t, line["shots_against"]) != 12 || line["active"] != true {
		t.Fatalf("unexpected line %v", line)
	}

	resp = doRequest(t, ts, http.MethodPut, "/api/games/g/goalies", map[string]any{
		"team_id": awayTeam, "player_id": 30, "decision": "TIE",
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func decodeGoalies(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	var lines []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		t.Fatalf("decode goalies: %v", err)
	}
	return lines
}

func TestScoreboardPage(t *testing.T) {
	_, ts := newMemoryServer(t)
	game := createGame(t, ts, "g")
	postGoal(t, ts, "g", homeTeam, 7, []int{3}, "10:00")

	resp := doRequest(t, ts, http.MethodGet, "/games/g", nil)
	expectStatus(t, resp, http.StatusOK)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	page := string(data)
	for _, want := range []string{"Team 10", "1 - 0", "Goal #7 (#3)", fmt.Sprintf(`data-game="%d"`, number(t, game["id"]))} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newMemoryServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/games", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "https://bench.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

type unavailableStore struct {
	*store.MemoryStore
}

func (u unavailableStore) ListEvents(context.Context, uint) ([]hockey.Event, error) {
	return nil, fmt.Errorf("%w: connection refused", hockey.ErrStoreUnavailable)
}

func TestStoreUnavailableIsRetryable(t *testing.T) {
	mem := store.NewMemoryStore(0)
	if _, err := mem.CreateGame(context.Background(), hockey.Game{Slug: "g", HomeTeamID: homeTeam, AwayTeamID: awayTeam}); err != nil {
		t.Fatalf("create game: %v", err)
	}
	srv := New(unavailableStore{mem}, config.Default())
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)

	resp := doRequest(t, ts, http.MethodGet, "/api/games/g", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/recompute", nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
}

func trackedGames(srv *Server) int {
	srv.rostersMu.Lock()
	defer srv.rostersMu.Unlock()
	return len(srv.rosters)
}

func TestFinalGameReleasesSavedRosterTracker(t *testing.T) {
	srv, ts := newMemoryServer(t)
	createGame(t, ts, "g")
	setStatus := func(status string) {
		resp := doRequest(t, ts, http.MethodPut, "/api/games/g/status", map[string]any{"status": status})
		expectStatus(t, resp, http.StatusOK)
	}
	setStatus("live")

	resp := doRequest(t, ts, http.MethodPost, "/api/games/g/roster/toggle", map[string]any{"team_id": homeTeam, "player_id": 14})
	expectStatus(t, resp, http.StatusOK)
	setStatus("final")
	if trackedGames(srv) != 1 {
		t.Fatalf("expected unsaved dressing to keep the tracker")
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/roster/save", nil)
	expectStatus(t, resp, http.StatusOK)
	if trackedGames(srv) != 0 {
		t.Fatalf("expected the saved tracker of a final game to be released")
	}

	resp = doRequest(t, ts, http.MethodPost, "/api/games/g/roster/toggle", map[string]any{"team_id": homeTeam, "player_id": 9})
	expectStatus(t, resp, http.StatusOK)
	if players := list(t, decodeBody(t, resp)["players"]); len(players) != 2 {
		t.Fatalf("expected a reloaded tracker to keep the saved player, got %v", players)
	}
}
