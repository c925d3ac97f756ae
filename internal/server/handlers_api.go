package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"rinkside/internal/hockey"
	"rinkside/internal/roster"
	"rinkside/internal/scoring"
)

type createGameRequest struct {
	Slug       string `json:"slug" binding:"required,max=64"`
	HomeTeamID uint   `json:"home_team_id" binding:"required"`
	AwayTeamID uint   `json:"away_team_id" binding:"required,nefield=HomeTeamID"`
}

var createGameMessages = bindMessages{
	"slug":         {"required": "slug is required", "max": "slug must be 64 characters or fewer"},
	"home_team_id": {"required": "home team is required"},
	"away_team_id": {"required": "away team is required", "nefield": "a team cannot play itself"},
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !bindJSON(w, r, &req, createGameMessages) {
		return
	}
	game, err := s.store.CreateGame(r.Context(), hockey.Game{
		Slug:       req.Slug,
		HomeTeamID: req.HomeTeamID,
		AwayTeamID: req.AwayTeamID,
		Status:     hockey.StatusScheduled,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Printf("game created game_id=%d slug=%s", game.ID, game.Slug)
	writeJSON(w, http.StatusCreated, gameSnapshot(game))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game, err := s.store.GetGame(ctx, r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	events, err := s.store.ListEvents(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	goalies, err := s.store.ListGoalieLines(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	derived := hockey.DeriveGame(game, events)
	writeJSON(w, http.StatusOK, map[string]any{
		"game":       gameSnapshot(game),
		"events":     eventsSnapshot(events),
		"rows":       rowsSnapshot(hockey.Group(events)),
		"box":        hockey.Summarize(game, events),
		"derived":    derived,
		"overridden": game.Score() != derived,
		"goalies":    goaliesSnapshot(goalies),
	})
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var in scoring.GoalInput
	if !bindJSON(w, r, &in, nil) {
		return
	}
	result, err := s.scoring.AddGoal(r.Context(), r.PathValue("ref"), in)
	writeResult(w, r, result, err)
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var in scoring.EventInput
	if !bindJSON(w, r, &in, nil) {
		return
	}
	result, err := s.scoring.AddEvent(r.Context(), r.PathValue("ref"), in)
	writeResult(w, r, result, err)
}

// writeResult answers an insert. A partial batch is reported with 207 so
// the client can see which rows made it and retry the rest.
func writeResult(w http.ResponseWriter, r *http.Request, result scoring.Result, err error) {
	var partial *hockey.PartialBatchFailure
	if errors.As(err, &partial) {
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"game":   gameSnapshot(result.Game),
			"events": eventsSnapshot(partial.Inserted),
			"failed": eventsSnapshot(partial.Failed),
			"error":  partial.Cause.Error(),
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"game":   gameSnapshot(result.Game),
		"events": eventsSnapshot(result.Events),
	})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil || id == 0 {
		writeServiceError(w, r, &hockey.ValidationError{Field: "id", Message: "event id must be a positive integer"})
		return
	}
	game, err := s.scoring.DeleteEvent(r.Context(), r.PathValue("ref"), uint(id))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"game": gameSnapshot(game)})
}

type deleteGroupQuery struct {
	Period int    `form:"period" binding:"min=1,max=4"`
	Clock  string `form:"clock" binding:"required,clock"`
	TeamID uint   `form:"team_id" binding:"required"`
}

var deleteGroupMessages = bindMessages{
	"period":  {"min": "period must be between 1 and 4", "max": "period must be between 1 and 4"},
	"clock":   {"required": "clock is required", "clock": "clock must be MM:SS"},
	"team_id": {"required": "team is required"},
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	var q deleteGroupQuery
	if !bindQuery(w, r, &q, deleteGroupMessages) {
		return
	}
	clock, err := hockey.ParseClock(q.Clock)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	removed, game, err := s.scoring.DeleteGroup(r.Context(), r.PathValue("ref"), q.Period, clock, q.TeamID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"game":    gameSnapshot(game),
	})
}

type setScoreRequest struct {
	Home *int `json:"home" binding:"required,min=0"`
	Away *int `json:"away" binding:"required,min=0"`
}

var setScoreMessages = bindMessages{
	"home": {"required": "home score is required", "min": "score cannot be negative"},
	"away": {"required": "away score is required", "min": "score cannot be negative"},
}

func (s *Server) handleSetScore(w http.ResponseWriter, r *http.Request) {
	var req setScoreRequest
	if !bindJSON(w, r, &req, setScoreMessages) {
		return
	}
	game, err := s.scoring.SetManualScore(r.Context(), r.PathValue("ref"), hockey.Score{Home: *req.Home, Away: *req.Away})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameSnapshot(game))
}

type adjustScoreRequest struct {
	Side  string `json:"side" binding:"required,side"`
	Delta int    `json:"delta" binding:"required,min=-5,max=5"`
}

var adjustScoreMessages = bindMessages{
	"side":  {"required": "side is required", "side": "side must be home or away"},
	"delta": {"required": "delta must not be zero", "min": "delta is out of range", "max": "delta is out of range"},
}

// handleAdjustScore runs a quick +/- through the game's live view so every
// viewer sees the pending change and its outcome.
func (s *Server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	var req adjustScoreRequest
	if !bindJSON(w, r, &req, adjustScoreMessages) {
		return
	}
	ctx := r.Context()
	game, err := s.store.GetGame(ctx, r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := s.live.acquire(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer s.live.release(sess)

	mutation, err := sess.coord.AdjustScore(ctx, hockey.Side(req.Side), req.Delta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mutation": mutation,
		"score":    sess.coord.View().Score,
	})
}

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	game, err := s.scoring.Recompute(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gameSnapshot(game))
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if !bindJSON(w, r, &req, bindMessages{"status": {"required": "status is required"}}) {
		return
	}
	game, err := s.scoring.SetStatus(r.Context(), r.PathValue("ref"), req.Status)
	if game.ID == 0 && err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err != nil {
		// The status change landed; only the goalie decisions failed.
		log.Printf("goalie decisions incomplete game_id=%d err=%v", game.ID, err)
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"game":  gameSnapshot(game),
			"error": err.Error(),
		})
		return
	}
	s.forgetTracker(game)
	writeJSON(w, http.StatusOK, gameSnapshot(game))
}

type playerRequest struct {
	TeamID   uint `json:"team_id" binding:"required"`
	PlayerID uint `json:"player_id" binding:"required"`
}

var playerMessages = bindMessages{
	"team_id":   {"required": "team is required"},
	"player_id": {"required": "player is required"},
}

// tracker returns the game's shared roster tracker, loading it from the
// store the first time the game is edited.
func (s *Server) tracker(ctx context.Context, gameID uint) (*roster.Tracker, error) {
	s.rostersMu.Lock()
	defer s.rostersMu.Unlock()
	return s.trackerLocked(ctx, gameID)
}

// toggle flips a player on the game's tracker without letting forgetTracker
// release it in between.
func (s *Server) toggle(ctx context.Context, gameID, teamID, playerID uint) (bool, []uint, error) {
	s.rostersMu.Lock()
	defer s.rostersMu.Unlock()
	t, err := s.trackerLocked(ctx, gameID)
	if err != nil {
		return false, nil, err
	}
	dressed := t.Toggle(teamID, playerID)
	return dressed, t.Dressed(teamID), nil
}

func (s *Server) trackerLocked(ctx context.Context, gameID uint) (*roster.Tracker, error) {
	if t, ok := s.rosters[gameID]; ok {
		return t, nil
	}
	t := roster.NewTracker(s.store, gameID)
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	s.rosters[gameID] = t
	return t, nil
}

// forgetTracker drops a final game's tracker once nothing on it is unsaved.
// A later edit loads a fresh one from the store.
func (s *Server) forgetTracker(game hockey.Game) {
	if game.Status != hockey.StatusFinal {
		return
	}
	s.rostersMu.Lock()
	defer s.rostersMu.Unlock()
	t, ok := s.rosters[game.ID]
	if !ok || t.Unsaved() {
		return
	}
	delete(s.rosters, game.ID)
	log.Printf("roster tracker released game_id=%d", game.ID)
}

func (s *Server) handleRosterToggle(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !bindJSON(w, r, &req, playerMessages) {
		return
	}
	ctx := r.Context()
	game, err := s.store.GetGame(ctx, r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, ok := game.Side(req.TeamID); !ok {
		writeServiceError(w, r, &hockey.ValidationError{Field: "team_id", Message: "team is not playing in this game"})
		return
	}
	dressed, players, err := s.toggle(ctx, game.ID, req.TeamID, req.PlayerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team_id":   req.TeamID,
		"player_id": req.PlayerID,
		"dressed":   dressed,
		"players":   nonNil(players),
	})
}

func (s *Server) handleRosterSave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game, err := s.store.GetGame(ctx, r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := s.tracker(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	result, err := t.Save(ctx)
	if err != nil && result != (roster.SaveResult{}) {
		writeJSON(w, http.StatusMultiStatus, map[string]any{
			"result": result,
			"error":  err.Error(),
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.forgetTracker(game)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	game, err := s.store.GetGame(ctx, r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	entries, err := s.store.ListRoster(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := s.tracker(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"persisted": rosterSnapshot(entries),
		"desired": map[string]any{
			"home": nonNil(t.Dressed(game.HomeTeamID)),
			"away": nonNil(t.Dressed(game.AwayTeamID)),
		},
	})
}

func (s *Server) handleUpsertGoalie(w http.ResponseWriter, r *http.Request) {
	var in scoring.GoalieInput
	if !bindJSON(w, r, &in, nil) {
		return
	}
	line, err := s.scoring.UpsertGoalieLine(r.Context(), r.PathValue("ref"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goalieSnapshot(line))
}

func (s *Server) handleSetActiveGoalie(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !bindJSON(w, r, &req, playerMessages) {
		return
	}
	ctx := r.Context()
	ref := r.PathValue("ref")
	if err := s.scoring.SetActiveGoalie(ctx, ref, req.TeamID, req.PlayerID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	game, err := s.store.GetGame(ctx, ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	lines, err := s.store.ListGoalieLines(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goaliesSnapshot(lines))
}

func nonNil(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}
