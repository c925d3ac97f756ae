// Package scoring is the write path: it validates operator actions, appends
// them to the event log and keeps the cached score equal to the log.
package scoring

import (
	"context"
	"errors"
	"log"
	"strconv"

	"rinkside/internal/hockey"
	"rinkside/internal/store"
)

type Store interface {
	store.EventStore
	store.GameStore
	store.GoalieStore
}

type Service struct {
	store Store
	locks *gameLocks
}

func NewService(st Store) *Service {
	return &Service{store: st, locks: newGameLocks()}
}

// Result carries the game as it stands after the write and the rows that
// were persisted. On a partial batch failure both are set along with the
// error.
type Result struct {
	Game   hockey.Game
	Events []hockey.Event
}

func (s *Service) game(ctx context.Context, ref string) (hockey.Game, error) {
	return s.store.GetGame(ctx, ref)
}

func requireTeam(game hockey.Game, teamID uint) error {
	if _, ok := game.Side(teamID); !ok {
		return &hockey.ValidationError{Field: "team_id", Message: "team is not playing in this game"}
	}
	return nil
}

// AddGoal records a goal and its assists as one non-transactional batch.
func (s *Service) AddGoal(ctx context.Context, ref string, in GoalInput) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	game, err := s.game(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if err := requireTeam(game, in.TeamID); err != nil {
		return Result{}, err
	}

	inserted, insertErr := s.store.InsertEvents(ctx, game.ID, in.events())
	var partial *hockey.PartialBatchFailure
	if insertErr != nil && !errors.As(insertErr, &partial) {
		return Result{}, insertErr
	}
	if partial != nil {
		log.Printf("goal batch partially applied game_id=%d inserted=%d failed=%d err=%v",
			game.ID, len(partial.Inserted), len(partial.Failed), partial.Cause)
	}
	for _, evt := range inserted {
		if evt.IsGoal() {
			s.chargeGoalie(ctx, game, evt.TeamID, 1)
		}
	}
	log.Printf("goal recorded game_id=%d team_id=%d scorer_id=%d assists=%d", game.ID, in.TeamID, in.ScorerID, len(in.Assists))

	updated, err := s.recompute(ctx, game.ID)
	if err != nil {
		return Result{Game: game, Events: inserted}, err
	}
	return Result{Game: updated, Events: inserted}, insertErr
}

// AddEvent records a single assist, penalty, shot or save.
func (s *Service) AddEvent(ctx context.Context, ref string, in EventInput) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	game, err := s.game(ctx, ref)
	if err != nil {
		return Result{}, err
	}
	if err := requireTeam(game, in.TeamID); err != nil {
		return Result{}, err
	}
	inserted, err := s.store.InsertEvents(ctx, game.ID, []hockey.Event{in.event()})
	if err != nil {
		return Result{}, err
	}
	updated, err := s.recompute(ctx, game.ID)
	if err != nil {
		return Result{Game: game, Events: inserted}, err
	}
	return Result{Game: updated, Events: inserted}, nil
}

func (s *Service) DeleteEvent(ctx context.Context, ref string, eventID uint) (hockey.Game, error) {
	game, err := s.game(ctx, ref)
	if err != nil {
		return hockey.Game{}, err
	}
	events, err := s.store.ListEvents(ctx, game.ID)
	if err != nil {
		return hockey.Game{}, err
	}
	var target *hockey.Event
	for i := range events {
		if events[i].ID == eventID {
			target = &events[i]
			break
		}
	}
	if target == nil {
		return hockey.Game{}, hockey.ErrNotFound
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return hockey.Game{}, err
	}
	if target.IsGoal() {
		s.chargeGoalie(ctx, game, target.TeamID, -1)
	}
	log.Printf("event deleted game_id=%d event_id=%d kind=%s", game.ID, eventID, target.Kind())
	return s.recompute(ctx, game.ID)
}

// DeleteGroup removes a goal together with every assist sharing its key.
func (s *Service) DeleteGroup(ctx context.Context, ref string, period int, clock hockey.Clock, teamID uint) (int, hockey.Game, error) {
	game, err := s.game(ctx, ref)
	if err != nil {
		return 0, hockey.Game{}, err
	}
	events, err := s.store.ListEvents(ctx, game.ID)
	if err != nil {
		return 0, hockey.Game{}, err
	}
	key := hockey.Key{Period: period, Clock: clock, TeamID: teamID}
	goals := 0
	for _, evt := range events {
		if evt.IsGoal() && evt.Key() == key {
			goals++
		}
	}
	removed, err := s.store.DeleteEventsMatching(ctx, game.ID, period, clock, teamID)
	if err != nil {
		return 0, hockey.Game{}, err
	}
	if removed == 0 {
		return 0, hockey.Game{}, hockey.ErrNotFound
	}
	if goals > 0 {
		s.chargeGoalie(ctx, game, teamID, -goals)
	}
	log.Printf("group deleted game_id=%d period=%d clock=%s team_id=%d removed=%d", game.ID, period, clock, teamID, removed)
	updated, err := s.recompute(ctx, game.ID)
	return removed, updated, err
}

// Recompute rederives the cached score from the full log.
func (s *Service) Recompute(ctx context.Context, ref string) (hockey.Game, error) {
	game, err := s.game(ctx, ref)
	if err != nil {
		return hockey.Game{}, err
	}
	return s.recompute(ctx, game.ID)
}

func (s *Service) recompute(ctx context.Context, gameID uint) (hockey.Game, error) {
	unlock := s.locks.lock(gameID)
	defer unlock()
	return s.recomputeLocked(ctx, gameID)
}

func (s *Service) recomputeLocked(ctx context.Context, gameID uint) (hockey.Game, error) {
	ref := strconv.FormatUint(uint64(gameID), 10)
	game, err := s.store.GetGame(ctx, ref)
	if err != nil {
		return hockey.Game{}, err
	}
	events, err := s.store.ListEvents(ctx, gameID)
	if err != nil {
		log.Printf("recompute failed game_id=%d err=%v", gameID, err)
		return game, err
	}
	score := hockey.DeriveGame(game, events)
	wentOT := hockey.WentToOvertime(events)
	if score == game.Score() && wentOT == game.WentOT {
		return game, nil
	}
	update := store.ScoreUpdate(score)
	update.WentOT = &wentOT
	if err := s.store.UpdateGame(ctx, gameID, update); err != nil {
		log.Printf("recompute failed game_id=%d err=%v", gameID, err)
		return game, err
	}
	game.HomeScore, game.AwayScore, game.WentOT = score.Home, score.Away, wentOT
	return game, nil
}

// SetManualScore persists an operator override verbatim. The next
// recompute replaces it with the derived score.
func (s *Service) SetManualScore(ctx context.Context, ref string, score hockey.Score) (hockey.Game, error) {
	if score.Home < 0 || score.Away < 0 {
		return hockey.Game{}, &hockey.ValidationError{Field: "score", Message: "score cannot be negative"}
	}
	game, err := s.game(ctx, ref)
	if err != nil {
		return hockey.Game{}, err
	}
	unlock := s.locks.lock(game.ID)
	defer unlock()
	if err := s.store.UpdateGame(ctx, game.ID, store.ScoreUpdate(score)); err != nil {
		return hockey.Game{}, err
	}
	log.Printf("manual score game_id=%d home=%d away=%d", game.ID, score.Home, score.Away)
	game.HomeScore, game.AwayScore = score.Home, score.Away
	return game, nil
}

// SetStatus moves the game through its lifecycle. Finalizing rederives the
// score and assigns goalie decisions.
func (s *Service) SetStatus(ctx context.Context, ref string, raw string) (hockey.Game, error) {
	status, err := hockey.ParseStatus(raw)
	if err != nil {
		return hockey.Game{}, err
	}
	game, err := s.game(ctx, ref)
	if err != nil {
		return hockey.Game{}, err
	}
	if game.Status == status {
		return game, nil
	}
	if !hockey.CanTransition(game.Status, status) {
		return hockey.Game{}, &hockey.ValidationError{Field: "status", Message: "cannot move from " + string(game.Status) + " to " + string(status)}
	}

	unlock := s.locks.lock(game.ID)
	defer unlock()
	if status == hockey.StatusFinal {
		if game, err = s.recomputeLocked(ctx, game.ID); err != nil {
			return hockey.Game{}, err
		}
	}
	if err := s.store.UpdateGame(ctx, game.ID, store.GameUpdate{Status: &status}); err != nil {
		return hockey.Game{}, err
	}
	game.Status = status
	log.Printf("game status game_id=%d status=%s", game.ID, status)

	if status == hockey.StatusFinal {
		if err := s.assignDecisions(ctx, game); err != nil {
			return game, err
		}
	}
	return game, nil
}

func (s *Service) assignDecisions(ctx context.Context, game hockey.Game) error {
	lines, err := s.store.ListGoalieLines(ctx, game.ID)
	if err != nil {
		return err
	}
	decided := hockey.AssignDecisions(game, lines)
	var errs []error
	for i, line := range decided {
		if line == lines[i] {
			continue
		}
		if err := s.store.UpsertGoalieLine(ctx, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UpsertGoalieLine records manual goalie totals. Who is in net is left as
// it was; use SetActiveGoalie to change it.
func (s *Service) UpsertGoalieLine(ctx context.Context, ref string, in GoalieInput) (hockey.GoalieLine, error) {
	if err := in.validate(); err != nil {
		return hockey.GoalieLine{}, err
	}
	game, err := s.game(ctx, ref)
	if err != nil {
		return hockey.GoalieLine{}, err
	}
	if err := requireTeam(game, in.TeamID); err != nil {
		return hockey.GoalieLine{}, err
	}
	decision, err := hockey.ParseDecision(in.Decision)
	if err != nil {
		return hockey.GoalieLine{}, err
	}
	line := hockey.GoalieLine{
		GameID:        game.ID,
		TeamID:        in.TeamID,
		PlayerID:      in.PlayerID,
		Started:       in.Started,
		MinutesPlayed: in.MinutesPlayed,
		ShotsAgainst:  in.ShotsAgainst,
		GoalsAgainst:  in.GoalsAgainst,
		Decision:      decision,
		Shutout:       in.Shutout,
	}
	lines, err := s.store.ListGoalieLines(ctx, game.ID)
	if err != nil {
		return hockey.GoalieLine{}, err
	}
	for _, existing := range lines {
		if existing.PlayerID == in.PlayerID {
			line.Active = existing.Active
		}
	}
	if err := s.store.UpsertGoalieLine(ctx, line); err != nil {
		return hockey.GoalieLine{}, err
	}
	return line, nil
}

func (s *Service) SetActiveGoalie(ctx context.Context, ref string, teamID, playerID uint) error {
	game, err := s.game(ctx, ref)
	if err != nil {
		return err
	}
	if err := requireTeam(game, teamID); err != nil {
		return err
	}
	if playerID == 0 {
		return &hockey.ValidationError{Field: "player_id", Message: "is required"}
	}
	if err := s.store.SetActiveGoalie(ctx, game.ID, teamID, playerID); err != nil {
		return err
	}
	log.Printf("goalie in net game_id=%d team_id=%d player_id=%d", game.ID, teamID, playerID)
	return nil
}

// chargeGoalie applies delta to the goals against of the goalie facing
// scoringTeam. It is best effort: the goalie ledger is not derived from
// the log, so failures are logged and never fail the write.
func (s *Service) chargeGoalie(ctx context.Context, game hockey.Game, scoringTeam uint, delta int) {
	conceding := game.Opponent(scoringTeam)
	if conceding == 0 {
		return
	}
	ok, err := s.store.AdjustGoalsAgainst(ctx, game.ID, conceding, delta)
	if err != nil {
		log.Printf("goalie goals against update failed game_id=%d team_id=%d err=%v", game.ID, conceding, err)
		return
	}
	if !ok {
		log.Printf("no goalie in net game_id=%d team_id=%d", game.ID, conceding)
	}
}
