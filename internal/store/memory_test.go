package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rinkside/internal/hockey"
)

const (
	homeTeam = 10
	awayTeam = 20
)

func newTestGame(t *testing.T, store *MemoryStore) hockey.Game {
	t.Helper()
	game, err := store.CreateGame(context.Background(), hockey.Game{Slug: "g1", HomeTeamID: homeTeam, AwayTeamID: awayTeam})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return game
}

func goalAt(period int, clock string, team, player uint) hockey.Event {
	return hockey.Event{
		TeamID:   team,
		PlayerID: hockey.PlayerRef(player),
		Period:   period,
		Clock:    hockey.MustClock(clock),
		Detail:   hockey.Goal{Strength: hockey.StrengthEven},
	}
}

func assistAt(period int, clock string, team, player uint) hockey.Event {
	evt := goalAt(period, clock, team, player)
	evt.Detail = hockey.Assist{}
	return evt
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMemoryStoreGetGameByIDOrSlug(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	ctx := context.Background()

	bySlug, err := store.GetGame(ctx, "g1")
	if err != nil || bySlug.ID != game.ID {
		t.Fatalf("expected lookup by slug, got %+v %v", bySlug, err)
	}
	byID, err := store.GetGame(ctx, "1")
	if err != nil || byID.Slug != "g1" {
		t.Fatalf("expected lookup by id, got %+v %v", byID, err)
	}
	if byID.Status != hockey.StatusScheduled {
		t.Fatalf("expected scheduled status, got %s", byID.Status)
	}
	if _, err := store.GetGame(ctx, "missing"); !errors.Is(err, hockey.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.CreateGame(ctx, hockey.Game{Slug: "g1", HomeTeamID: 1, AwayTeamID: 2}); !hockey.IsValidation(err) {
		t.Fatalf("expected duplicate slug to be rejected, got %v", err)
	}
}

func TestMemoryStoreInsertEventsPartialFailure(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	ctx := context.Background()

	bad := assistAt(1, "10:00", homeTeam, 14)
	bad.Period = 9
	inserted, err := store.InsertEvents(ctx, game.ID, []hockey.Event{
		goalAt(1, "10:00", homeTeam, 7),
		bad,
	})
	var partial *hockey.PartialBatchFailure
	if !errors.As(err, &partial) {
		t.Fatalf("expected partial batch failure, got %v", err)
	}
	if len(partial.Inserted) != 1 || len(partial.Failed) != 1 || len(inserted) != 1 {
		t.Fatalf("unexpected partial result %+v", partial)
	}
	if !hockey.IsValidation(err) {
		t.Fatalf("expected validation cause, got %v", err)
	}
	events, _ := store.ListEvents(ctx, game.ID)
	if len(events) != 1 || !events[0].IsGoal() {
		t.Fatalf("expected the goal to stay persisted, got %+v", events)
	}

	if _, err := store.InsertEvents(ctx, game.ID, []hockey.Event{bad}); err == nil || errors.As(err, &partial) {
		t.Fatalf("expected plain error when nothing was written, got %v", err)
	}
	if _, err := store.InsertEvents(ctx, 99, []hockey.Event{goalAt(1, "10:00", homeTeam, 7)}); !errors.Is(err, hockey.ErrNotFound) {
		t.Fatalf("expected not found for unknown game, got %v", err)
	}
}

func TestMemoryStoreDeleteEventsMatching(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	ctx := context.Background()

	_, err := store.InsertEvents(ctx, game.ID, []hockey.Event{
		goalAt(1, "12:34", homeTeam, 7),
		assistAt(1, "12:34", homeTeam, 14),
		assistAt(1, "12:34", homeTeam, 22),
		goalAt(1, "12:34", awayTeam, 3),
		goalAt(2, "12:34", homeTeam, 7),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	removed, err := store.DeleteEventsMatching(ctx, game.ID, 1, hockey.MustClock("12:34"), homeTeam)
	if err != nil {
		t.Fatalf("delete matching: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected goal and both assists removed, got %d", removed)
	}
	events, _ := store.ListEvents(ctx, game.ID)
	if len(events) != 2 {
		t.Fatalf("expected two events left, got %d", len(events))
	}
	if err := store.DeleteEvent(ctx, 12345); !errors.Is(err, hockey.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreAdjustGoalsAgainst(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	ctx := context.Background()

	ok, err := store.AdjustGoalsAgainst(ctx, game.ID, homeTeam, 1)
	if err != nil || ok {
		t.Fatalf("expected no goalie to adjust, got %v %v", ok, err)
	}
	if err := store.UpsertGoalieLine(ctx, hockey.GoalieLine{GameID: game.ID, TeamID: homeTeam, PlayerID: 30, Started: true}); err != nil {
		t.Fatalf("upsert goalie: %v", err)
	}
	if ok, _ := store.AdjustGoalsAgainst(ctx, game.ID, homeTeam, 1); !ok {
		t.Fatalf("expected starter to take the goal")
	}
	if err := store.SetActiveGoalie(ctx, game.ID, homeTeam, 31); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if ok, _ := store.AdjustGoalsAgainst(ctx, game.ID, homeTeam, 1); !ok {
		t.Fatalf("expected active goalie to take the goal")
	}
	if ok, _ := store.AdjustGoalsAgainst(ctx, game.ID, homeTeam, -5); !ok {
		t.Fatalf("expected decrement to apply")
	}

	lines, _ := store.ListGoalieLines(ctx, game.ID)
	if len(lines) != 2 {
		t.Fatalf("expected two goalie lines, got %+v", lines)
	}
	starter, relief := lines[0], lines[1]
	if starter.GoalsAgainst != 1 || starter.Active {
		t.Fatalf("unexpected starter line %+v", starter)
	}
	if relief.GoalsAgainst != 0 || !relief.Active {
		t.Fatalf("expected relief goals against floored at zero, got %+v", relief)
	}
}

func TestMemoryStoreRosterUpsertAndDelete(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	ctx := context.Background()

	var mu sync.Mutex
	var ops []Op
	unsubscribe := store.Subscribe(game.ID, Handlers{OnRoster: func(change RosterChange) {
		mu.Lock()
		ops = append(ops, change.Op)
		mu.Unlock()
	}})
	defer unsubscribe()

	entry := hockey.RosterEntry{GameID: game.ID, TeamID: homeTeam, PlayerID: 14, Dressed: true}
	if err := store.UpsertRoster(ctx, []hockey.RosterEntry{entry}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertRoster(ctx, []hockey.RosterEntry{entry}); err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if err := store.DeleteRoster(ctx, game.ID, []uint{14, 99}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitFor(t, "roster notifications", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ops) == 3
	})
	mu.Lock()
	defer mu.Unlock()
	if ops[0] != OpInsert || ops[1] != OpUpdate || ops[2] != OpDelete {
		t.Fatalf("unexpected ops %v", ops)
	}
}

func TestMemoryStoreRejectsNegativeScore(t *testing.T) {
	store := NewMemoryStore(0)
	game := newTestGame(t, store)
	if err := store.UpdateGame(context.Background(), game.ID, ScoreUpdate(hockey.Score{Home: -1})); !hockey.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := store.UpdateGame(context.Background(), 42, ScoreUpdate(hockey.Score{})); !errors.Is(err, hockey.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
