// Package store persists game event logs and their derived rows, and
// publishes row-level change notifications per game.
package store

import (
	"context"

	"rinkside/internal/hockey"
)

type EventStore interface {
	// InsertEvents appends events in order. It is not transactional: when
	// a row fails after earlier rows were written it returns the written
	// rows together with a *hockey.PartialBatchFailure.
	InsertEvents(ctx context.Context, gameID uint, events []hockey.Event) ([]hockey.Event, error)
	DeleteEvent(ctx context.Context, id uint) error
	// DeleteEventsMatching removes every event sharing the grouping key,
	// which deletes a goal together with its assists.
	DeleteEventsMatching(ctx context.Context, gameID uint, period int, clock hockey.Clock, teamID uint) (int, error)
	// ListEvents returns the log in creation order.
	ListEvents(ctx context.Context, gameID uint) ([]hockey.Event, error)
}

type GameStore interface {
	CreateGame(ctx context.Context, game hockey.Game) (hockey.Game, error)
	// GetGame looks a game up by numeric id or by slug.
	GetGame(ctx context.Context, idOrSlug string) (hockey.Game, error)
	UpdateGame(ctx context.Context, gameID uint, update GameUpdate) error
}

type RosterStore interface {
	ListRoster(ctx context.Context, gameID uint) ([]hockey.RosterEntry, error)
	UpsertRoster(ctx context.Context, entries []hockey.RosterEntry) error
	DeleteRoster(ctx context.Context, gameID uint, playerIDs []uint) error
}

type GoalieStore interface {
	ListGoalieLines(ctx context.Context, gameID uint) ([]hockey.GoalieLine, error)
	UpsertGoalieLine(ctx context.Context, line hockey.GoalieLine) error
	// SetActiveGoalie puts playerID in net for its team, creating the line
	// if needed, and takes every other goalie of that team out.
	SetActiveGoalie(ctx context.Context, gameID, teamID, playerID uint) error
	// AdjustGoalsAgainst applies delta to the team's goalie in net, falling
	// back to the starter. It reports false when the team has no such line.
	AdjustGoalsAgainst(ctx context.Context, gameID, teamID uint, delta int) (bool, error)
}

type Feed interface {
	// Subscribe registers handlers for one game's changes. The returned
	// function removes the subscription; it never blocks and may be called
	// more than once.
	Subscribe(gameID uint, handlers Handlers) (unsubscribe func())
}

type Store interface {
	EventStore
	GameStore
	RosterStore
	GoalieStore
	Feed
}

// GameUpdate lists the game fields to change; nil fields are left alone.
type GameUpdate struct {
	HomeScore *int
	AwayScore *int
	WentOT    *bool
	Status    *hockey.Status
}

// ScoreUpdate sets both scores.
func ScoreUpdate(score hockey.Score) GameUpdate {
	home, away := score.Home, score.Away
	return GameUpdate{HomeScore: &home, AwayScore: &away}
}

func (u GameUpdate) Empty() bool {
	return u.HomeScore == nil && u.AwayScore == nil && u.WentOT == nil && u.Status == nil
}

func (u GameUpdate) apply(game *hockey.Game) {
	if u.HomeScore != nil {
		game.HomeScore = *u.HomeScore
	}
	if u.AwayScore != nil {
		game.AwayScore = *u.AwayScore
	}
	if u.WentOT != nil {
		game.WentOT = *u.WentOT
	}
	if u.Status != nil {
		game.Status = *u.Status
	}
}

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type EventChange struct {
	Op    Op
	Event hockey.Event
}

type GameChange struct {
	Op   Op
	Game hockey.Game
}

type RosterChange struct {
	Op    Op
	Entry hockey.RosterEntry
}

type GoalieChange struct {
	Op   Op
	Line hockey.GoalieLine
}

// Handlers receive one game's changes. Any handler may be nil. OnResync
// fires when notifications may have been lost and the subscriber should
// reload from the store.
type Handlers struct {
	OnEvents func(EventChange)
	OnGame   func(GameChange)
	OnRoster func(RosterChange)
	OnGoalie func(GoalieChange)
	OnResync func()
}
