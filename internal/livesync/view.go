package livesync

import (
	"sort"

	"rinkside/internal/hockey"
)

// View is a consistent copy of a coordinator's state.
type View struct {
	Game   hockey.Game
	Events []hockey.Event
	Rows   []hockey.Row
	Box    hockey.Boxscore
	// Score is what a scoreboard shows: the stored score with pending
	// quick-adjusts on top.
	Score hockey.Score
	// Derived is the score the current log gives. Overridden reports that
	// the stored score differs from it because of a manual edit that the
	// next recompute will replace.
	Derived    hockey.Score
	Overridden bool
	Roster     []hockey.RosterEntry
	Goalies    []hockey.GoalieLine
	Mutations  []Mutation
	Stale      bool
	Version    uint64
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := append([]hockey.Event(nil), c.events...)
	derived := hockey.DeriveGame(c.game, events)
	view := View{
		Game:       c.game,
		Events:     events,
		Rows:       hockey.Group(events),
		Box:        hockey.Summarize(c.game, events),
		Score:      c.displayedLocked(),
		Derived:    derived,
		Overridden: c.game.Score() != derived,
		Roster:     make([]hockey.RosterEntry, 0, len(c.roster)),
		Goalies:    make([]hockey.GoalieLine, 0, len(c.goalies)),
		Mutations:  make([]Mutation, 0, len(c.mutations)),
		Stale:      c.stale,
		Version:    c.version,
	}
	for _, entry := range c.roster {
		view.Roster = append(view.Roster, entry)
	}
	sort.Slice(view.Roster, func(i, j int) bool {
		if view.Roster[i].TeamID != view.Roster[j].TeamID {
			return view.Roster[i].TeamID < view.Roster[j].TeamID
		}
		return view.Roster[i].PlayerID < view.Roster[j].PlayerID
	})
	for _, line := range c.goalies {
		view.Goalies = append(view.Goalies, line)
	}
	sort.Slice(view.Goalies, func(i, j int) bool {
		if view.Goalies[i].TeamID != view.Goalies[j].TeamID {
			return view.Goalies[i].TeamID < view.Goalies[j].TeamID
		}
		return view.Goalies[i].PlayerID < view.Goalies[j].PlayerID
	})
	for _, m := range c.mutations {
		view.Mutations = append(view.Mutations, *m)
	}
	return view
}

// Dressed lists the dressed players of one team.
func (v View) Dressed(teamID uint) []uint {
	var players []uint
	for _, entry := range v.Roster {
		if entry.TeamID == teamID && entry.Dressed {
			players = append(players, entry.PlayerID)
		}
	}
	return players
}
