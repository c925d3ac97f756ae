package server

import (
	"time"

	"rinkside/internal/hockey"
	"rinkside/internal/livesync"
)

type gameJSON struct {
	ID         uint          `json:"id"`
	Slug       string        `json:"slug"`
	HomeTeamID uint          `json:"home_team_id"`
	AwayTeamID uint          `json:"away_team_id"`
	HomeScore  int           `json:"home_score"`
	AwayScore  int           `json:"away_score"`
	WentOT     bool          `json:"went_ot"`
	Status     hockey.Status `json:"status"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type eventJSON struct {
	ID         uint        `json:"id"`
	GameID     uint        `json:"game_id"`
	TeamID     uint        `json:"team_id"`
	PlayerID   *uint       `json:"player_id"`
	Period     int         `json:"period"`
	Clock      string      `json:"clock"`
	Kind       hockey.Kind `json:"kind"`
	Strength   string      `json:"strength,omitempty"`
	Minutes    int         `json:"minutes,omitempty"`
	Infraction string      `json:"infraction,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

type rowJSON struct {
	Period  int         `json:"period"`
	Clock   string      `json:"clock"`
	TeamID  uint        `json:"team_id"`
	Kind    hockey.Kind `json:"kind"`
	Orphan  bool        `json:"orphan,omitempty"`
	Summary string      `json:"summary"`
	Lead    eventJSON   `json:"lead"`
	Assists []eventJSON `json:"assists"`
}

type rosterJSON struct {
	TeamID   uint `json:"team_id"`
	PlayerID uint `json:"player_id"`
	Dressed  bool `json:"dressed"`
}

type goalieJSON struct {
	TeamID        uint            `json:"team_id"`
	PlayerID      uint            `json:"player_id"`
	Started       bool            `json:"started"`
	Active        bool            `json:"active"`
	MinutesPlayed int             `json:"minutes_played"`
	ShotsAgainst  int             `json:"shots_against"`
	GoalsAgainst  int             `json:"goals_against"`
	Decision      hockey.Decision `json:"decision"`
	Shutout       bool            `json:"shutout"`
}

type viewJSON struct {
	Type       string              `json:"type"`
	Game       gameJSON            `json:"game"`
	Score      hockey.Score        `json:"score"`
	Derived    hockey.Score        `json:"derived"`
	Overridden bool                `json:"overridden"`
	Rows       []rowJSON           `json:"rows"`
	Box        hockey.Boxscore     `json:"box"`
	Roster     []rosterJSON        `json:"roster"`
	Goalies    []goalieJSON        `json:"goalies"`
	Mutations  []livesync.Mutation `json:"mutations"`
	Stale      bool                `json:"stale"`
	Version    uint64              `json:"version"`
}

func gameSnapshot(game hockey.Game) gameJSON {
	return gameJSON{
		ID:         game.ID,
		Slug:       game.Slug,
		HomeTeamID: game.HomeTeamID,
		AwayTeamID: game.AwayTeamID,
		HomeScore:  game.HomeScore,
		AwayScore:  game.AwayScore,
		WentOT:     game.WentOT,
		Status:     game.Status,
		UpdatedAt:  game.UpdatedAt,
	}
}

func eventSnapshot(evt hockey.Event) eventJSON {
	out := eventJSON{
		ID:        evt.ID,
		GameID:    evt.GameID,
		TeamID:    evt.TeamID,
		PlayerID:  evt.PlayerID,
		Period:    evt.Period,
		Clock:     evt.Clock.String(),
		Kind:      evt.Kind(),
		CreatedAt: evt.CreatedAt,
	}
	switch detail := evt.Detail.(type) {
	case hockey.Goal:
		out.Strength = string(detail.Strength)
	case hockey.Penalty:
		out.Minutes = detail.Minutes
		out.Infraction = detail.Infraction
	}
	return out
}

func eventsSnapshot(events []hockey.Event) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, evt := range events {
		out = append(out, eventSnapshot(evt))
	}
	return out
}

func rowsSnapshot(rows []hockey.Row) []rowJSON {
	out := make([]rowJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowJSON{
			Period:  row.Period(),
			Clock:   row.Clock().String(),
			TeamID:  row.Lead.TeamID,
			Kind:    row.Lead.Kind(),
			Orphan:  row.Orphan,
			Summary: rowSummary(row),
			Lead:    eventSnapshot(row.Lead),
			Assists: eventsSnapshot(row.Assists),
		})
	}
	return out
}

func rosterSnapshot(entries []hockey.RosterEntry) []rosterJSON {
	out := make([]rosterJSON, 0, len(entries))
	for _, entry := range entries {
		out = append(out, rosterJSON{TeamID: entry.TeamID, PlayerID: entry.PlayerID, Dressed: entry.Dressed})
	}
	return out
}

func goalieSnapshot(line hockey.GoalieLine) goalieJSON {
	return goalieJSON{
		TeamID:        line.TeamID,
		PlayerID:      line.PlayerID,
		Started:       line.Started,
		Active:        line.Active,
		MinutesPlayed: line.MinutesPlayed,
		ShotsAgainst:  line.ShotsAgainst,
		GoalsAgainst:  line.GoalsAgainst,
		Decision:      line.Decision,
		Shutout:       line.Shutout,
	}
}

func goaliesSnapshot(lines []hockey.GoalieLine) []goalieJSON {
	out := make([]goalieJSON, 0, len(lines))
	for _, line := range lines {
		out = append(out, goalieSnapshot(line))
	}
	return out
}

// viewSnapshot is the message pushed to viewers after every change.
func viewSnapshot(view livesync.View) viewJSON {
	mutations := view.Mutations
	if mutations == nil {
		mutations = []livesync.Mutation{}
	}
	return viewJSON{
		Type:       "view",
		Game:       gameSnapshot(view.Game),
		Score:      view.Score,
		Derived:    view.Derived,
		Overridden: view.Overridden,
		Rows:       rowsSnapshot(view.Rows),
		Box:        view.Box,
		Roster:     rosterSnapshot(view.Roster),
		Goalies:    goaliesSnapshot(view.Goalies),
		Mutations:  mutations,
		Stale:      view.Stale,
		Version:    view.Version,
	}
}
