package store

import (
	"encoding/json"
	"fmt"
	"log"

	"rinkside/internal/db"
	"rinkside/internal/hockey"

	"gorm.io/datatypes"
)

// checkEvent mirrors the column constraints of game_events.
func checkEvent(evt hockey.Event) error {
	if evt.Detail == nil {
		return &hockey.ValidationError{Field: "kind", Message: "event has no kind"}
	}
	if evt.TeamID == 0 {
		return &hockey.ValidationError{Field: "team_id", Message: "team is required"}
	}
	if evt.Period < 1 || evt.Period > hockey.OvertimePeriod {
		return &hockey.ValidationError{Field: "period", Message: fmt.Sprintf("period %d out of range", evt.Period)}
	}
	if !evt.Clock.Valid() {
		return &hockey.ValidationError{Field: "clock", Message: "clock out of range"}
	}
	return nil
}

func eventToRow(gameID uint, evt hockey.Event) (db.GameEvent, error) {
	if err := checkEvent(evt); err != nil {
		return db.GameEvent{}, err
	}
	details, err := json.Marshal(evt.Detail)
	if err != nil {
		return db.GameEvent{}, fmt.Errorf("encode %s details: %w", evt.Kind(), err)
	}
	return db.GameEvent{
		GameID:    gameID,
		TeamID:    evt.TeamID,
		PlayerID:  evt.PlayerID,
		Period:    evt.Period,
		Clock:     evt.Clock.String(),
		Kind:      string(evt.Kind()),
		Details:   datatypes.JSON(details),
		CreatedAt: evt.CreatedAt,
	}, nil
}

// eventFromRow never drops a row. A row that cannot be decoded keeps its
// position and key with a nil detail, which grouping shows on its own.
func eventFromRow(row db.GameEvent) hockey.Event {
	evt := hockey.Event{
		ID:        row.ID,
		GameID:    row.GameID,
		TeamID:    row.TeamID,
		PlayerID:  row.PlayerID,
		Period:    row.Period,
		CreatedAt: row.CreatedAt,
	}
	clock, err := hockey.ParseClock(row.Clock)
	if err != nil {
		log.Printf("event decode failed event_id=%d clock=%q err=%v", row.ID, row.Clock, err)
	}
	evt.Clock = clock
	detail, err := decodeDetail(hockey.Kind(row.Kind), row.Details)
	if err != nil {
		log.Printf("event decode failed event_id=%d kind=%q err=%v", row.ID, row.Kind, err)
		return evt
	}
	evt.Detail = detail
	return evt
}

func decodeDetail(kind hockey.Kind, raw []byte) (hockey.Detail, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch kind {
	case hockey.KindGoal:
		var goal hockey.Goal
		if err := json.Unmarshal(raw, &goal); err != nil {
			return nil, err
		}
		if goal.Strength == "" {
			goal.Strength = hockey.StrengthEven
		}
		return goal, nil
	case hockey.KindPenalty:
		var penalty hockey.Penalty
		if err := json.Unmarshal(raw, &penalty); err != nil {
			return nil, err
		}
		return penalty, nil
	default:
		return hockey.NewDetail(kind)
	}
}

func eventsFromRows(rows []db.GameEvent) []hockey.Event {
	events := make([]hockey.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, eventFromRow(row))
	}
	return events
}

func gameFromRow(row db.Game) hockey.Game {
	status, err := hockey.ParseStatus(row.Status)
	if err != nil {
		status = hockey.StatusScheduled
	}
	return hockey.Game{
		ID:         row.ID,
		Slug:       row.Slug,
		HomeTeamID: row.HomeTeamID,
		AwayTeamID: row.AwayTeamID,
		HomeScore:  row.HomeScore,
		AwayScore:  row.AwayScore,
		WentOT:     row.WentOT,
		Status:     status,
		UpdatedAt:  row.UpdatedAt,
	}
}

func gameToRow(game hockey.Game) db.Game {
	status := game.Status
	if status == "" {
		status = hockey.StatusScheduled
	}
	return db.Game{
		ID:         game.ID,
		Slug:       game.Slug,
		HomeTeamID: game.HomeTeamID,
		AwayTeamID: game.AwayTeamID,
		HomeScore:  game.HomeScore,
		AwayScore:  game.AwayScore,
		WentOT:     game.WentOT,
		Status:     string(status),
	}
}

func rosterFromRow(row db.RosterEntry) hockey.RosterEntry {
	return hockey.RosterEntry{
		GameID:   row.GameID,
		TeamID:   row.TeamID,
		PlayerID: row.PlayerID,
		Dressed:  row.Dressed,
	}
}

func rosterToRow(entry hockey.RosterEntry) db.RosterEntry {
	return db.RosterEntry{
		GameID:   entry.GameID,
		TeamID:   entry.TeamID,
		PlayerID: entry.PlayerID,
		Dressed:  entry.Dressed,
	}
}

func goalieFromRow(row db.GoalieLine) hockey.GoalieLine {
	decision, err := hockey.ParseDecision(row.Decision)
	if err != nil {
		decision = hockey.DecisionNone
	}
	return hockey.GoalieLine{
		GameID:        row.GameID,
		TeamID:        row.TeamID,
		PlayerID:      row.PlayerID,
		Started:       row.Started,
		Active:        row.Active,
		MinutesPlayed: row.MinutesPlayed,
		ShotsAgainst:  row.ShotsAgainst,
		GoalsAgainst:  row.GoalsAgainst,
		Decision:      decision,
		Shutout:       row.Shutout,
	}
}

func goalieToRow(line hockey.GoalieLine) db.GoalieLine {
	decision := line.Decision
	if decision == "" {
		decision = hockey.DecisionNone
	}
	return db.GoalieLine{
		GameID:        line.GameID,
		TeamID:        line.TeamID,
		PlayerID:      line.PlayerID,
		Started:       line.Started,
		Active:        line.Active,
		MinutesPlayed: line.MinutesPlayed,
		ShotsAgainst:  line.ShotsAgainst,
		GoalsAgainst:  line.GoalsAgainst,
		Decision:      string(decision),
		Shutout:       line.Shutout,
	}
}
