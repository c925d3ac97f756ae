package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"rinkside/internal/hockey"
	"rinkside/internal/web"

	"github.com/a-h/templ"
)

func (s *Server) handleScoreboardView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := r.PathValue("ref")
	game, err := s.store.GetGame(ctx, ref)
	if err != nil {
		if errors.Is(err, hockey.ErrNotFound) {
			log.Printf("scoreboard missing game=%s", ref)
			http.NotFound(w, r)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	events, err := s.store.ListEvents(ctx, game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	templ.Handler(web.Scoreboard(scoreboardData(game, events))).ServeHTTP(w, r)
}

func scoreboardData(game hockey.Game, events []hockey.Event) web.ScoreboardData {
	box := hockey.Summarize(game, events)
	data := web.ScoreboardData{
		Ref:        idString(game.ID),
		Slug:       game.Slug,
		Status:     string(game.Status),
		HomeTeam:   teamLabel(game.HomeTeamID),
		AwayTeam:   teamLabel(game.AwayTeamID),
		HomeScore:  game.HomeScore,
		AwayScore:  game.AwayScore,
		WentOT:     game.WentOT,
		Overridden: game.Score() != box.Score,
		HomeShots:  box.HomeShots,
		AwayShots:  box.AwayShots,
		UpdatedAt:  web.FormatTime(game.UpdatedAt),
	}
	for _, line := range box.Periods {
		data.Periods = append(data.Periods, web.ScoreboardPeriod{
			Label:     periodLabel(line.Period),
			HomeGoals: line.HomeGoals,
			AwayGoals: line.AwayGoals,
			HomeShots: line.HomeShots,
			AwayShots: line.AwayShots,
		})
	}
	for _, row := range hockey.Group(events) {
		data.Rows = append(data.Rows, web.ScoreboardRow{
			Period:  periodLabel(row.Period()),
			Clock:   row.Clock().String(),
			Team:    teamLabel(row.Lead.TeamID),
			Kind:    string(row.Lead.Kind()),
			Summary: rowSummary(row),
			Orphan:  row.Orphan,
		})
	}
	return data
}

func teamLabel(teamID uint) string {
	return "Team " + idString(teamID)
}

func periodLabel(period int) string {
	if period == hockey.OvertimePeriod {
		return "OT"
	}
	return strconv.Itoa(period)
}

func playerLabel(evt hockey.Event) string {
	if evt.PlayerID == nil {
		return "team"
	}
	return "#" + idString(*evt.PlayerID)
}

func rowSummary(row hockey.Row) string {
	lead := row.Lead
	switch detail := lead.Detail.(type) {
	case hockey.Goal:
		summary := "Goal " + playerLabel(lead)
		if len(row.Assists) > 0 {
			assists := make([]string, 0, len(row.Assists))
			for _, a := range row.Assists {
				assists = append(assists, playerLabel(a))
			}
			summary += " (" + strings.Join(assists, ", ") + ")"
		}
		if detail.Strength != "" && detail.Strength != hockey.StrengthEven {
			summary += " " + string(detail.Strength)
		}
		return summary
	case hockey.Assist:
		return "Assist " + playerLabel(lead) + " (no goal)"
	case hockey.Penalty:
		summary := fmt.Sprintf("Penalty %s %d min", playerLabel(lead), detail.Minutes)
		if detail.Infraction != "" {
			summary += " " + detail.Infraction
		}
		return summary
	case hockey.Shot:
		return "Shot " + playerLabel(lead)
	case hockey.Save:
		return "Save " + playerLabel(lead)
	}
	return "Unrecorded event"
}
