package hockey

// Derive counts goal events per side. It is total: any list, including an
// empty one, yields a score, and assists or events for teams outside the
// game never count.
func Derive(homeTeamID, awayTeamID uint, events []Event) Score {
	var score Score
	for _, evt := range events {
		if !evt.IsGoal() || evt.TeamID == 0 {
			continue
		}
		switch evt.TeamID {
		case homeTeamID:
			score.Home++
		case awayTeamID:
			score.Away++
		}
	}
	return score
}

// DeriveGame is Derive for the teams of game.
func DeriveGame(game Game, events []Event) Score {
	return Derive(game.HomeTeamID, game.AwayTeamID, events)
}

// WentToOvertime reports whether the log reached the overtime period.
func WentToOvertime(events []Event) bool {
	for _, evt := range events {
		if evt.Period >= OvertimePeriod {
			return true
		}
	}
	return false
}

// PeriodLine is one period of a boxscore.
type PeriodLine struct {
	Period    int `json:"period"`
	HomeGoals int `json:"home_goals"`
	AwayGoals int `json:"away_goals"`
	HomeShots int `json:"home_shots"`
	AwayShots int `json:"away_shots"`
}

// Against holds derived goaltending counters for one side.
type Against struct {
	Shots int `json:"shots"`
	Goals int `json:"goals"`
}

type Boxscore struct {
	Periods     []PeriodLine `json:"periods"`
	Score       Score        `json:"score"`
	HomeShots   int          `json:"home_shots"`
	AwayShots   int          `json:"away_shots"`
	HomePIM     int          `json:"home_pim"`
	AwayPIM     int          `json:"away_pim"`
	HomeAgainst Against      `json:"home_against"`
	AwayAgainst Against      `json:"away_against"`
	WentOT      bool         `json:"went_ot"`
}

// Summarize builds the boxscore for game from its event log. Shots on goal
// include goals. A stopped shot is recorded once, either as a shot by the
// shooting team or as a save by the defending team.
func Summarize(game Game, events []Event) Boxscore {
	box := Boxscore{
		Score:  DeriveGame(game, events),
		WentOT: WentToOvertime(events),
	}
	periods := OvertimePeriod - 1
	if box.WentOT {
		periods = OvertimePeriod
	}
	box.Periods = make([]PeriodLine, periods)
	for i := range box.Periods {
		box.Periods[i].Period = i + 1
	}

	for _, evt := range events {
		side, ok := game.Side(evt.TeamID)
		if !ok || evt.Period < 1 || evt.Period > len(box.Periods) {
			continue
		}
		line := &box.Periods[evt.Period-1]
		switch detail := evt.Detail.(type) {
		case Goal:
			if side == Home {
				line.HomeGoals++
				line.HomeShots++
			} else {
				line.AwayGoals++
				line.AwayShots++
			}
		case Shot:
			if side == Home {
				line.HomeShots++
			} else {
				line.AwayShots++
			}
		case Save:
			// The saving team is the defending team.
			if side == Home {
				line.AwayShots++
			} else {
				line.HomeShots++
			}
		case Penalty:
			if side == Home {
				box.HomePIM += detail.Minutes
			} else {
				box.AwayPIM += detail.Minutes
			}
		}
	}

	for _, line := range box.Periods {
		box.HomeShots += line.HomeShots
		box.AwayShots += line.AwayShots
	}
	box.HomeAgainst = Against{Shots: box.AwayShots, Goals: box.Score.Away}
	box.AwayAgainst = Against{Shots: box.HomeShots, Goals: box.Score.Home}
	return box
}

// AssignDecisions sets goalie decisions for a finished game. On each side
// the goalie with the most time in net (the starter on a tie) takes the
// decision; everyone else gets ND. A shootout loss is never inferred since
// shootouts are not part of the log.
func AssignDecisions(game Game, lines []GoalieLine) []GoalieLine {
	out := make([]GoalieLine, len(lines))
	copy(out, lines)

	score := game.Score()
	for i := range out {
		out[i].Decision = DecisionNone
		out[i].Shutout = false
	}
	if score.Home == score.Away {
		return out
	}
	winner, loser := game.HomeTeamID, game.AwayTeamID
	if score.Away > score.Home {
		winner, loser = loser, winner
	}

	if idx := decidingGoalie(out, winner); idx >= 0 {
		out[idx].Decision = DecisionWin
		out[idx].Shutout = out[idx].GoalsAgainst == 0 && soleGoalie(out, winner)
	}
	if idx := decidingGoalie(out, loser); idx >= 0 {
		out[idx].Decision = DecisionLoss
		if game.WentOT {
			out[idx].Decision = DecisionOTLoss
		}
	}
	return out
}

func decidingGoalie(lines []GoalieLine, teamID uint) int {
	best := -1
	for i, line := range lines {
		if line.TeamID != teamID {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		current := lines[best]
		if line.MinutesPlayed > current.MinutesPlayed ||
			(line.MinutesPlayed == current.MinutesPlayed && line.Started && !current.Started) {
			best = i
		}
	}
	return best
}

// soleGoalie reports whether only one goalie on the team saw the ice.
func soleGoalie(lines []GoalieLine, teamID uint) bool {
	count := 0
	for _, line := range lines {
		if line.TeamID == teamID && (line.MinutesPlayed > 0 || line.Started || line.Active) {
			count++
		}
	}
	return count <= 1
}
