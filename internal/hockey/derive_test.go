package hockey

import (
	"math/rand"
	"testing"
)

func countGoals(events []Event, team uint) int {
	count := 0
	for _, evt := range events {
		if evt.Kind() == KindGoal && evt.TeamID == team {
			count++
		}
	}
	return count
}

func TestDeriveMatchesGoalCount(t *testing.T) {
	cases := map[string][]Event{
		"empty": nil,
		"assists and penalties only": {
			newEvent(1, 1, "10:00", teamA, 3, Assist{}),
			newEvent(2, 1, "09:00", teamB, 4, Penalty{Minutes: 2}),
			newEvent(3, 2, "09:00", teamB, 4, Shot{}),
			newEvent(4, 2, "08:00", teamA, 30, Save{}),
		},
		"duplicate timestamps": {
			newEvent(1, 1, "10:00", teamA, 7, Goal{}),
			newEvent(2, 1, "10:00", teamA, 7, Goal{}),
			newEvent(3, 1, "10:00", teamB, 2, Goal{}),
		},
		"orphan assists and foreign team": {
			newEvent(1, 1, "10:00", teamA, 3, Assist{}),
			newEvent(2, 3, "00:10", 99, 1, Goal{}),
			newEvent(3, 4, "04:00", teamB, 2, Goal{Strength: StrengthPowerPlay}),
		},
	}
	for name, events := range cases {
		t.Run(name, func(t *testing.T) {
			score := Derive(teamA, teamB, events)
			if score.Home != countGoals(events, teamA) || score.Away != countGoals(events, teamB) {
				t.Fatalf("unexpected score %+v", score)
			}
		})
	}
}

func TestDeriveScenario(t *testing.T) {
	events := []Event{
		newEvent(1, 1, "10:00", teamA, 7, Goal{}),
		newEvent(2, 1, "10:00", teamA, 3, Assist{}),
		newEvent(3, 1, "10:00", teamA, 9, Assist{}),
		newEvent(4, 2, "05:30", teamB, 2, Goal{}),
	}
	score := Derive(teamA, teamB, events)
	if score != (Score{Home: 1, Away: 1}) {
		t.Fatalf("expected 1-1, got %+v", score)
	}
}

func TestDeriveIsIdempotentAndOrderIndependent(t *testing.T) {
	events := []Event{
		newEvent(1, 1, "19:00", teamA, 7, Goal{}),
		newEvent(2, 1, "18:00", teamB, 2, Goal{}),
		newEvent(3, 2, "11:00", teamA, 8, Goal{}),
		newEvent(4, 2, "11:00", teamA, 3, Assist{}),
		newEvent(5, 3, "01:00", teamB, 4, Penalty{Minutes: 2}),
		newEvent(6, 3, "00:30", teamA, 7, Goal{Strength: StrengthEmptyNet}),
	}
	want := Derive(teamA, teamB, events)
	rng := rand.New(rand.NewSource(42))
	shuffled := make([]Event, len(events))
	copy(shuffled, events)
	for range 20 {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		if got := Derive(teamA, teamB, shuffled); got != want {
			t.Fatalf("expected %+v regardless of order, got %+v", want, got)
		}
	}
	if want != (Score{Home: 3, Away: 1}) {
		t.Fatalf("expected 3-1, got %+v", want)
	}
}

func TestWentToOvertime(t *testing.T) {
	if WentToOvertime([]Event{newEvent(1, 3, "00:01", teamA, 1, Shot{})}) {
		t.Fatalf("regulation log reported overtime")
	}
	if !WentToOvertime([]Event{newEvent(1, 4, "04:59", teamA, 1, Shot{})}) {
		t.Fatalf("expected overtime")
	}
}

func TestSummarizeCountsShotsAndAgainst(t *testing.T) {
	game := Game{ID: 1, HomeTeamID: teamA, AwayTeamID: teamB}
	events := []Event{
		newEvent(1, 1, "19:00", teamA, 7, Goal{}),
		newEvent(2, 1, "18:00", teamA, 8, Shot{}),
		newEvent(3, 1, "17:00", teamA, 31, Save{}),
		newEvent(4, 2, "10:00", teamB, 2, Goal{}),
		newEvent(5, 2, "09:00", teamB, 5, Penalty{Minutes: 2, Infraction: "tripping"}),
		newEvent(6, 3, "02:00", teamB, 6, Shot{}),
	}
	box := Summarize(game, events)
	if len(box.Periods) != 3 {
		t.Fatalf("expected three periods, got %d", len(box.Periods))
	}
	if box.HomeShots != 2 || box.AwayShots != 3 {
		t.Fatalf("expected shots 2-3, got %d-%d", box.HomeShots, box.AwayShots)
	}
	if box.HomeAgainst != (Against{Shots: 3, Goals: 1}) {
		t.Fatalf("unexpected home against %+v", box.HomeAgainst)
	}
	if box.AwayAgainst != (Against{Shots: 2, Goals: 1}) {
		t.Fatalf("unexpected away against %+v", box.AwayAgainst)
	}
	if box.AwayPIM != 2 || box.HomePIM != 0 {
		t.Fatalf("unexpected penalty minutes %d-%d", box.HomePIM, box.AwayPIM)
	}
	if box.Periods[0].AwayShots != 1 {
		t.Fatalf("expected save credited as away shot in p1, got %+v", box.Periods[0])
	}
}

func TestSummarizeAddsOvertimePeriod(t *testing.T) {
	game := Game{ID: 1, HomeTeamID: teamA, AwayTeamID: teamB}
	box := Summarize(game, []Event{newEvent(1, 4, "03:00", teamB, 2, Goal{})})
	if !box.WentOT || len(box.Periods) != 4 || box.Periods[3].AwayGoals != 1 {
		t.Fatalf("unexpected overtime boxscore %+v", box)
	}
}

func TestAssignDecisions(t *testing.T) {
	game := Game{HomeTeamID: teamA, AwayTeamID: teamB, HomeScore: 2, AwayScore: 0}
	lines := []GoalieLine{
		{TeamID: teamA, PlayerID: 30, Started: true, MinutesPlayed: 3600},
		{TeamID: teamB, PlayerID: 31, Started: true, MinutesPlayed: 2400, GoalsAgainst: 2},
		{TeamID: teamB, PlayerID: 35, MinutesPlayed: 1200},
	}
	out := AssignDecisions(game, lines)
	if out[0].Decision != DecisionWin || !out[0].Shutout {
		t.Fatalf("expected shutout win, got %+v", out[0])
	}
	if out[1].Decision != DecisionLoss || out[2].Decision != DecisionNone {
		t.Fatalf("expected L and ND, got %s and %s", out[1].Decision, out[2].Decision)
	}
	if lines[0].Decision != "" {
		t.Fatalf("input lines must not change")
	}

	game.WentOT = true
	game.AwayScore = 1
	out = AssignDecisions(game, lines)
	if out[1].Decision != DecisionOTLoss {
		t.Fatalf("expected OTL, got %s", out[1].Decision)
	}
}

func TestAssignDecisionsTieLeavesNoDecision(t *testing.T) {
	game := Game{HomeTeamID: teamA, AwayTeamID: teamB, HomeScore: 1, AwayScore: 1}
	out := AssignDecisions(game, []GoalieLine{{TeamID: teamA, Decision: DecisionWin, Shutout: true}})
	if out[0].Decision != DecisionNone || out[0].Shutout {
		t.Fatalf("expected ND, got %+v", out[0])
	}
}
