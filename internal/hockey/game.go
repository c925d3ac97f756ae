package hockey

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinal     Status = "final"
)

func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusScheduled, StatusLive, StatusFinal:
		return Status(raw), nil
	case "open":
		return StatusLive, nil
	}
	return "", &ValidationError{Field: "status", Message: "unknown status " + raw}
}

// CanTransition reports whether a game may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusLive || to == StatusFinal
	case StatusLive:
		return to == StatusFinal
	case StatusFinal:
		return to == StatusLive
	}
	return false
}

// Game is the aggregate root. HomeScore and AwayScore are a cached view of
// the event log and are overwritten by every recompute.
type Game struct {
	ID         uint
	Slug       string
	HomeTeamID uint
	AwayTeamID uint
	HomeScore  int
	AwayScore  int
	WentOT     bool
	Status     Status
	UpdatedAt  time.Time
}

// Side tells which side of the game a team is on.
func (g Game) Side(teamID uint) (Side, bool) {
	switch teamID {
	case g.HomeTeamID:
		return Home, true
	case g.AwayTeamID:
		return Away, true
	}
	return "", false
}

// Opponent returns the other team id, or zero for a team not in the game.
func (g Game) Opponent(teamID uint) uint {
	switch teamID {
	case g.HomeTeamID:
		return g.AwayTeamID
	case g.AwayTeamID:
		return g.HomeTeamID
	}
	return 0
}

func (g Game) Score() Score {
	return Score{Home: g.HomeScore, Away: g.AwayScore}
}

type Side string

const (
	Home Side = "home"
	Away Side = "away"
)

func ParseSide(raw string) (Side, error) {
	switch Side(raw) {
	case Home, Away:
		return Side(raw), nil
	}
	return "", &ValidationError{Field: "side", Message: "side must be home or away"}
}

type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Add returns the score with delta goals applied to one side, floored at zero.
func (s Score) Add(side Side, delta int) Score {
	switch side {
	case Home:
		s.Home = max(s.Home+delta, 0)
	case Away:
		s.Away = max(s.Away+delta, 0)
	}
	return s
}

type Decision string

const (
	DecisionNone   Decision = "ND"
	DecisionWin    Decision = "W"
	DecisionLoss   Decision = "L"
	DecisionOTLoss Decision = "OTL"
	DecisionSOLoss Decision = "SOL"
)

func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case "":
		return DecisionNone, nil
	case DecisionNone, DecisionWin, DecisionLoss, DecisionOTLoss, DecisionSOLoss:
		return Decision(raw), nil
	}
	return "", &ValidationError{Field: "decision", Message: "unknown decision " + raw}
}

// GoalieLine is the per-game ledger for one goalie. It is kept alongside
// the event log rather than derived from it because who is in net is not
// itself an event.
type GoalieLine struct {
	GameID        uint
	TeamID        uint
	PlayerID      uint
	Started       bool
	Active        bool
	MinutesPlayed int // seconds
	ShotsAgainst  int
	GoalsAgainst  int
	Decision      Decision
	Shutout       bool
}

// RosterEntry marks a player as dressed for a game.
type RosterEntry struct {
	GameID   uint
	TeamID   uint
	PlayerID uint
	Dressed  bool
}
