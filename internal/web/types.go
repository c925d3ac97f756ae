package web

// ScoreboardRow is one line of the event log as the page prints it.
type ScoreboardRow struct {
	Period  string
	Clock   string
	Team    string
	Kind    string
	Summary string
	Orphan  bool
}

type ScoreboardPeriod struct {
	Label     string
	HomeGoals int
	AwayGoals int
	HomeShots int
	AwayShots int
}

type ScoreboardData struct {
	Ref        string
	Slug       string
	Status     string
	HomeTeam   string
	AwayTeam   string
	HomeScore  int
	AwayScore  int
	WentOT     bool
	Overridden bool
	HomeShots  int
	AwayShots  int
	Periods    []ScoreboardPeriod
	Rows       []ScoreboardRow
	UpdatedAt  string
}
