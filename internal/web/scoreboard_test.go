package web

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestScoreboardEscapesAndListsRows(t *testing.T) {
	data := ScoreboardData{
		Ref:       "1",
		Status:    "final",
		WentOT:    true,
		HomeTeam:  "Ice <Hawks>",
		AwayTeam:  "Pucks",
		HomeScore: 3,
		AwayScore: 2,
		Periods:   []ScoreboardPeriod{{Label: "1", HomeGoals: 1}, {Label: "OT", HomeGoals: 1}},
		Rows: []ScoreboardRow{
			{Period: "1", Clock: "10:00", Team: "Pucks", Kind: "assist", Summary: "Assist #3 (no goal)", Orphan: true},
		},
	}
	var buf bytes.Buffer
	if err := Scoreboard(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	if strings.Contains(page, "<Hawks>") || !strings.Contains(page, "Ice &lt;Hawks&gt;") {
		t.Fatalf("expected team name to be escaped")
	}
	for _, want := range []string{"3 - 2", "final/OT", `class="event assist orphan"`, "<th>OT</th>"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}

func TestScoreboardEmptyLog(t *testing.T) {
	var buf bytes.Buffer
	if err := Scoreboard(ScoreboardData{Ref: "2", Status: "scheduled"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No events yet.") {
		t.Fatalf("expected empty state")
	}
}

func TestScoreboardScriptRendersPushedRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Scoreboard(ScoreboardData{Ref: "3", Status: "live"}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	page := buf.String()
	for _, want := range []string{`<ol id="events"`, "renderRows(view.rows);", `<p id="override" class="notice" hidden>`, "row.summary"} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}
