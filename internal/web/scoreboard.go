package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Scoreboard renders the public page for one game. The page keeps itself
// current over the game's websocket; the server-side render is the first
// paint.
func Scoreboard(data ScoreboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>`)
		b.WriteString(esc(data.HomeTeam + " vs " + data.AwayTeam))
		b.WriteString(`</title>
  </head>
  <body>
    <main class="shell" data-game="`)
		b.WriteString(esc(data.Ref))
		b.WriteString(`">
      <header class="scoreline">
        <span class="team home">`)
		b.WriteString(esc(data.HomeTeam))
		b.WriteString(`</span>
        <span id="score" class="score">`)
		b.WriteString(itoa(data.HomeScore) + " - " + itoa(data.AwayScore))
		b.WriteString(`</span>
        <span class="team away">`)
		b.WriteString(esc(data.AwayTeam))
		b.WriteString(`</span>
        <span id="status" class="status">`)
		b.WriteString(esc(statusLabel(data)))
		b.WriteString(`</span>
      </header>
`)
		b.WriteString(`      <p id="override" class="notice"`)
		if !data.Overridden {
			b.WriteString(` hidden`)
		}
		b.WriteString(`>Score set manually.</p>
`)
		writePeriods(&b, data)
		writeRows(&b, data.Rows)
		b.WriteString(`      <footer class="updated">Updated <span id="updated">`)
		b.WriteString(esc(data.UpdatedAt))
		b.WriteString(`</span></footer>
    </main>
    <script>
      const shell = document.querySelector("main.shell");
      const proto = location.protocol === "https:" ? "wss://" : "ws://";
      const socket = new WebSocket(proto + location.host + "/ws/games/" + encodeURIComponent(shell.dataset.game));
      socket.addEventListener("message", (event) => {
        const view = JSON.parse(event.data);
        if (view.type !== "view") {
          return;
        }
        document.getElementById("score").textContent = view.score.home + " - " + view.score.away;
        document.getElementById("status").textContent = view.stale ? "reconnecting" : view.game.status;
        document.getElementById("override").hidden = !view.overridden;
        renderRows(view.rows);
      });
      function renderRows(rows) {
        const list = document.getElementById("events");
        list.replaceChildren();
        if (rows.length === 0) {
          const empty = document.createElement("li");
          empty.className = "empty";
          empty.textContent = "No events yet.";
          list.append(empty);
          return;
        }
        for (const row of rows) {
          const item = document.createElement("li");
          item.className = "event " + row.kind + (row.orphan ? " orphan" : "");
          const when = document.createElement("span");
          when.className = "when";
          when.textContent = (row.period === 4 ? "OT" : row.period) + " " + row.clock;
          const team = document.createElement("span");
          team.className = "team";
          team.textContent = "Team " + row.team_id;
          item.append(when, " ", team, " " + row.summary);
          list.append(item);
        }
      }
    </script>
  </body>
</html>
`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func statusLabel(data ScoreboardData) string {
	if data.Status == "final" && data.WentOT {
		return "final/OT"
	}
	return data.Status
}

func writePeriods(b *strings.Builder, data ScoreboardData) {
	if len(data.Periods) == 0 {
		return
	}
	b.WriteString(`      <table class="periods">
        <tr><th></th>`)
	for _, p := range data.Periods {
		b.WriteString("<th>" + esc(p.Label) + "</th>")
	}
	b.WriteString("<th>SOG</th></tr>\n        <tr><td>" + esc(data.HomeTeam) + "</td>")
	for _, p := range data.Periods {
		b.WriteString("<td>" + itoa(p.HomeGoals) + "</td>")
	}
	b.WriteString("<td>" + itoa(data.HomeShots) + "</td></tr>\n        <tr><td>" + esc(data.AwayTeam) + "</td>")
	for _, p := range data.Periods {
		b.WriteString("<td>" + itoa(p.AwayGoals) + "</td>")
	}
	b.WriteString("<td>" + itoa(data.AwayShots) + "</td></tr>\n      </table>\n")
}

func writeRows(b *strings.Builder, rows []ScoreboardRow) {
	b.WriteString(`      <ol id="events" class="events">
`)
	if len(rows) == 0 {
		b.WriteString(`        <li class="empty">No events yet.</li>
`)
	}
	for _, row := range rows {
		class := "event " + row.Kind
		if row.Orphan {
			class += " orphan"
		}
		b.WriteString(`        <li class="` + esc(class) + `"><span class="when">` +
			esc(row.Period) + " " + esc(row.Clock) + `</span> <span class="team">` +
			esc(row.Team) + `</span> ` + esc(row.Summary) + "</li>\n")
	}
	b.WriteString("      </ol>\n")
}
