package hockey

import "sort"

const maxAssistsPerGoal = 2

// Row is one display line of the event log: a goal with up to two assists,
// or a single event of any other kind.
type Row struct {
	Lead    Event
	Assists []Event
	// Orphan marks an assist that could not be attached to a goal.
	Orphan bool
}

func (r Row) Period() int  { return r.Lead.Period }
func (r Row) Clock() Clock { return r.Lead.Clock }
func (r Row) IsGoal() bool { return r.Lead.IsGoal() }

// Group pairs goals with their assists and orders the rows by period and
// then by descending clock. Rows sharing a period and clock keep the order
// of their lead events in the input.
//
// Assists match a goal on (period, clock, team) only. When two goals share
// that key the assists go to the first one in log order. Nothing is
// dropped: an assist without a goal, or past the second assist, becomes its
// own row. The input is not modified.
func Group(events []Event) []Row {
	firstGoal := make(map[Key]int)
	for i, evt := range events {
		if !evt.IsGoal() || evt.TeamID == 0 {
			continue
		}
		if _, exists := firstGoal[evt.Key()]; !exists {
			firstGoal[evt.Key()] = i
		}
	}

	attached := make(map[int][]Event)
	orphans := make(map[int]bool)
	for i, evt := range events {
		if evt.Kind() != KindAssist {
			continue
		}
		goal, ok := firstGoal[evt.Key()]
		if !ok || evt.TeamID == 0 || len(attached[goal]) >= maxAssistsPerGoal {
			orphans[i] = true
			continue
		}
		attached[goal] = append(attached[goal], evt)
	}

	rows := make([]Row, 0, len(events)-len(events)/3)
	for i, evt := range events {
		switch {
		case evt.Kind() == KindAssist:
			if orphans[i] {
				rows = append(rows, Row{Lead: evt, Orphan: true})
			}
		case evt.IsGoal():
			rows = append(rows, Row{Lead: evt, Assists: attached[i]})
		default:
			rows = append(rows, Row{Lead: evt})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Lead.Period != rows[j].Lead.Period {
			return rows[i].Lead.Period < rows[j].Lead.Period
		}
		return rows[i].Lead.Clock > rows[j].Lead.Clock
	})
	return rows
}
