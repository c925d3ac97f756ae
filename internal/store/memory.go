package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"rinkside/internal/hockey"
)

// MemoryStore keeps everything in process. It enforces the same
// constraints as the Postgres schema and publishes the same change
// notifications, so it backs local runs and tests.
type MemoryStore struct {
	mu          sync.Mutex
	nextGameID  uint
	nextEventID uint
	games       map[uint]*hockey.Game
	events      map[uint][]hockey.Event
	roster      map[uint]map[uint]hockey.RosterEntry
	goalies     map[uint][]hockey.GoalieLine
	feed        *hub
	now         func() time.Time
}

func NewMemoryStore(feedBuffer int) *MemoryStore {
	return &MemoryStore{
		nextGameID:  1,
		nextEventID: 1,
		games:       make(map[uint]*hockey.Game),
		events:      make(map[uint][]hockey.Event),
		roster:      make(map[uint]map[uint]hockey.RosterEntry),
		goalies:     make(map[uint][]hockey.GoalieLine),
		feed:        newHub(feedBuffer),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Subscribe(gameID uint, handlers Handlers) func() {
	return s.feed.Subscribe(gameID, handlers)
}

// Resync asks every subscriber to reload, as a reconnecting listener would.
func (s *MemoryStore) Resync() {
	s.feed.resyncAll()
}

func (s *MemoryStore) CreateGame(ctx context.Context, game hockey.Game) (hockey.Game, error) {
	if err := ctx.Err(); err != nil {
		return hockey.Game{}, err
	}
	game.Slug = strings.TrimSpace(game.Slug)
	if game.Slug == "" {
		return hockey.Game{}, &hockey.ValidationError{Field: "slug", Message: "slug is required"}
	}
	if game.HomeTeamID == 0 || game.AwayTeamID == 0 || game.HomeTeamID == game.AwayTeamID {
		return hockey.Game{}, &hockey.ValidationError{Field: "teams", Message: "two distinct teams are required"}
	}
	if game.Status == "" {
		game.Status = hockey.StatusScheduled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.games {
		if existing.Slug == game.Slug {
			return hockey.Game{}, &hockey.ValidationError{Field: "slug", Message: "slug already in use"}
		}
	}
	game.ID = s.nextGameID
	s.nextGameID++
	game.UpdatedAt = s.now()
	stored := game
	s.games[game.ID] = &stored
	s.feed.publish(game.ID, notification{game: &GameChange{Op: OpInsert, Game: game}})
	return game, nil
}

func (s *MemoryStore) GetGame(ctx context.Context, ref string) (hockey.Game, error) {
	if err := ctx.Err(); err != nil {
		return hockey.Game{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		if game, ok := s.games[uint(id)]; ok {
			return *game, nil
		}
		return hockey.Game{}, hockey.ErrNotFound
	}
	for _, game := range s.games {
		if game.Slug == ref {
			return *game, nil
		}
	}
	return hockey.Game{}, hockey.ErrNotFound
}

func (s *MemoryStore) UpdateGame(ctx context.Context, gameID uint, update GameUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkGameUpdate(update); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return hockey.ErrNotFound
	}
	update.apply(game)
	game.UpdatedAt = s.now()
	s.feed.publish(gameID, notification{game: &GameChange{Op: OpUpdate, Game: *game}})
	return nil
}

func checkGameUpdate(update GameUpdate) error {
	if (update.HomeScore != nil && *update.HomeScore < 0) || (update.AwayScore != nil && *update.AwayScore < 0) {
		return &hockey.ValidationError{Field: "score", Message: "score cannot be negative"}
	}
	return nil
}

func (s *MemoryStore) InsertEvents(ctx context.Context, gameID uint, events []hockey.Event) ([]hockey.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return nil, hockey.ErrNotFound
	}

	inserted := make([]hockey.Event, 0, len(events))
	for i, evt := range events {
		if err := checkEvent(evt); err != nil {
			return inserted, batchError(inserted, events[i:], err)
		}
		evt.ID = s.nextEventID
		s.nextEventID++
		evt.GameID = gameID
		if evt.CreatedAt.IsZero() {
			evt.CreatedAt = s.now()
		}
		s.events[gameID] = append(s.events[gameID], evt)
		inserted = append(inserted, evt)
		s.feed.publish(gameID, notification{events: &EventChange{Op: OpInsert, Event: evt}})
	}
	return inserted, nil
}

// batchError reports a plain error when nothing was written and a
// PartialBatchFailure otherwise.
func batchError(inserted, failed []hockey.Event, cause error) error {
	if len(inserted) == 0 {
		return cause
	}
	return &hockey.PartialBatchFailure{
		Inserted: append([]hockey.Event(nil), inserted...),
		Failed:   append([]hockey.Event(nil), failed...),
		Cause:    cause,
	}
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for gameID, events := range s.events {
		for i, evt := range events {
			if evt.ID != id {
				continue
			}
			s.events[gameID] = append(events[:i:i], events[i+1:]...)
			s.feed.publish(gameID, notification{events: &EventChange{Op: OpDelete, Event: evt}})
			return nil
		}
	}
	return hockey.ErrNotFound
}

func (s *MemoryStore) DeleteEventsMatching(ctx context.Context, gameID uint, period int, clock hockey.Clock, teamID uint) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := hockey.Key{Period: period, Clock: clock, TeamID: teamID}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[gameID][:0:0]
	var removed []hockey.Event
	for _, evt := range s.events[gameID] {
		if evt.Key() == key {
			removed = append(removed, evt)
			continue
		}
		kept = append(kept, evt)
	}
	s.events[gameID] = kept
	for _, evt := range removed {
		s.feed.publish(gameID, notification{events: &EventChange{Op: OpDelete, Event: evt}})
	}
	return len(removed), nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, gameID uint) ([]hockey.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hockey.Event{}, s.events[gameID]...), nil
}

func (s *MemoryStore) ListRoster(ctx context.Context, gameID uint) ([]hockey.RosterEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]hockey.RosterEntry, 0, len(s.roster[gameID]))
	for _, entry := range s.roster[gameID] {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TeamID != entries[j].TeamID {
			return entries[i].TeamID < entries[j].TeamID
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	return entries, nil
}

func (s *MemoryStore) UpsertRoster(ctx context.Context, entries []hockey.RosterEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.PlayerID == 0 || entry.TeamID == 0 {
			return &hockey.ValidationError{Field: "player_id", Message: "roster entries need a player and team"}
		}
		if _, ok := s.games[entry.GameID]; !ok {
			return hockey.ErrNotFound
		}
	}
	for _, entry := range entries {
		group := s.roster[entry.GameID]
		if group == nil {
			group = make(map[uint]hockey.RosterEntry)
			s.roster[entry.GameID] = group
		}
		op := OpInsert
		if _, ok := group[entry.PlayerID]; ok {
			op = OpUpdate
		}
		group[entry.PlayerID] = entry
		s.feed.publish(entry.GameID, notification{roster: &RosterChange{Op: op, Entry: entry}})
	}
	return nil
}

func (s *MemoryStore) DeleteRoster(ctx context.Context, gameID uint, playerIDs []uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.roster[gameID]
	for _, playerID := range playerIDs {
		entry, ok := group[playerID]
		if !ok {
			continue
		}
		delete(group, playerID)
		s.feed.publish(gameID, notification{roster: &RosterChange{Op: OpDelete, Entry: entry}})
	}
	return nil
}

func (s *MemoryStore) ListGoalieLines(ctx context.Context, gameID uint) ([]hockey.GoalieLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := append([]hockey.GoalieLine{}, s.goalies[gameID]...)
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].TeamID != lines[j].TeamID {
			return lines[i].TeamID < lines[j].TeamID
		}
		return lines[i].PlayerID < lines[j].PlayerID
	})
	return lines, nil
}

func (s *MemoryStore) UpsertGoalieLine(ctx context.Context, line hockey.GoalieLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkGoalieLine(line); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[line.GameID]; !ok {
		return hockey.ErrNotFound
	}
	s.putGoalieLocked(line)
	return nil
}

func checkGoalieLine(line hockey.GoalieLine) error {
	if line.PlayerID == 0 || line.TeamID == 0 {
		return &hockey.ValidationError{Field: "player_id", Message: "goalie lines need a player and team"}
	}
	if line.MinutesPlayed < 0 || line.ShotsAgainst < 0 || line.GoalsAgainst < 0 {
		return &hockey.ValidationError{Field: "goalie", Message: "goalie totals cannot be negative"}
	}
	if _, err := hockey.ParseDecision(string(line.Decision)); err != nil {
		return err
	}
	return nil
}

func (s *MemoryStore) putGoalieLocked(line hockey.GoalieLine) {
	if line.Decision == "" {
		line.Decision = hockey.DecisionNone
	}
	lines := s.goalies[line.GameID]
	for i := range lines {
		if lines[i].PlayerID == line.PlayerID {
			lines[i] = line
			s.feed.publish(line.GameID, notification{goalie: &GoalieChange{Op: OpUpdate, Line: line}})
			return
		}
	}
	s.goalies[line.GameID] = append(lines, line)
	s.feed.publish(line.GameID, notification{goalie: &GoalieChange{Op: OpInsert, Line: line}})
}

func (s *MemoryStore) SetActiveGoalie(ctx context.Context, gameID, teamID, playerID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if teamID == 0 || playerID == 0 {
		return &hockey.ValidationError{Field: "player_id", Message: "goalie needs a player and team"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return hockey.ErrNotFound
	}
	found := false
	for _, line := range append([]hockey.GoalieLine(nil), s.goalies[gameID]...) {
		if line.TeamID != teamID {
			continue
		}
		want := line.PlayerID == playerID
		found = found || want
		if line.Active != want {
			line.Active = want
			s.putGoalieLocked(line)
		}
	}
	if !found {
		s.putGoalieLocked(hockey.GoalieLine{GameID: gameID, TeamID: teamID, PlayerID: playerID, Active: true})
	}
	return nil
}

func (s *MemoryStore) AdjustGoalsAgainst(ctx context.Context, gameID, teamID uint, delta int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := goalieInNet(s.goalies[gameID], teamID)
	if idx < 0 {
		return false, nil
	}
	line := s.goalies[gameID][idx]
	line.GoalsAgainst = max(line.GoalsAgainst+delta, 0)
	s.putGoalieLocked(line)
	return true, nil
}

// goalieInNet finds the active goalie for teamID, else the starter.
func goalieInNet(lines []hockey.GoalieLine, teamID uint) int {
	starter := -1
	for i, line := range lines {
		if line.TeamID != teamID {
			continue
		}
		if line.Active {
			return i
		}
		if line.Started && starter < 0 {
			starter = i
		}
	}
	return starter
}
