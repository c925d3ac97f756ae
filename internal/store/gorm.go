package store

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"rinkside/internal/db"
	"rinkside/internal/hockey"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists to Postgres. Change notifications come from the row
// triggers through feed, so every replica sees every write.
type GormStore struct {
	db   *gorm.DB
	feed Feed
}

func NewGormStore(conn *gorm.DB, feed Feed) *GormStore {
	return &GormStore{db: conn, feed: feed}
}

func (s *GormStore) Subscribe(gameID uint, handlers Handlers) func() {
	if s.feed == nil {
		log.Printf("subscribe without change feed game_id=%d", gameID)
		return func() {}
	}
	return s.feed.Subscribe(gameID, handlers)
}

func (s *GormStore) CreateGame(ctx context.Context, game hockey.Game) (hockey.Game, error) {
	game.Slug = strings.TrimSpace(game.Slug)
	if game.Slug == "" {
		return hockey.Game{}, &hockey.ValidationError{Field: "slug", Message: "slug is required"}
	}
	if game.HomeTeamID == 0 || game.AwayTeamID == 0 || game.HomeTeamID == game.AwayTeamID {
		return hockey.Game{}, &hockey.ValidationError{Field: "teams", Message: "two distinct teams are required"}
	}
	row := gameToRow(game)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return hockey.Game{}, classify(err)
	}
	return gameFromRow(row), nil
}

func (s *GormStore) GetGame(ctx context.Context, ref string) (hockey.Game, error) {
	var row db.Game
	query := s.db.WithContext(ctx)
	var err error
	if id, perr := strconv.ParseUint(ref, 10, 64); perr == nil {
		err = query.First(&row, uint(id)).Error
	} else {
		err = query.Where("slug = ?", ref).First(&row).Error
	}
	if err != nil {
		return hockey.Game{}, classify(err)
	}
	return gameFromRow(row), nil
}

func (s *GormStore) UpdateGame(ctx context.Context, gameID uint, update GameUpdate) error {
	if err := checkGameUpdate(update); err != nil {
		return err
	}
	if update.Empty() {
		return nil
	}
	values := map[string]any{"updated_at": time.Now().UTC()}
	if update.HomeScore != nil {
		values["home_score"] = *update.HomeScore
	}
	if update.AwayScore != nil {
		values["away_score"] = *update.AwayScore
	}
	if update.WentOT != nil {
		values["went_ot"] = *update.WentOT
	}
	if update.Status != nil {
		values["status"] = string(*update.Status)
	}
	res := s.db.WithContext(ctx).Model(&db.Game{}).Where("id = ?", gameID).Updates(values)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return hockey.ErrNotFound
	}
	return nil
}

// InsertEvents writes one row at a time so that a failure part way through
// can report exactly which rows landed.
func (s *GormStore) InsertEvents(ctx context.Context, gameID uint, events []hockey.Event) ([]hockey.Event, error) {
	inserted := make([]hockey.Event, 0, len(events))
	for i, evt := range events {
		row, err := eventToRow(gameID, evt)
		if err != nil {
			return inserted, batchError(inserted, events[i:], err)
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return inserted, batchError(inserted, events[i:], classify(err))
		}
		inserted = append(inserted, eventFromRow(row))
	}
	return inserted, nil
}

func (s *GormStore) DeleteEvent(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&db.GameEvent{}, id)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return hockey.ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteEventsMatching(ctx context.Context, gameID uint, period int, clock hockey.Clock, teamID uint) (int, error) {
	res := s.db.WithContext(ctx).
		Where("game_id = ? AND period = ? AND clock = ? AND team_id = ?", gameID, period, clock.String(), teamID).
		Delete(&db.GameEvent{})
	if res.Error != nil {
		return 0, classify(res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) ListEvents(ctx context.Context, gameID uint) ([]hockey.Event, error) {
	var rows []db.GameEvent
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	return eventsFromRows(rows), nil
}

func (s *GormStore) ListRoster(ctx context.Context, gameID uint) ([]hockey.RosterEntry, error) {
	var rows []db.RosterEntry
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("team_id ASC, player_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	entries := make([]hockey.RosterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rosterFromRow(row))
	}
	return entries, nil
}

func (s *GormStore) UpsertRoster(ctx context.Context, entries []hockey.RosterEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]db.RosterEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.PlayerID == 0 || entry.TeamID == 0 {
			return &hockey.ValidationError{Field: "player_id", Message: "roster entries need a player and team"}
		}
		rows = append(rows, rosterToRow(entry))
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"team_id", "dressed", "updated_at"}),
	}).Create(&rows).Error
	return classify(err)
}

func (s *GormStore) DeleteRoster(ctx context.Context, gameID uint, playerIDs []uint) error {
	if len(playerIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND player_id IN ?", gameID, playerIDs).
		Delete(&db.RosterEntry{}).Error
	return classify(err)
}

func (s *GormStore) ListGoalieLines(ctx context.Context, gameID uint) ([]hockey.GoalieLine, error) {
	var rows []db.GoalieLine
	err := s.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("team_id ASC, player_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	lines := make([]hockey.GoalieLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, goalieFromRow(row))
	}
	return lines, nil
}

var goalieColumns = []string{
	"team_id", "started", "active", "minutes_played", "shots_against",
	"goals_against", "decision", "shutout", "updated_at",
}

func (s *GormStore) UpsertGoalieLine(ctx context.Context, line hockey.GoalieLine) error {
	if err := checkGoalieLine(line); err != nil {
		return err
	}
	row := goalieToRow(line)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns(goalieColumns),
	}).Create(&row).Error
	return classify(err)
}

func (s *GormStore) SetActiveGoalie(ctx context.Context, gameID, teamID, playerID uint) error {
	if teamID == 0 || playerID == 0 {
		return &hockey.ValidationError{Field: "player_id", Message: "goalie needs a player and team"}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&db.GoalieLine{}).
			Where("game_id = ? AND team_id = ? AND player_id <> ? AND active", gameID, teamID, playerID).
			Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return err
		}
		row := db.GoalieLine{GameID: gameID, TeamID: teamID, PlayerID: playerID, Active: true, Decision: string(hockey.DecisionNone)}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"team_id", "active", "updated_at"}),
		}).Create(&row).Error
	})
	return classify(err)
}

func (s *GormStore) AdjustGoalsAgainst(ctx context.Context, gameID, teamID uint, delta int) (bool, error) {
	adjusted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, flag := range []string{"active", "started"} {
			var row db.GoalieLine
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("game_id = ? AND team_id = ? AND "+flag, gameID, teamID).
				Order("id ASC").
				First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			adjusted = true
			return tx.Model(&row).Updates(map[string]any{
				"goals_against": max(row.GoalsAgainst+delta, 0),
				"updated_at":    time.Now().UTC(),
			}).Error
		}
		return nil
	})
	if err != nil {
		return false, classify(err)
	}
	return adjusted, nil
}
