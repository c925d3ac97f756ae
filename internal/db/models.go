package db

import (
	"time"

	"gorm.io/datatypes"
)

// The json tags match the column names so that rows delivered by the
// change-notification triggers (row_to_json) decode into the same structs.

type Game struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	HomeTeamID uint      `gorm:"not null" json:"home_team_id"`
	AwayTeamID uint      `gorm:"not null" json:"away_team_id"`
	HomeScore  int       `gorm:"not null;default:0" json:"home_score"`
	AwayScore  int       `gorm:"not null;default:0" json:"away_score"`
	WentOT     bool      `gorm:"column:went_ot;not null;default:false" json:"went_ot"`
	Status     string    `gorm:"size:16;not null;default:scheduled" json:"status"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

type GameEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	GameID    uint           `gorm:"index;not null" json:"game_id"`
	TeamID    uint           `gorm:"not null" json:"team_id"`
	PlayerID  *uint          `json:"player_id"`
	Period    int            `gorm:"not null" json:"period"`
	Clock     string         `gorm:"size:5;not null" json:"clock"`
	Kind      string         `gorm:"size:16;not null" json:"kind"`
	Details   datatypes.JSON `gorm:"type:jsonb;not null" json:"details"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

type GoalieLine struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GameID        uint      `gorm:"not null;uniqueIndex:idx_goalie_lines_game_player" json:"game_id"`
	TeamID        uint      `gorm:"not null" json:"team_id"`
	PlayerID      uint      `gorm:"not null;uniqueIndex:idx_goalie_lines_game_player" json:"player_id"`
	Started       bool      `gorm:"not null;default:false" json:"started"`
	Active        bool      `gorm:"not null;default:false" json:"active"`
	MinutesPlayed int       `gorm:"not null;default:0" json:"minutes_played"`
	ShotsAgainst  int       `gorm:"not null;default:0" json:"shots_against"`
	GoalsAgainst  int       `gorm:"not null;default:0" json:"goals_against"`
	Decision      string    `gorm:"size:3;not null;default:ND" json:"decision"`
	Shutout       bool      `gorm:"not null;default:false" json:"shutout"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

type RosterEntry struct {
	GameID    uint      `gorm:"primaryKey" json:"game_id"`
	PlayerID  uint      `gorm:"primaryKey" json:"player_id"`
	TeamID    uint      `gorm:"index;not null" json:"team_id"`
	Dressed   bool      `gorm:"not null" json:"dressed"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
