// Package roster tracks which players are dressed for a game and saves
// the desired set as a diff against what is persisted.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"rinkside/internal/hockey"
	"rinkside/internal/store"
)

type Tracker struct {
	mu      sync.Mutex
	store   store.RosterStore
	gameID  uint
	desired map[uint]map[uint]struct{}
	// edits counts toggles; saved is the count the last clean save saw.
	edits uint64
	saved uint64
}

func NewTracker(st store.RosterStore, gameID uint) *Tracker {
	return &Tracker{
		store:   st,
		gameID:  gameID,
		desired: make(map[uint]map[uint]struct{}),
	}
}

// Load replaces the desired set with the persisted one.
func (t *Tracker) Load(ctx context.Context) error {
	entries, err := t.store.ListRoster(ctx, t.gameID)
	if err != nil {
		return err
	}
	desired := make(map[uint]map[uint]struct{})
	for _, entry := range entries {
		if entry.Dressed {
			addPlayer(desired, entry.TeamID, entry.PlayerID)
		}
	}
	t.mu.Lock()
	t.desired = desired
	t.saved = t.edits
	t.mu.Unlock()
	return nil
}

func addPlayer(set map[uint]map[uint]struct{}, teamID, playerID uint) {
	players := set[teamID]
	if players == nil {
		players = make(map[uint]struct{})
		set[teamID] = players
	}
	players[playerID] = struct{}{}
}

// Toggle flips one player locally and reports whether they are now dressed.
func (t *Tracker) Toggle(teamID, playerID uint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edits++
	if _, ok := t.desired[teamID][playerID]; ok {
		delete(t.desired[teamID], playerID)
		return false
	}
	addPlayer(t.desired, teamID, playerID)
	return true
}

// Unsaved reports toggles made since the last load or fully successful save.
func (t *Tracker) Unsaved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.edits != t.saved
}

// Dressed lists the desired players of a team in id order.
func (t *Tracker) Dressed(teamID uint) []uint {
	t.mu.Lock()
	defer t.mu.Unlock()
	players := make([]uint, 0, len(t.desired[teamID]))
	for playerID := range t.desired[teamID] {
		players = append(players, playerID)
	}
	sort.Slice(players, func(i, j int) bool { return players[i] < players[j] })
	return players
}

type SaveResult struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// Save issues only the upserts and deletes needed to make the persisted
// roster match the desired one. Teams are saved independently; a failed
// team can be saved again without touching the others.
func (t *Tracker) Save(ctx context.Context) (SaveResult, error) {
	entries, err := t.store.ListRoster(ctx, t.gameID)
	if err != nil {
		return SaveResult{}, err
	}
	persisted := make(map[uint]map[uint]struct{})
	for _, entry := range entries {
		if entry.Dressed {
			addPlayer(persisted, entry.TeamID, entry.PlayerID)
		}
	}

	t.mu.Lock()
	snapshot := t.edits
	teams := make(map[uint]struct{})
	for teamID := range t.desired {
		teams[teamID] = struct{}{}
	}
	for teamID := range persisted {
		teams[teamID] = struct{}{}
	}
	type teamDiff struct {
		teamID  uint
		upserts []hockey.RosterEntry
		deletes []uint
	}
	var diffs []teamDiff
	for teamID := range teams {
		diff := teamDiff{teamID: teamID}
		for playerID := range t.desired[teamID] {
			if _, ok := persisted[teamID][playerID]; !ok {
				diff.upserts = append(diff.upserts, hockey.RosterEntry{GameID: t.gameID, TeamID: teamID, PlayerID: playerID, Dressed: true})
			}
		}
		for playerID := range persisted[teamID] {
			if _, ok := t.desired[teamID][playerID]; !ok {
				diff.deletes = append(diff.deletes, playerID)
			}
		}
		if len(diff.upserts) > 0 || len(diff.deletes) > 0 {
			diffs = append(diffs, diff)
		}
	}
	t.mu.Unlock()

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].teamID < diffs[j].teamID })
	var result SaveResult
	var errs []error
	for _, diff := range diffs {
		sort.Slice(diff.upserts, func(i, j int) bool { return diff.upserts[i].PlayerID < diff.upserts[j].PlayerID })
		sort.Slice(diff.deletes, func(i, j int) bool { return diff.deletes[i] < diff.deletes[j] })
		if len(diff.upserts) > 0 {
			if err := t.store.UpsertRoster(ctx, diff.upserts); err != nil {
				errs = append(errs, fmt.Errorf("team %d upsert: %w", diff.teamID, err))
			} else {
				result.Upserted += len(diff.upserts)
			}
		}
		if len(diff.deletes) > 0 {
			if err := t.store.DeleteRoster(ctx, t.gameID, diff.deletes); err != nil {
				errs = append(errs, fmt.Errorf("team %d delete: %w", diff.teamID, err))
			} else {
				result.Deleted += len(diff.deletes)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("roster save incomplete game_id=%d upserted=%d deleted=%d err=%v", t.gameID, result.Upserted, result.Deleted, err)
		return result, err
	}
	t.mu.Lock()
	t.saved = snapshot
	t.mu.Unlock()
	if result.Upserted > 0 || result.Deleted > 0 {
		log.Printf("roster saved game_id=%d upserted=%d deleted=%d", t.gameID, result.Upserted, result.Deleted)
	}
	return result, nil
}
