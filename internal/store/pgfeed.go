package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"rinkside/internal/db"

	"github.com/lib/pq"
)

const listenerPingInterval = 90 * time.Second

// PGFeed turns the NOTIFY payloads written by the row triggers into
// per-game notifications. A reconnect of the listener may have lost
// payloads, so it asks every subscriber to resync.
type PGFeed struct {
	listener *pq.Listener
	hub      *hub
}

func NewPGFeed(dsn string, minReconnect, maxReconnect time.Duration, buffer int) (*PGFeed, error) {
	feed := &PGFeed{hub: newHub(buffer)}
	feed.listener = pq.NewListener(dsn, minReconnect, maxReconnect, feed.onListenerEvent)
	if err := feed.listener.Listen(db.ChangeChannel); err != nil {
		_ = feed.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", db.ChangeChannel, err)
	}
	return feed, nil
}

func (f *PGFeed) Subscribe(gameID uint, handlers Handlers) func() {
	return f.hub.Subscribe(gameID, handlers)
}

func (f *PGFeed) onListenerEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected:
		log.Printf("change feed connected channel=%s", db.ChangeChannel)
	case pq.ListenerEventDisconnected:
		log.Printf("change feed disconnected err=%v", err)
	case pq.ListenerEventReconnected:
		log.Printf("change feed reconnected; resyncing subscribers")
		f.hub.resyncAll()
	case pq.ListenerEventConnectionAttemptFailed:
		log.Printf("change feed reconnect failed err=%v", err)
	}
}

// Run dispatches notifications until ctx is done, then closes the listener.
func (f *PGFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return f.listener.Close()
		case n := <-f.listener.Notify:
			if n == nil {
				// The connection was re-established; anything sent in
				// between is gone.
				f.hub.resyncAll()
				continue
			}
			f.dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					log.Printf("change feed ping failed err=%v", err)
				}
			}()
		}
	}
}

func (f *PGFeed) dispatch(payload string) {
	gameID, n, err := decodeChange(payload)
	if err != nil {
		log.Printf("change feed decode failed err=%v", err)
		return
	}
	f.hub.publish(gameID, n)
}

type changePayload struct {
	Table  string          `json:"table"`
	Op     string          `json:"op"`
	GameID uint            `json:"game_id"`
	Row    json.RawMessage `json:"row"`
}

func decodeChange(payload string) (uint, notification, error) {
	var change changePayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return 0, notification{}, err
	}
	op := Op(change.Op)
	switch op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return 0, notification{}, fmt.Errorf("unknown op %q", change.Op)
	}

	switch change.Table {
	case "games":
		var row db.Game
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return 0, notification{}, fmt.Errorf("decode games row: %w", err)
		}
		return change.GameID, notification{game: &GameChange{Op: op, Game: gameFromRow(row)}}, nil
	case "game_events":
		var row db.GameEvent
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return 0, notification{}, fmt.Errorf("decode game_events row: %w", err)
		}
		return change.GameID, notification{events: &EventChange{Op: op, Event: eventFromRow(row)}}, nil
	case "roster_entries":
		var row db.RosterEntry
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return 0, notification{}, fmt.Errorf("decode roster_entries row: %w", err)
		}
		return change.GameID, notification{roster: &RosterChange{Op: op, Entry: rosterFromRow(row)}}, nil
	case "goalie_lines":
		var row db.GoalieLine
		if err := json.Unmarshal(change.Row, &row); err != nil {
			return 0, notification{}, fmt.Errorf("decode goalie_lines row: %w", err)
		}
		return change.GameID, notification{goalie: &GoalieChange{Op: op, Line: goalieFromRow(row)}}, nil
	}
	return 0, notification{}, fmt.Errorf("unknown table %q", change.Table)
}
