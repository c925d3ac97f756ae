package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"rinkside/internal/livesync"
)

// liveSessions shares one coordinator per game between everyone watching
// it. The first acquire opens the coordinator and the last release closes
// it.
type liveSessions struct {
	mu     sync.Mutex
	source livesync.Source
	resync time.Duration
	games  map[uint]*liveSession
}

type liveSession struct {
	gameID uint
	ready  chan struct{}
	err    error
	coord  *livesync.Coordinator
	refs   int

	viewersMu sync.Mutex
	viewers   map[*viewer]struct{}
}

func newLiveSessions(source livesync.Source, resync time.Duration) *liveSessions {
	return &liveSessions{
		source: source,
		resync: resync,
		games:  make(map[uint]*liveSession),
	}
}

func (l *liveSessions) acquire(ctx context.Context, gameID uint) (*liveSession, error) {
	l.mu.Lock()
	sess := l.games[gameID]
	if sess != nil {
		sess.refs++
		l.mu.Unlock()
		select {
		case <-sess.ready:
		case <-ctx.Done():
			l.release(sess)
			return nil, ctx.Err()
		}
		if sess.err != nil {
			return nil, sess.err
		}
		return sess, nil
	}

	sess = &liveSession{
		gameID:  gameID,
		ready:   make(chan struct{}),
		refs:    1,
		viewers: make(map[*viewer]struct{}),
	}
	l.games[gameID] = sess
	l.mu.Unlock()

	sess.coord, sess.err = livesync.Open(ctx, l.source, idString(gameID), livesync.Options{
		ResyncInterval: l.resync,
		OnChange:       sess.broadcast,
	})
	close(sess.ready)
	if sess.err != nil {
		l.mu.Lock()
		if l.games[gameID] == sess {
			delete(l.games, gameID)
		}
		l.mu.Unlock()
		return nil, sess.err
	}
	return sess, nil
}

func (l *liveSessions) release(sess *liveSession) {
	l.mu.Lock()
	sess.refs--
	last := sess.refs == 0 && l.games[sess.gameID] == sess
	if last {
		delete(l.games, sess.gameID)
	}
	l.mu.Unlock()
	if last && sess.coord != nil {
		sess.coord.Close()
	}
}

// active reports how many games currently have an open coordinator.
func (l *liveSessions) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.games)
}

func (l *liveSessions) closeAll() {
	l.mu.Lock()
	sessions := make([]*liveSession, 0, len(l.games))
	for id, sess := range l.games {
		sessions = append(sessions, sess)
		delete(l.games, id)
	}
	l.mu.Unlock()
	for _, sess := range sessions {
		<-sess.ready
		if sess.coord != nil {
			sess.coord.Close()
		}
		sess.closeViewers()
	}
}

func (s *liveSession) broadcast(view livesync.View) {
	data, err := json.Marshal(viewSnapshot(view))
	if err != nil {
		log.Printf("view marshal failed game_id=%d err=%v", s.gameID, err)
		return
	}
	s.viewersMu.Lock()
	viewers := make([]*viewer, 0, len(s.viewers))
	for v := range s.viewers {
		viewers = append(viewers, v)
	}
	s.viewersMu.Unlock()
	for _, v := range viewers {
		v.push(view.Version, data)
	}
}

func (s *liveSession) addViewer(v *viewer) {
	s.viewersMu.Lock()
	s.viewers[v] = struct{}{}
	count := len(s.viewers)
	s.viewersMu.Unlock()
	log.Printf("viewer joined game_id=%d viewers=%d", s.gameID, count)
}

func (s *liveSession) removeViewer(v *viewer) {
	s.viewersMu.Lock()
	delete(s.viewers, v)
	count := len(s.viewers)
	s.viewersMu.Unlock()
	log.Printf("viewer left game_id=%d viewers=%d", s.gameID, count)
}

func (s *liveSession) closeViewers() {
	s.viewersMu.Lock()
	viewers := make([]*viewer, 0, len(s.viewers))
	for v := range s.viewers {
		viewers = append(viewers, v)
	}
	s.viewersMu.Unlock()
	for _, v := range viewers {
		v.close()
	}
}
