package server

import (
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	viewerBuffer = 8
	maxReadBytes = 512
)

// viewer is one websocket client. Only writePump writes to the
// connection.
type viewer struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	sent    bool
	version uint64
}

func newViewer(conn *websocket.Conn) *viewer {
	return &viewer{
		conn: conn,
		send: make(chan []byte, viewerBuffer),
		done: make(chan struct{}),
	}
}

// push queues a view for the client. Views older than one already queued
// are skipped, and when the client falls behind the oldest queued view is
// dropped since every message carries the full state.
func (v *viewer) push(version uint64, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.sent && version <= v.version {
		return
	}
	v.sent, v.version = true, version
	for {
		select {
		case <-v.done:
			return
		case v.send <- data:
			return
		default:
		}
		select {
		case <-v.send:
		default:
		}
	}
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.done) })
}

func (v *viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()
	for {
		select {
		case <-v.done:
			_ = v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case data := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				v.close()
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				v.close()
				return
			}
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	game, err := s.store.GetGame(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sess, err := s.live.acquire(r.Context(), game.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.live.release(sess)
		return
	}
	log.Printf("ws connected game_id=%d remote=%s", game.ID, r.RemoteAddr)

	v := newViewer(conn)
	sess.addViewer(v)
	view := sess.coord.View()
	if data, err := json.Marshal(viewSnapshot(view)); err == nil {
		v.push(view.Version, data)
	}
	go v.writePump()
	go s.readViewer(sess, v)
}

// readViewer only services control frames; viewers never send commands.
func (s *Server) readViewer(sess *liveSession, v *viewer) {
	defer func() {
		sess.removeViewer(v)
		v.close()
		s.live.release(sess)
	}()
	v.conn.SetReadLimit(maxReadBytes)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws disconnected game_id=%d error=%v", sess.gameID, err)
			}
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}
