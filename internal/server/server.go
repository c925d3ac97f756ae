package server

import (
	"net/http"
	"strconv"
	"sync"

	"rinkside/internal/config"
	"rinkside/internal/roster"
	"rinkside/internal/scoring"
	"rinkside/internal/store"

	"github.com/rs/cors"
)

type Server struct {
	store   store.Store
	scoring *scoring.Service
	cfg     config.Config
	live    *liveSessions

	rostersMu sync.Mutex
	rosters   map[uint]*roster.Tracker
}

func New(st store.Store, cfg config.Config) *Server {
	registerValidators()
	return &Server{
		store:   st,
		scoring: scoring.NewService(st),
		cfg:     cfg,
		live:    newLiveSessions(st, cfg.ResyncInterval()),
		rosters: make(map[uint]*roster.Tracker),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/{ref}", s.handleScoreboardView)
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/{ref}", s.handleGetGame)
	mux.HandleFunc("POST /api/games/{ref}/goals", s.handleAddGoal)
	mux.HandleFunc("POST /api/games/{ref}/events", s.handleAddEvent)
	mux.HandleFunc("DELETE /api/games/{ref}/events/{id}", s.handleDeleteEvent)
	mux.HandleFunc("DELETE /api/games/{ref}/groups", s.handleDeleteGroup)
	mux.HandleFunc("PUT /api/games/{ref}/score", s.handleSetScore)
	mux.HandleFunc("POST /api/games/{ref}/score/adjust", s.handleAdjustScore)
	mux.HandleFunc("POST /api/games/{ref}/recompute", s.handleRecompute)
	mux.HandleFunc("PUT /api/games/{ref}/status", s.handleSetStatus)
	mux.HandleFunc("POST /api/games/{ref}/roster/toggle", s.handleRosterToggle)
	mux.HandleFunc("POST /api/games/{ref}/roster/save", s.handleRosterSave)
	mux.HandleFunc("GET /api/games/{ref}/roster", s.handleGetRoster)
	mux.HandleFunc("PUT /api/games/{ref}/goalies", s.handleUpsertGoalie)
	mux.HandleFunc("PUT /api/games/{ref}/goalies/active", s.handleSetActiveGoalie)
	mux.HandleFunc("GET /ws/games/{ref}", s.handleWebsocket)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// Close stops every live view and disconnects their viewers.
func (s *Server) Close() {
	s.live.closeAll()
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
