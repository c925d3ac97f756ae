package store

import (
	"log"
	"sync"
)

const defaultFeedBuffer = 256

type notification struct {
	events *EventChange
	game   *GameChange
	roster *RosterChange
	goalie *GoalieChange
}

// hub fans notifications out to per-game subscribers. Every subscriber has
// its own queue drained by one goroutine, so delivery is in order per
// subscriber and a slow subscriber never blocks a writer: when its queue
// is full the notification is dropped and a resync is scheduled instead.
type hub struct {
	mu     sync.Mutex
	buffer int
	groups map[uint]map[*subscription]struct{}
}

type subscription struct {
	gameID   uint
	handlers Handlers
	queue    chan notification
	resync   chan struct{}
	done     chan struct{}
	once     sync.Once
}

func newHub(buffer int) *hub {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	return &hub{
		buffer: buffer,
		groups: make(map[uint]map[*subscription]struct{}),
	}
}

func (h *hub) Subscribe(gameID uint, handlers Handlers) func() {
	sub := &subscription{
		gameID:   gameID,
		handlers: handlers,
		queue:    make(chan notification, h.buffer),
		resync:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	group := h.groups[gameID]
	if group == nil {
		group = make(map[*subscription]struct{})
		h.groups[gameID] = group
	}
	group[sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()
	return func() { h.remove(sub) }
}

func (h *hub) remove(sub *subscription) {
	h.mu.Lock()
	if group := h.groups[sub.gameID]; group != nil {
		delete(group, sub)
		if len(group) == 0 {
			delete(h.groups, sub.gameID)
		}
	}
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.done) })
}

func (h *hub) publish(gameID uint, n notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.groups[gameID] {
		select {
		case sub.queue <- n:
		default:
			log.Printf("feed queue full game_id=%d; scheduling resync", gameID)
			sub.requestResync()
		}
	}
}

func (h *hub) resyncAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range h.groups {
		for sub := range group {
			sub.requestResync()
		}
	}
}

func (h *hub) subscribers(gameID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[gameID])
}

func (s *subscription) requestResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.queue:
			if s.closed() {
				return
			}
			s.deliver(n)
		case <-s.resync:
			if s.closed() {
				return
			}
			if s.handlers.OnResync != nil {
				s.handlers.OnResync()
			}
		}
	}
}

func (s *subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) deliver(n notification) {
	switch {
	case n.events != nil && s.handlers.OnEvents != nil:
		s.handlers.OnEvents(*n.events)
	case n.game != nil && s.handlers.OnGame != nil:
		s.handlers.OnGame(*n.game)
	case n.roster != nil && s.handlers.OnRoster != nil:
		s.handlers.OnRoster(*n.roster)
	case n.goalie != nil && s.handlers.OnGoalie != nil:
		s.handlers.OnGoalie(*n.goalie)
	}
}
