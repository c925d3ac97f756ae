// Package livesync keeps a local, self-healing view of one game in step
// with the store's change feed.
package livesync

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"rinkside/internal/hockey"
	"rinkside/internal/store"

	"golang.org/x/sync/errgroup"
)

const (
	fetchTimeout      = 10 * time.Second
	keptMutations     = 16
	defaultResyncEach = 30 * time.Second
)

// Source is what a coordinator reads from and subscribes to.
type Source interface {
	GetGame(ctx context.Context, idOrSlug string) (hockey.Game, error)
	UpdateGame(ctx context.Context, gameID uint, update store.GameUpdate) error
	ListEvents(ctx context.Context, gameID uint) ([]hockey.Event, error)
	ListRoster(ctx context.Context, gameID uint) ([]hockey.RosterEntry, error)
	ListGoalieLines(ctx context.Context, gameID uint) ([]hockey.GoalieLine, error)
	store.Feed
}

type Options struct {
	// ResyncInterval bounds how long a dropped notification can go
	// unnoticed. Zero uses the default; negative disables the timer.
	ResyncInterval time.Duration
	// OnChange receives the view after every state change. It runs on the
	// coordinator's goroutines and must not block for long.
	OnChange func(View)
}

type message struct {
	events *store.EventChange
	game   *store.GameChange
	roster *store.RosterChange
	goalie *store.GoalieChange
	resync bool
}

// Coordinator owns the local state of one game. Feed handlers only queue
// messages; a single loop goroutine applies them in arrival order and runs
// reconciliations, so no two reconciliations of a game overlap.
type Coordinator struct {
	source Source
	gameID uint
	opts   Options
	now    func() time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	closeOnce   sync.Once
	stopped     chan struct{}

	queueMu sync.Mutex
	queue   []message
	wake    chan struct{}

	adjustMu sync.Mutex

	mu         sync.Mutex
	game       hockey.Game
	events     []hockey.Event
	roster     map[uint]hockey.RosterEntry
	goalies    map[uint]hockey.GoalieLine
	tombstones map[uint]struct{}
	mutations  []*Mutation
	stale      bool
	version    uint64
}

// Open resolves the game, subscribes to its changes and then loads the
// initial state. Changes that arrive while loading are queued and applied
// afterwards.
func Open(ctx context.Context, source Source, ref string, opts Options) (*Coordinator, error) {
	game, err := source.GetGame(ctx, ref)
	if err != nil {
		return nil, err
	}
	if opts.ResyncInterval == 0 {
		opts.ResyncInterval = defaultResyncEach
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		source:     source,
		gameID:     game.ID,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		ctx:        loopCtx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
		wake:       make(chan struct{}, 1),
		game:       game,
		roster:     make(map[uint]hockey.RosterEntry),
		goalies:    make(map[uint]hockey.GoalieLine),
		tombstones: make(map[uint]struct{}),
	}
	c.unsubscribe = source.Subscribe(game.ID, store.Handlers{
		OnEvents: func(change store.EventChange) { c.enqueue(message{events: &change}) },
		OnGame:   func(change store.GameChange) { c.enqueue(message{game: &change}) },
		OnRoster: func(change store.RosterChange) { c.enqueue(message{roster: &change}) },
		OnGoalie: func(change store.GoalieChange) { c.enqueue(message{goalie: &change}) },
		OnResync: func() { c.enqueue(message{resync: true}) },
	})
	if err := c.reconcile(ctx, false); err != nil {
		c.unsubscribe()
		cancel()
		return nil, err
	}
	log.Printf("live view opened game_id=%d", c.gameID)
	go c.loop()
	return c, nil
}

func (c *Coordinator) GameID() uint { return c.gameID }

// Close tears the subscription down without waiting for it. It is safe to
// call more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.unsubscribe()
		c.cancel()
		log.Printf("live view closed game_id=%d", c.gameID)
	})
}

// Done is closed once the loop has exited.
func (c *Coordinator) Done() <-chan struct{} { return c.stopped }

func (c *Coordinator) enqueue(msg message) {
	if c.ctx.Err() != nil {
		return
	}
	c.queueMu.Lock()
	c.queue = append(c.queue, msg)
	c.queueMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Resync asks the loop for a full reconciliation.
func (c *Coordinator) Resync() {
	c.enqueue(message{resync: true})
}

func (c *Coordinator) loop() {
	defer close(c.stopped)
	var tick <-chan time.Time
	if c.opts.ResyncInterval > 0 {
		ticker := time.NewTicker(c.opts.ResyncInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
			eventsChanged, resync := c.drain()
			if eventsChanged || resync {
				c.reconcileLogged(eventsChanged)
			}
		case <-tick:
			c.reconcileLogged(false)
		}
	}
}

// drain applies every queued delta in order. Event deltas and resync
// requests collapse into at most one reconciliation.
func (c *Coordinator) drain() (eventsChanged, resync bool) {
	c.queueMu.Lock()
	batch := c.queue
	c.queue = nil
	c.queueMu.Unlock()
	if len(batch) == 0 {
		return false, false
	}

	c.mu.Lock()
	changed := false
	for _, msg := range batch {
		switch {
		case msg.events != nil:
			changed = c.applyEventLocked(*msg.events) || changed
			eventsChanged = true
		case msg.game != nil:
			changed = c.applyGameLocked(*msg.game) || changed
		case msg.roster != nil:
			c.applyRosterLocked(*msg.roster)
			changed = true
		case msg.goalie != nil:
			c.applyGoalieLocked(*msg.goalie)
			changed = true
		case msg.resync:
			resync = true
		}
	}
	if changed {
		c.version++
	}
	c.mu.Unlock()
	if changed {
		c.notify()
	}
	return eventsChanged, resync
}

func (c *Coordinator) applyEventLocked(change store.EventChange) bool {
	evt := change.Event
	switch change.Op {
	case store.OpDelete:
		c.tombstones[evt.ID] = struct{}{}
		for i := range c.events {
			if c.events[i].ID == evt.ID {
				c.events = append(c.events[:i:i], c.events[i+1:]...)
				return true
			}
		}
		return false
	default:
		if _, dead := c.tombstones[evt.ID]; dead {
			return false
		}
		for i := range c.events {
			if c.events[i].ID == evt.ID {
				return false
			}
		}
		idx := sort.Search(len(c.events), func(i int) bool { return logsAfter(c.events[i], evt) })
		c.events = append(c.events, hockey.Event{})
		copy(c.events[idx+1:], c.events[idx:])
		c.events[idx] = evt
		return true
	}
}

// logsAfter reports whether a comes after b in store order.
func logsAfter(a, b hockey.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (c *Coordinator) applyGameLocked(change store.GameChange) bool {
	if change.Op == store.OpDelete {
		log.Printf("live game deleted game_id=%d", c.gameID)
		return false
	}
	if change.Game.UpdatedAt.Before(c.game.UpdatedAt) {
		return false
	}
	c.game = change.Game
	return true
}

func (c *Coordinator) applyRosterLocked(change store.RosterChange) {
	if change.Op == store.OpDelete {
		delete(c.roster, change.Entry.PlayerID)
		return
	}
	c.roster[change.Entry.PlayerID] = change.Entry
}

func (c *Coordinator) applyGoalieLocked(change store.GoalieChange) {
	if change.Op == store.OpDelete {
		delete(c.goalies, change.Line.PlayerID)
		return
	}
	c.goalies[change.Line.PlayerID] = change.Line
}

func (c *Coordinator) reconcileLogged(eventsChanged bool) {
	if err := c.reconcile(c.ctx, eventsChanged); err != nil && c.ctx.Err() == nil {
		log.Printf("live view reconcile failed game_id=%d err=%v", c.gameID, err)
	}
}

// reconcile replaces the local state with a fresh read of the store. When
// it was triggered by event changes the displayed score is rederived from
// the fetched log rather than taken from the cached game row.
func (c *Coordinator) reconcile(ctx context.Context, eventsChanged bool) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	var (
		game    hockey.Game
		events  []hockey.Event
		roster  []hockey.RosterEntry
		goalies []hockey.GoalieLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		game, err = c.source.GetGame(gctx, strconv.FormatUint(uint64(c.gameID), 10))
		return err
	})
	g.Go(func() (err error) {
		events, err = c.source.ListEvents(gctx, c.gameID)
		return err
	})
	g.Go(func() (err error) {
		roster, err = c.source.ListRoster(gctx, c.gameID)
		return err
	})
	g.Go(func() (err error) {
		goalies, err = c.source.ListGoalieLines(gctx, c.gameID)
		return err
	})
	if err := g.Wait(); err != nil {
		c.mu.Lock()
		wasStale := c.stale
		c.stale = true
		if !wasStale {
			c.version++
		}
		c.mu.Unlock()
		if !wasStale {
			c.notify()
		}
		return err
	}

	if eventsChanged {
		derived := hockey.DeriveGame(game, events)
		game.HomeScore, game.AwayScore = derived.Home, derived.Away
	}

	c.mu.Lock()
	c.game = game
	c.events = events
	c.roster = make(map[uint]hockey.RosterEntry, len(roster))
	for _, entry := range roster {
		c.roster[entry.PlayerID] = entry
	}
	c.goalies = make(map[uint]hockey.GoalieLine, len(goalies))
	for _, line := range goalies {
		c.goalies[line.PlayerID] = line
	}
	c.stale = false
	c.version++
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Coordinator) notify() {
	if c.opts.OnChange == nil {
		return
	}
	c.opts.OnChange(c.View())
}

// AdjustScore applies a quick +/- to one side. The change shows at once as
// a pending mutation and is either applied or rolled back when the store
// answers. Adjusts are written one at a time on top of the stored score so
// a rolled back mutation never leaks into a later write. Quick adjusts are
// manual overrides: the next event recompute replaces them.
func (c *Coordinator) AdjustScore(ctx context.Context, side hockey.Side, delta int) (Mutation, error) {
	if _, err := hockey.ParseSide(string(side)); err != nil {
		return Mutation{}, err
	}
	if delta == 0 {
		return Mutation{}, &hockey.ValidationError{Field: "delta", Message: "delta must not be zero"}
	}

	c.mu.Lock()
	mutation := newMutation(side, delta, c.now())
	c.mutations = append(c.mutations, mutation)
	c.version++
	c.mu.Unlock()
	c.notify()

	c.adjustMu.Lock()
	defer c.adjustMu.Unlock()

	c.mu.Lock()
	target := c.game.Score().Add(side, delta)
	mutation.Target = &target
	c.mu.Unlock()

	err := c.source.UpdateGame(ctx, c.gameID, store.ScoreUpdate(target))

	c.mu.Lock()
	mutation.settle(err, c.now())
	if err == nil {
		c.game.HomeScore, c.game.AwayScore = target.Home, target.Away
	}
	c.trimMutationsLocked()
	c.version++
	settled := *mutation
	c.mu.Unlock()
	c.notify()

	if err != nil {
		log.Printf("score adjust rolled back game_id=%d mutation_id=%s err=%v", c.gameID, settled.ID, err)
		return settled, err
	}
	log.Printf("score adjusted game_id=%d side=%s delta=%d mutation_id=%s", c.gameID, side, delta, settled.ID)
	return settled, nil
}

func (c *Coordinator) trimMutationsLocked() {
	settled := 0
	for _, m := range c.mutations {
		if m.State != MutationPending {
			settled++
		}
	}
	for settled > keptMutations {
		for i, m := range c.mutations {
			if m.State != MutationPending {
				c.mutations = append(c.mutations[:i:i], c.mutations[i+1:]...)
				settled--
				break
			}
		}
	}
}

// displayedLocked is the score of the write in flight, or the stored score
// when there is none, with every queued adjust on top. The store may echo
// the in-flight write before it returns, so its delta is never added to the
// stored score twice.
func (c *Coordinator) displayedLocked() hockey.Score {
	score := c.game.Score()
	for _, m := range c.mutations {
		if m.State == MutationPending && m.Target != nil {
			score = *m.Target
		}
	}
	for _, m := range c.mutations {
		if m.State == MutationPending && m.Target == nil {
			score = score.Add(m.Side, m.Delta)
		}
	}
	return score
}
