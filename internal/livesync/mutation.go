package livesync

import (
	"time"

	"rinkside/internal/hockey"

	"github.com/google/uuid"
)

type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationApplied    MutationState = "applied"
	MutationRolledBack MutationState = "rolled_back"
)

// Mutation is one optimistic quick-adjust of the score. While it waits for
// its turn its delta is shown on top of the stored score; once its write is
// in flight the score it writes, Target, is shown instead. Applied
// mutations are part of the stored score, rolled back ones never were.
type Mutation struct {
	ID        uuid.UUID     `json:"id"`
	Side      hockey.Side   `json:"side"`
	Delta     int           `json:"delta"`
	State     MutationState `json:"state"`
	Target    *hockey.Score `json:"target,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	SettledAt time.Time     `json:"settled_at,omitzero"`
}

func newMutation(side hockey.Side, delta int, now time.Time) *Mutation {
	return &Mutation{
		ID:        uuid.New(),
		Side:      side,
		Delta:     delta,
		State:     MutationPending,
		CreatedAt: now,
	}
}

// settle moves a pending mutation to its final state. Settled mutations
// never change again.
func (m *Mutation) settle(err error, now time.Time) bool {
	if m.State != MutationPending {
		return false
	}
	m.SettledAt = now
	if err != nil {
		m.State = MutationRolledBack
		m.Error = err.Error()
		return true
	}
	m.State = MutationApplied
	return true
}
