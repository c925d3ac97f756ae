package hockey

import (
	"strings"
	"time"
)

// Kind names the type of a game event as it is persisted.
type Kind string

const (
	KindGoal    Kind = "goal"
	KindAssist  Kind = "assist"
	KindPenalty Kind = "penalty"
	KindShot    Kind = "shot"
	KindSave    Kind = "save"
)

// Kinds lists every persisted kind.
var Kinds = []Kind{KindGoal, KindAssist, KindPenalty, KindShot, KindSave}

// ParseKind maps a raw kind string onto the closed set of kinds.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", &ValidationError{Field: "kind", Message: "unknown event kind " + raw}
}

const OvertimePeriod = 4

// Strength is the manpower situation a goal was scored in.
type Strength string

const (
	StrengthEven      Strength = "EV"
	StrengthPowerPlay Strength = "PP"
	StrengthShortHand Strength = "SH"
	StrengthEmptyNet  Strength = "EN"
	StrengthPenalty   Strength = "PS"
)

// Detail carries the kind-specific part of an event. The set of
// implementations is closed to this package.
type Detail interface {
	Kind() Kind
	isDetail()
}

type Goal struct {
	Strength Strength `json:"strength,omitempty"`
}

type Assist struct{}

type Penalty struct {
	Minutes    int    `json:"minutes"`
	Infraction string `json:"infraction,omitempty"`
}

type Shot struct{}

type Save struct{}

func (Goal) Kind() Kind    { return KindGoal }
func (Assist) Kind() Kind  { return KindAssist }
func (Penalty) Kind() Kind { return KindPenalty }
func (Shot) Kind() Kind    { return KindShot }
func (Save) Kind() Kind    { return KindSave }

func (Goal) isDetail()    {}
func (Assist) isDetail()  {}
func (Penalty) isDetail() {}
func (Shot) isDetail()    {}
func (Save) isDetail()    {}

// NewDetail returns the zero detail for kind.
func NewDetail(kind Kind) (Detail, error) {
	switch kind {
	case KindGoal:
		return Goal{Strength: StrengthEven}, nil
	case KindAssist:
		return Assist{}, nil
	case KindPenalty:
		return Penalty{}, nil
	case KindShot:
		return Shot{}, nil
	case KindSave:
		return Save{}, nil
	default:
		return nil, &ValidationError{Field: "kind", Message: "unknown event kind " + string(kind)}
	}
}

// Event is an immutable fact in a game's log. Events are only ever
// inserted or deleted.
type Event struct {
	ID        uint
	GameID    uint
	TeamID    uint
	PlayerID  *uint
	Period    int
	Clock     Clock
	Detail    Detail
	CreatedAt time.Time
}

// Kind reports the event kind, or "" for an event without a detail.
func (e Event) Kind() Kind {
	if e.Detail == nil {
		return ""
	}
	return e.Detail.Kind()
}

func (e Event) IsGoal() bool { return e.Kind() == KindGoal }

// Player returns the player id or zero when none was recorded.
func (e Event) Player() uint {
	if e.PlayerID == nil {
		return 0
	}
	return *e.PlayerID
}

// Key is the grouping key shared by a goal and its assists.
type Key struct {
	Period int
	Clock  Clock
	TeamID uint
}

func (e Event) Key() Key {
	return Key{Period: e.Period, Clock: e.Clock, TeamID: e.TeamID}
}

// PlayerRef is a convenience for building optional player ids.
func PlayerRef(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
