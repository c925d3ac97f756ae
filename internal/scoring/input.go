package scoring

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"rinkside/internal/hockey"

	"github.com/go-playground/validator/v10"
)

const defaultMinorPIM = 2

type GoalInput struct {
	TeamID   uint   `json:"team_id" validate:"required"`
	ScorerID uint   `json:"scorer_id" validate:"required"`
	Assists  []uint `json:"assists" validate:"max=2,unique,dive,required"`
	Period   int    `json:"period" validate:"min=1,max=4"`
	Clock    string `json:"clock" validate:"required,clock"`
	Strength string `json:"strength" validate:"omitempty,oneof=EV PP SH EN PS"`
}

type EventInput struct {
	Kind       string `json:"kind" validate:"required,oneof=assist penalty shot save"`
	TeamID     uint   `json:"team_id" validate:"required"`
	PlayerID   uint   `json:"player_id" validate:"required_if=Kind assist"`
	Period     int    `json:"period" validate:"min=1,max=4"`
	Clock      string `json:"clock" validate:"required,clock"`
	Minutes    int    `json:"minutes" validate:"min=0,max=20"`
	Infraction string `json:"infraction" validate:"max=64"`
}

type GoalieInput struct {
	TeamID        uint   `json:"team_id" validate:"required"`
	PlayerID      uint   `json:"player_id" validate:"required"`
	Started       bool   `json:"started"`
	MinutesPlayed int    `json:"minutes_played" validate:"min=0"`
	ShotsAgainst  int    `json:"shots_against" validate:"min=0"`
	GoalsAgainst  int    `json:"goals_against" validate:"min=0"`
	Decision      string `json:"decision" validate:"omitempty,oneof=ND W L OTL SOL"`
	Shutout       bool   `json:"shutout"`
}

var (
	engine     *validator.Validate
	engineOnce sync.Once
)

func validatorInstance() *validator.Validate {
	engineOnce.Do(func() {
		engine = validator.New(validator.WithRequiredStructEnabled())
		engine.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		if err := RegisterRules(engine); err != nil {
			panic(err)
		}
	})
	return engine
}

// check runs the struct tags and reports the first failure as a
// ValidationError.
func check(input any) error {
	err := validatorInstance().Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return &hockey.ValidationError{Field: fieldName(first), Message: message(first)}
	}
	return &hockey.ValidationError{Message: err.Error()}
}

func fieldName(fe validator.FieldError) string {
	// Namespace is "GoalInput.assists[1]" for dived fields.
	_, rest, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return rest
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "clock":
		return "must be MM:SS"
	case "unique":
		return "must not repeat a player"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("allows at most %s entries", fe.Param())
		}
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

func (in GoalInput) validate() error {
	if err := check(in); err != nil {
		return err
	}
	for _, assister := range in.Assists {
		if assister == in.ScorerID {
			return &hockey.ValidationError{Field: "assists", Message: "scorer cannot assist their own goal"}
		}
	}
	return nil
}

func (in GoalInput) events() []hockey.Event {
	clock := hockey.MustClock(in.Clock)
	strength := hockey.Strength(in.Strength)
	if strength == "" {
		strength = hockey.StrengthEven
	}
	events := make([]hockey.Event, 0, 1+len(in.Assists))
	events = append(events, hockey.Event{
		TeamID:   in.TeamID,
		PlayerID: hockey.PlayerRef(in.ScorerID),
		Period:   in.Period,
		Clock:    clock,
		Detail:   hockey.Goal{Strength: strength},
	})
	for _, assister := range in.Assists {
		events = append(events, hockey.Event{
			TeamID:   in.TeamID,
			PlayerID: hockey.PlayerRef(assister),
			Period:   in.Period,
			Clock:    clock,
			Detail:   hockey.Assist{},
		})
	}
	return events
}

func (in EventInput) validate() error {
	return check(in)
}

func (in EventInput) event() hockey.Event {
	var detail hockey.Detail
	switch hockey.Kind(in.Kind) {
	case hockey.KindAssist:
		detail = hockey.Assist{}
	case hockey.KindPenalty:
		minutes := in.Minutes
		if minutes == 0 {
			minutes = defaultMinorPIM
		}
		detail = hockey.Penalty{Minutes: minutes, Infraction: strings.TrimSpace(in.Infraction)}
	case hockey.KindShot:
		detail = hockey.Shot{}
	case hockey.KindSave:
		detail = hockey.Save{}
	}
	return hockey.Event{
		TeamID:   in.TeamID,
		PlayerID: hockey.PlayerRef(in.PlayerID),
		Period:   in.Period,
		Clock:    hockey.MustClock(in.Clock),
		Detail:   detail,
	}
}

func (in GoalieInput) validate() error {
	return check(in)
}
