package scoring

import (
	"errors"

	"rinkside/internal/hockey"

	"github.com/go-playground/validator/v10"
)

// RegisterRules adds the hockey field rules to a validator engine. The
// request binder and the service both validate through it.
//
//	clock  a period clock in MM:SS
//	side   home or away
func RegisterRules(v *validator.Validate) error {
	return errors.Join(
		v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := hockey.ParseClock(fl.Field().String())
			return err == nil
		}),
		v.RegisterValidation("side", func(fl validator.FieldLevel) bool {
			_, err := hockey.ParseSide(fl.Field().String())
			return err == nil
		}),
	)
}
