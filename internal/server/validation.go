package server

import (
	"log"
	"reflect"
	"strings"
	"sync"

	"rinkside/internal/scoring"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		binding.EnableDecoderDisallowUnknownFields = true
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(wireName)
		if err := scoring.RegisterRules(engine); err != nil {
			log.Printf("register validators err=%v", err)
		}
	})
}

// wireName reports fields by the name clients send them under.
func wireName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}
