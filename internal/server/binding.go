package server

import (
	"errors"
	"net/http"

	"rinkside/internal/hockey"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

// bindJSON decodes and validates a request body. It writes the 400 itself
// and reports false when the request was rejected.
func bindJSON(w http.ResponseWriter, r *http.Request, req any, messages bindMessages) bool {
	if err := binding.JSON.Bind(r, req); err != nil {
		writeServiceError(w, r, resolveBindError(err, messages, "invalid request body"))
		return false
	}
	return true
}

func bindQuery(w http.ResponseWriter, r *http.Request, req any, messages bindMessages) bool {
	if err := binding.Query.Bind(r, req); err != nil {
		writeServiceError(w, r, resolveBindError(err, messages, "invalid query"))
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) *hockey.ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return &hockey.ValidationError{Field: verr.Field(), Message: msg}
				}
			}
		}
		if len(verrs) > 0 {
			return &hockey.ValidationError{Field: verrs[0].Field(), Message: "is invalid"}
		}
	}
	return &hockey.ValidationError{Message: fallback}
}
