package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"rinkside/internal/hockey"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps domain errors onto status codes. Partial batch
// failures are handled by the caller since they carry a body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *hockey.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Message,
			"field": verr.Field,
		})
	case errors.Is(err, hockey.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, hockey.ErrStoreUnavailable):
		log.Printf("store unavailable method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry")
	default:
		log.Printf("request failed method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
