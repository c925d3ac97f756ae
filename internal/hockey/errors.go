package hockey

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a missing game, event or goalie line.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable reports that the store could not apply an
	// operation. The operation must be treated as not applied.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError rejects an operator action before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// PartialBatchFailure reports that a multi-row insert stopped part way.
// Rows in Inserted are persisted and stay persisted.
type PartialBatchFailure struct {
	Inserted []Event
	Failed   []Event
	Cause    error
}

func (e *PartialBatchFailure) Error() string {
	kinds := make([]string, 0, len(e.Failed))
	for _, evt := range e.Failed {
		kinds = append(kinds, string(evt.Kind()))
	}
	return fmt.Sprintf("batch partially applied: %d inserted, %d failed (%s): %v",
		len(e.Inserted), len(e.Failed), strings.Join(kinds, ","), e.Cause)
}

func (e *PartialBatchFailure) Unwrap() error { return e.Cause }

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
