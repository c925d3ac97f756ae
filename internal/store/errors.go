package store

import (
	"errors"
	"fmt"
	"strings"

	"rinkside/internal/hockey"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const foreignKeyViolation = "23503"

// classify maps driver errors onto the hockey error taxonomy. Integrity
// violations (SQLSTATE class 23) are the caller's fault, except a missing
// parent game; everything else means the write was not applied.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, hockey.ErrNotFound) || hockey.IsValidation(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return hockey.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return hockey.ErrNotFound
	}
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		field := pgErr.ColumnName
		if field == "" {
			field = pgErr.ConstraintName
		}
		return &hockey.ValidationError{Field: field, Message: pgErr.Message}
	}
	return fmt.Errorf("%w: %w", hockey.ErrStoreUnavailable, err)
}
