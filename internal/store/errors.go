package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConstraint wraps unique/check/foreign-key violations. Callers treat
	// it as a per-track problem, not an infrastructure failure.
	ErrConstraint = errors.New("constraint violation")
	// ErrStageConflict means the forward-only guard rejected a transition,
	// usually because another worker already moved the track.
	ErrStageConflict = errors.New("stage conflict")
	// ErrLeaseLost means the caller no longer owns the track's lease.
	ErrLeaseLost = errors.New("lease lost")
)

const sqliteConstraint = 19

// classify wraps constraint violations with ErrConstraint so callers can use
// errors.Is. Everything else is returned unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrConstraint) {
		return err
	}
	if IsConstraint(err) {
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return err
}

// IsConstraint reports whether err is a constraint violation from either
// supported database.
func IsConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqliteConstraint
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// IsInfrastructure reports whether err should abort a batch: anything that
// is not a per-track condition.
func IsInfrastructure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrConstraint) &&
		!errors.Is(err, ErrStageConflict) &&
		!errors.Is(err, ErrLeaseLost) &&
		!errors.Is(err, ErrNotFound)
}
