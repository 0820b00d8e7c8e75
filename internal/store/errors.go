package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/finedge/corebank/internal/bankerr"
)

// mapError translates driver-level failures into the store's error class.
// Callers retry DeadlockDetected and StoreUnavailable with backoff; the
// remaining codes are terminal.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return bankerr.Wrap(bankerr.CodeNotFound, "row not found", err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return bankerr.Wrap(bankerr.CodeStoreUnavailable, "connection lost", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40P01", "40001": // deadlock_detected, serialization_failure
			return bankerr.Wrap(bankerr.CodeDeadlockDetected, "store reported deadlock", err)
		}
		switch pqErr.Code.Class() {
		case "23": // integrity_constraint_violation
			return bankerr.Wrap(bankerr.CodeConstraintViolated, "constraint violated", err)
		case "08", "53", "57": // connection, resources, operator intervention
			return bankerr.Wrap(bankerr.CodeStoreUnavailable, "store unavailable", err)
		}
	}

	return bankerr.Wrap(bankerr.CodeStoreUnavailable, "store operation failed", err)
}
