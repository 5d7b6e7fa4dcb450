package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Sentinel errors returned by Store methods. Callers branch on these with
// errors.Is instead of inspecting driver errors.
var (
	// ErrNotFound means the referenced entity does not exist for the tenant.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a uniqueness rule was violated (duplicate idempotency
	// key, duplicate content hash, duplicate live job target). The caller must
	// treat the record as already existing, not retry the write as new.
	ErrConflict = errors.New("record already exists")

	// ErrStaleClaim means a worker tried to finish a job it no longer owns,
	// typically after the stale-lock sweep reclaimed it.
	ErrStaleClaim = errors.New("job claim is stale")

	// ErrActionInFlight means a duplicate idempotency key arrived while the
	// original action is still pending. The caller should retry later.
	ErrActionInFlight = errors.New("action with this idempotency key is still in flight")
)

// isUniqueViolation reports whether err is a unique-constraint violation on
// either backend (MySQL error 1062, SQLite constraint message).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
