package identity

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"
)

// Closed set of error kinds returned by the directory. Callers match these
// with errors.Is, never by message text.
var (
	ErrNotFound      = errors.New("not found")
	ErrSelfReference = errors.New("cannot befriend yourself")
	ErrAlreadyActive = errors.New("friendship already exists")
	ErrTransient     = errors.New("transient dependency failure")
)

const pqUniqueViolation = "23505"

// classify maps driver-level errors onto the error kinds. Unknown errors pass
// through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrAlreadyActive
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	return err
}
