package identity

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

// timeoutErr satisfies net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	unknown := errors.New("syntax error at or near")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", sql.ErrNoRows), ErrNotFound},
		{"unique violation", &pq.Error{Code: pqUniqueViolation}, ErrAlreadyActive},
		{"deadline", context.DeadlineExceeded, ErrTransient},
		{"bad conn", driver.ErrBadConn, ErrTransient},
		{"net timeout", timeoutErr{}, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.in); !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want kind %v", tt.in, got, tt.want)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		if got := classify(nil); got != nil {
			t.Errorf("classify(nil) = %v, want nil", got)
		}
	})

	t.Run("unknown passes through", func(t *testing.T) {
		got := classify(unknown)
		if !errors.Is(got, unknown) {
			t.Errorf("classify(unknown) = %v, want the original error", got)
		}
		for _, kind := range []error{ErrNotFound, ErrSelfReference, ErrAlreadyActive, ErrTransient} {
			if errors.Is(got, kind) {
				t.Errorf("classify(unknown) matched kind %v", kind)
			}
		}
	})
}
