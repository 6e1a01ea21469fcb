package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"tarot-api/internal/apperr"
)

func TestStoreError_ConnectionFailuresMapTo503(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}},
		{"bad conn", driver.ErrBadConn},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}},
		{"too many connections", &pgconn.PgError{Code: "53300"}},
		{"connection exception", &pgconn.PgError{Code: "08006"}},
		{"wrapped refused connection", fmt.Errorf("query user by sub: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := StoreError("query user by sub", tc.err)
			if !errors.Is(err, apperr.ErrStoreUnavailable) {
				t.Fatalf("err = %v, want ErrStoreUnavailable in the chain", err)
			}
			if status := apperr.Status(err); status != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", status)
			}
		})
	}
}

func TestStoreError_OtherFailuresStayInternal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{"scan failure", errors.New("sql: Scan error on column index 2")},
		{"constraint violation", &pgconn.PgError{Code: "23505"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := StoreError("insert refresh token", tc.err)
			if errors.Is(err, apperr.ErrStoreUnavailable) {
				t.Fatalf("err = %v, must not classify as unavailable", err)
			}
			if status := apperr.Status(err); status != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", status)
			}
		})
	}
}
