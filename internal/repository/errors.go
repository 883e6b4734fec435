package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a create hits a unique constraint
	ErrDuplicate = errors.New("duplicate key")
	// ErrUnavailable means the database could not be reached at all
	ErrUnavailable = errors.New("storage unavailable")
)

const (
	pgUniqueViolation   = "23505"
	pgAdminShutdown     = "57P01"
	pgCannotConnectNow  = "57P03"
	pgConnectionFailure = "08" // class 08, connection exceptions
)

// translateError maps driver and gorm errors onto the package sentinels while
// keeping the original error in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "duplicate key")
}

// IsUnavailable reports whether err means the store is unreachable rather than
// that a statement was rejected.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgConnectionFailure) ||
			pgErr.Code == pgAdminShutdown ||
			pgErr.Code == pgCannotConnectNow
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
