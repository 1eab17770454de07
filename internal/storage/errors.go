package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"costindex/internal/ports"
)

// Primary result codes that mean the database could not be reached or used
// right now, as opposed to a bad statement or constraint violation.
const (
	sqliteBusy     = 5
	sqliteLocked   = 6
	sqliteIOErr    = 10
	sqliteFull     = 13
	sqliteCantOpen = 14
)

// classify marks errors caused by an unreachable or busy database with
// ports.ErrStorageUnavailable. Other errors are returned unchanged.
func classify(err error) error {
	if err == nil || errors.Is(err, ports.ErrStorageUnavailable) {
		return err
	}
	if unavailable(err) {
		return fmt.Errorf("%w: %w", ports.ErrStorageUnavailable, err)
	}
	return err
}

func unavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// modernc.org/sqlite reports extended result codes.
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked, sqliteIOErr, sqliteFull, sqliteCantOpen:
			return true
		}
	}
	return false
}
