// Package repository implements the MySQL persistence of the registration
// engine.  The sentinel values below are the only errors higher layers
// need to inspect; everything else is an opaque database failure.
package repository

import (
	"database/sql"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a row does not exist or lies outside the
// caller's organization.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique key, e.g. a
// second booking for the same (event, user).
var ErrDuplicate = errors.New("duplicate")

// ErrLockConflict is returned when MySQL aborted the transaction because
// of a deadlock or a lock wait timeout.  The operation is safe to retry.
var ErrLockConflict = errors.New("lock conflict")

const (
	mysqlErrDupEntry        = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// classify maps driver errors onto the sentinels above and wraps
// everything with the operation name.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDupEntry:
			return errors.Wrap(ErrDuplicate, op)
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return errors.Wrap(ErrLockConflict, op)
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "deadlock") {
		return errors.Wrap(ErrLockConflict, op)
	}
	return errors.Wrap(err, op)
}
