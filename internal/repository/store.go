package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// Store owns the connection pool and opens transactions for the engine.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Tx is one READ COMMITTED transaction.  Capacity decisions rely on the
// SELECT ... FOR UPDATE locks taken by the Lock* methods, not on the
// isolation level, so gap locks of REPEATABLE READ are avoided.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a transaction.  fn's error or a panic rolls back;
// otherwise the transaction is committed.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin")
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func idPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	id := uint64(n.Int64)
	return &id
}

// insertID returns the auto increment id of an INSERT.
func insertID(res sql.Result, op string) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, op)
	}
	return uint64(id), nil
}

// mustAffect turns a zero row count into ErrNotFound.
func mustAffect(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, op)
	}
	return nil
}
