// Package store owns the durable state: media, playlist and history rows.
// Every operation runs inside a single exclusive transaction; callers only
// ever see snapshots.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vheinola/utuputki/internal/constants"
	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/logger"
)

// ErrNotFound is returned when a lookup by id matches no row. Ids are only
// handed out by the store, so hitting this is a programming error upstream.
var ErrNotFound = errors.New("no such row")

type Options struct {
	File string
	// Reverse turns on PRAGMA reverse_unordered_selects.
	Reverse bool
	Logger  *logger.Logger
}

type DB struct {
	mu  sync.Mutex // serialises all transactions
	db  *sqlx.DB
	log *logger.Logger
}

func New(opts Options) (*DB, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("store")

	db, err := sqlx.Open("sqlite", opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	log.Info("Opening database", "file", opts.File)

	// don't instantly fail on busy
	busyMS := constants.BusyTimeout.Milliseconds()
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyMS)); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if opts.Reverse {
		log.Debug("PRAGMA reverse_unordered_selects = ON")
		if _, err := db.Exec("PRAGMA reverse_unordered_selects = ON"); err != nil {
			return nil, fmt.Errorf("failed to set reverse_unordered_selects: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: db, log: log}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// transact runs fn inside an exclusive transaction. The store mutex makes
// every transaction a bounded critical section; sqlite's busy_timeout covers
// external writers.
func (db *DB) transact(fn func(tx *sqlx.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.log.Error("Rollback failed", "error", rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Timestamps are persisted as microseconds since the Unix epoch.

func timeToDB(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func timeFromDB(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return time.UnixMicro(micros).UTC()
}

func finishToDB(r domain.FinishReason) sql.NullInt64 {
	switch r {
	case domain.Completed:
		return sql.NullInt64{Int64: 0, Valid: true}
	case domain.Skipped:
		return sql.NullInt64{Int64: 1, Valid: true}
	default:
		return sql.NullInt64{}
	}
}

func finishFromDB(v sql.NullInt64) domain.FinishReason {
	if !v.Valid {
		return domain.Unfinished
	}
	if v.Int64 == 1 {
		return domain.Skipped
	}
	return domain.Completed
}
