// Package database provides the durable, transactional store for posts,
// their message-id associations and staged upload tasks, backed by a single
// SQLite file.
package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store owns the database connection. Every operation, read or write,
// serializes through one mutex-guarded connection and executes as an
// isolated transaction relative to all others. Throughput is sacrificed
// for simplicity; the expected write rate is low.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	// taskAdded is a single-slot doorbell rung by CreateUploadTask. Multiple
	// rings while nobody is listening coalesce into one pending wake; this is
	// safe only because the consumer drains the task queue to exhaustion
	// before waiting again (see uploader.Run).
	taskAdded chan struct{}
}

// Open opens (creating if necessary) the SQLite database at path and applies
// all pending schema migrations. A migration failure is returned to the
// caller and must be treated as fatal.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// SQLite supports a single writer; funnel everything through one
	// connection so database/sql never hands out a second one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply migrations")
	}

	return &Store{
		db:        db,
		taskAdded: make(chan struct{}, 1),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TaskAdded exposes the upload-task doorbell for the queue consumer.
func (s *Store) TaskAdded() <-chan struct{} {
	return s.taskAdded
}

// notifyTaskAdded rings the doorbell without blocking. A ring lost to a full
// slot is fine: one wake is already pending and the consumer drains to empty.
func (s *Store) notifyTaskAdded() {
	select {
	case s.taskAdded <- struct{}{}:
	default:
	}
}
