package database

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// migrations is the ordered schema history. Entries are append-only: the
// current schema version is tracked in PRAGMA user_version and only steps
// past it are executed, each inside its own transaction.
var migrations = []string{
	`CREATE TABLE posts (
		id         TEXT PRIMARY KEY,
		media_type TEXT NOT NULL,
		file_id    TEXT NOT NULL,
		is_sent    INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		sent_at    INTEGER,
		image_hash TEXT
	);
	CREATE INDEX post_media_type_idx ON posts (media_type);
	CREATE INDEX post_is_sent_idx ON posts (is_sent);
	CREATE INDEX post_image_hash_idx ON posts (image_hash);`,

	`CREATE TABLE upload_tasks (
		id           TEXT PRIMARY KEY,
		media_type   TEXT NOT NULL,
		data         BLOB NOT NULL,
		is_processed INTEGER NOT NULL DEFAULT 0,
		created_at   INTEGER NOT NULL,
		processed_at INTEGER,
		image_hash   TEXT
	);
	CREATE INDEX upload_task_is_processed_idx ON upload_tasks (is_processed);`,

	`CREATE TABLE post_message_ids (
		chat_id    INTEGER NOT NULL,
		message_id INTEGER NOT NULL,
		post_id    TEXT NOT NULL REFERENCES posts (id)
	);
	CREATE UNIQUE INDEX post_message_ids_idx ON post_message_ids (chat_id, message_id);`,

	`ALTER TABLE posts ADD COLUMN deleted INTEGER NOT NULL DEFAULT 0;`,
}

// migrate brings the schema up to date. Failure leaves the version counter
// untouched for the failed step, so a restart retries from the same point.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if version > len(migrations) {
		return errors.Errorf("database schema version %d is newer than this binary supports (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin migration %d", i+1)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "apply migration %d", i+1)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "bump schema version to %d", i+1)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %d", i+1)
		}
	}
	return nil
}
