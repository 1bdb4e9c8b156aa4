// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"database/sql"
	"fmt"

	"github.com/juju/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at the given path, using WAL journaling so
// that catchup readers do not block appends.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "opening database %q", path)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Annotatef(err, "pinging database %q", path)
	}
	return db, nil
}
