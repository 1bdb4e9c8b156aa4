// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	coredatabase "github.com/juju/factstore/core/database"
)

// FactLogDDL returns the statements creating the fact log and the tables
// backing the per-execution match-sets of catchups.
func FactLogDDL() []string {
	return []string{
		`
CREATE TABLE IF NOT EXISTS fact (
    serial        INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid          TEXT NOT NULL,
    namespace     TEXT NOT NULL,
    type          TEXT NOT NULL DEFAULT '',
    version       INT NOT NULL DEFAULT 0,
    aggregate_ids TEXT NOT NULL DEFAULT '[]',
    meta          TEXT NOT NULL DEFAULT '{}',
    payload       TEXT NOT NULL DEFAULT '{}',
    created_at    DATETIME NOT NULL DEFAULT(STRFTIME('%Y-%m-%d %H:%M:%f', 'NOW', 'utc'))
);`,
		`
CREATE UNIQUE INDEX IF NOT EXISTS idx_fact_uuid
ON fact (uuid);`,
		`
CREATE INDEX IF NOT EXISTS idx_fact_namespace_type
ON fact (namespace, type);`,
		// Every catchup execution registers itself before populating its
		// match-set, so that orphaned match-sets can be pruned.
		`
CREATE TABLE IF NOT EXISTS catchup_execution (
    uuid       TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT(STRFTIME('%Y-%m-%d %H:%M:%f', 'NOW', 'utc'))
);`,
		`
CREATE TABLE IF NOT EXISTS catchup_match (
    execution_uuid TEXT NOT NULL,
    serial         INTEGER NOT NULL,
    PRIMARY KEY (execution_uuid, serial)
) WITHOUT ROWID;`,
	}
}

// Apply creates the fact log schema using the given runner. It is safe to
// apply the schema more than once.
func Apply(ctx context.Context, runner coredatabase.TxnRunner) error {
	err := runner.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range FactLogDDL() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errors.Annotatef(err, "applying statement %d", i)
			}
		}
		return nil
	})
	return errors.Trace(err)
}
