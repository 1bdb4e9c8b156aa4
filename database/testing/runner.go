// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coredatabase "github.com/juju/factstore/core/database"
	"github.com/juju/factstore/database"
)

// SQLiteSuite provides a file backed SQLite database for each test.
type SQLiteSuite struct {
	testing.IsolationSuite

	db     *sql.DB
	runner *database.TxnRunner
}

// SetUpTest opens a new database in a temporary directory.
func (s *SQLiteSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	db, err := database.Open(filepath.Join(c.MkDir(), "facts.db"))
	c.Assert(err, jc.ErrorIsNil)

	s.db = db
	s.runner = database.NewTxnRunner(db)
}

// TearDownTest closes the database.
func (s *SQLiteSuite) TearDownTest(c *gc.C) {
	if s.db != nil {
		err := s.db.Close()
		c.Check(err, jc.ErrorIsNil)
		s.db = nil
	}
	s.IsolationSuite.TearDownTest(c)
}

// DB returns the database of the current test.
func (s *SQLiteSuite) DB() *sql.DB {
	return s.db
}

// TxnRunner returns a transaction runner for the database of the current
// test.
func (s *SQLiteSuite) TxnRunner() coredatabase.TxnRunner {
	return s.runner
}

// TxnRunnerFactory returns a factory yielding the transaction runner of the
// current test.
func (s *SQLiteSuite) TxnRunnerFactory() coredatabase.TxnRunnerFactory {
	return func() (coredatabase.TxnRunner, error) {
		return s.runner, nil
	}
}

// ApplyDDL runs the given statements in a single transaction.
func (s *SQLiteSuite) ApplyDDL(c *gc.C, stmts ...string) {
	err := s.runner.StdTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
}
