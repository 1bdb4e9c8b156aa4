// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package domain

import (
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/juju/factstore/core/database"
)

// StateBase defines a base struct for requesting a database. This will cache
// the database for the lifetime of the state.
type StateBase struct {
	mu    sync.Mutex
	getDB coredatabase.TxnRunnerFactory
	db    coredatabase.TxnRunner

	stmtMutex sync.RWMutex
	stmts     map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(getDB coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		getDB: getDB,
		stmts: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for a given namespace.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.getDB == nil {
		return nil, errors.New("nil getDB")
	}
	if st.db != nil {
		return st.db, nil
	}

	var err error
	if st.db, err = st.getDB(); err != nil {
		return nil, errors.Annotate(err, "invoking getDB")
	}
	return st.db, nil
}

// Prepare prepares a SQLair query. If the query has been prepared
// previously it is retrieved from the statement cache.
//
// Note that because the type samples are not considered when retrieving a
// query from the cache, it is an error to prepare two identical queries with
// different type samples.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.stmtMutex.RLock()
	if stmt, ok := st.stmts[query]; ok {
		st.stmtMutex.RUnlock()
		return stmt, nil
	}
	st.stmtMutex.RUnlock()

	st.stmtMutex.Lock()
	defer st.stmtMutex.Unlock()

	// Check again in case another goroutine prepared it meanwhile.
	if stmt, ok := st.stmts[query]; ok {
		return stmt, nil
	}

	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	st.stmts[query] = stmt
	return stmt, nil
}
