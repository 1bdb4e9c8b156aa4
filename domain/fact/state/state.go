// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/juju/factstore/core/database"
	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/database"
	"github.com/juju/factstore/domain"
)

// Logger is the logging interface used by the state.
type Logger interface {
	Debugf(string, ...interface{})
}

// State describes retrieval and persistence methods for the fact log and the
// match-sets of catchup executions.
type State struct {
	*domain.StateBase
	logger Logger
}

// NewState returns a new state reference.
func NewState(factory coredatabase.TxnRunnerFactory, logger Logger) *State {
	return &State{
		StateBase: domain.NewStateBase(factory),
		logger:    logger,
	}
}

// Append writes the facts to the log in the given order and returns them
// with the serials assigned by the database. Either all facts are appended or
// none is.
func (s *State) Append(ctx context.Context, facts ...fact.Fact) ([]fact.Fact, error) {
	if len(facts) == 0 {
		return nil, nil
	}

	rows := make([]factRow, len(facts))
	for i, f := range facts {
		if err := f.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		row, err := encodeFact(f)
		if err != nil {
			return nil, errors.Trace(err)
		}
		rows[i] = row
	}

	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	stmt, err := s.Prepare(`
INSERT INTO fact (uuid, namespace, type, version, aggregate_ids, meta, payload)
VALUES ($factRow.uuid, $factRow.namespace, $factRow.type, $factRow.version,
        $factRow.aggregate_ids, $factRow.meta, $factRow.payload)`, factRow{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing insert fact statement")
	}

	result := make([]fact.Fact, len(facts))
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		for i, row := range rows {
			var outcome sqlair.Outcome
			err := tx.Query(ctx, stmt, row).Get(&outcome)
			if database.IsErrConstraintUnique(err) {
				return errors.AlreadyExistsf("fact %q", row.UUID)
			} else if err != nil {
				return errors.Annotatef(err, "inserting fact %q", row.UUID)
			}

			serial, err := outcome.Result().LastInsertId()
			if err != nil {
				return errors.Trace(err)
			}
			result[i] = facts[i]
			result[i].Serial = serial
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return result, nil
}

// LatestSerial returns the serial of the most recently appended fact, or
// zero if the log is empty.
func (s *State) LatestSerial(ctx context.Context) (int64, error) {
	db, err := s.DB()
	if err != nil {
		return 0, errors.Trace(err)
	}

	var serial int64
	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(serial), 0) FROM fact")
		return errors.Trace(row.Scan(&serial))
	})
	return serial, errors.Trace(err)
}

// PrepareMatches registers the execution and copies the serials of all facts
// after the given serial that satisfy any of the specs into the match-set of
// the execution. It returns the number of matched facts.
func (s *State) PrepareMatches(ctx context.Context, executionID string, specs []fact.Spec, after int64) (int64, error) {
	if len(specs) == 0 {
		return 0, errors.NotValidf("preparing matches without specs")
	}

	db, err := s.DB()
	if err != nil {
		return 0, errors.Trace(err)
	}

	predicate, args := specPredicate(specs)
	args["execution"] = executionID
	args["after"] = after

	registerStmt, err := s.Prepare(`
INSERT INTO catchup_execution (uuid) VALUES ($M.execution)`, sqlair.M{})
	if err != nil {
		return 0, errors.Annotate(err, "preparing register execution statement")
	}

	matchStmt, err := s.Prepare(`
INSERT INTO catchup_match (execution_uuid, serial)
SELECT   $M.execution, f.serial
FROM     fact f
WHERE    f.serial > $M.after
AND      `+predicate+`
ORDER BY f.serial`, sqlair.M{})
	if err != nil {
		return 0, errors.Annotate(err, "preparing match statement")
	}

	var matched int64
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, registerStmt, args).Run(); err != nil {
			return errors.Annotatef(err, "registering execution %q", executionID)
		}

		var outcome sqlair.Outcome
		if err := tx.Query(ctx, matchStmt, args).Get(&outcome); err != nil {
			return errors.Annotatef(err, "populating match-set of execution %q", executionID)
		}
		matched, err = outcome.Result().RowsAffected()
		return errors.Trace(err)
	})
	if err != nil {
		return 0, errors.Trace(err)
	}

	s.logger.Debugf("execution %q matched %d facts after serial %d", executionID, matched, after)
	return matched, nil
}

// FetchMatches returns up to limit facts of the execution's match-set with a
// serial greater than after, in ascending serial order. When idOnly is true
// the facts carry no payload, aggregate ids or meta.
func (s *State) FetchMatches(ctx context.Context, executionID string, after int64, limit int, idOnly bool) ([]fact.Fact, error) {
	if limit <= 0 {
		return nil, errors.NotValidf("page size %d", limit)
	}

	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	args := sqlair.M{
		"execution": executionID,
		"after":     after,
		"limit":     limit,
	}

	if idOnly {
		stmt, err := s.Prepare(`
SELECT   (f.serial, f.uuid, f.namespace, f.type, f.version) AS (&factIDRow.*)
FROM     catchup_match m
JOIN     fact f ON f.serial = m.serial
WHERE    m.execution_uuid = $M.execution
AND      m.serial > $M.after
ORDER BY m.serial
LIMIT    $M.limit`, factIDRow{}, sqlair.M{})
		if err != nil {
			return nil, errors.Annotate(err, "preparing fetch ids statement")
		}

		var rows []factIDRow
		err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
			err := tx.Query(ctx, stmt, args).GetAll(&rows)
			if errors.Is(err, sqlair.ErrNoRows) {
				return nil
			}
			return errors.Trace(err)
		})
		if err != nil {
			return nil, errors.Annotatef(err, "fetching matches of execution %q", executionID)
		}

		facts := make([]fact.Fact, len(rows))
		for i, row := range rows {
			facts[i] = row.decode()
		}
		return facts, nil
	}

	stmt, err := s.Prepare(`
SELECT   (f.serial, f.uuid, f.namespace, f.type, f.version, f.aggregate_ids, f.meta, f.payload) AS (&factRow.*)
FROM     catchup_match m
JOIN     fact f ON f.serial = m.serial
WHERE    m.execution_uuid = $M.execution
AND      m.serial > $M.after
ORDER BY m.serial
LIMIT    $M.limit`, factRow{}, sqlair.M{})
	if err != nil {
		return nil, errors.Annotate(err, "preparing fetch statement")
	}

	var rows []factRow
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		err := tx.Query(ctx, stmt, args).GetAll(&rows)
		if errors.Is(err, sqlair.ErrNoRows) {
			return nil
		}
		return errors.Trace(err)
	})
	if err != nil {
		return nil, errors.Annotatef(err, "fetching matches of execution %q", executionID)
	}

	facts := make([]fact.Fact, len(rows))
	for i, row := range rows {
		if facts[i], err = row.decode(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return facts, nil
}

// StreamMatches iterates the execution's match-set with a serial greater
// than after in ascending serial order, calling fn for every fact while the
// rows are being read. Iteration stops at the first error returned by fn.
// Transient database failures restart the iteration from after, so fn must
// ignore facts it has already seen.
func (s *State) StreamMatches(ctx context.Context, executionID string, after int64, idOnly bool, fn func(fact.Fact) error) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	columns := "f.serial, f.uuid, f.namespace, f.type, f.version, f.aggregate_ids, f.meta, f.payload"
	if idOnly {
		columns = "f.serial, f.uuid, f.namespace, f.type, f.version"
	}
	query := `
SELECT   ` + columns + `
FROM     catchup_match m
JOIN     fact f ON f.serial = m.serial
WHERE    m.execution_uuid = ?
AND      m.serial > ?
ORDER BY m.serial`

	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, executionID, after)
		if err != nil {
			return errors.Trace(err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var f fact.Fact
			if idOnly {
				var row factIDRow
				if err := rows.Scan(&row.Serial, &row.UUID, &row.Namespace, &row.Type, &row.Version); err != nil {
					return errors.Trace(err)
				}
				f = row.decode()
			} else {
				var row factRow
				if err := rows.Scan(
					&row.Serial, &row.UUID, &row.Namespace, &row.Type, &row.Version,
					&row.AggregateIDs, &row.Meta, &row.Payload,
				); err != nil {
					return errors.Trace(err)
				}
				if f, err = row.decode(); err != nil {
					return errors.Trace(err)
				}
			}
			if err := fn(f); err != nil {
				return err
			}
		}
		return errors.Trace(rows.Err())
	})
	return errors.Annotatef(err, "streaming matches of execution %q", executionID)
}

// DeleteMatches removes the match-set of the execution and its registration.
func (s *State) DeleteMatches(ctx context.Context, executionID string) error {
	db, err := s.DB()
	if err != nil {
		return errors.Trace(err)
	}

	deleteMatchesStmt, err := s.Prepare(`
DELETE FROM catchup_match WHERE execution_uuid = $M.execution`, sqlair.M{})
	if err != nil {
		return errors.Annotate(err, "preparing delete matches statement")
	}
	deleteExecutionStmt, err := s.Prepare(`
DELETE FROM catchup_execution WHERE uuid = $M.execution`, sqlair.M{})
	if err != nil {
		return errors.Annotate(err, "preparing delete execution statement")
	}

	args := sqlair.M{"execution": executionID}
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, deleteMatchesStmt, args).Run(); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(tx.Query(ctx, deleteExecutionStmt, args).Run())
	})
	return errors.Annotatef(err, "deleting match-set of execution %q", executionID)
}

// PruneExecutions removes the executions registered before the given time,
// together with their match-sets. It returns the number of executions
// removed.
func (s *State) PruneExecutions(ctx context.Context, before time.Time) (int, error) {
	db, err := s.DB()
	if err != nil {
		return 0, errors.Trace(err)
	}

	cutoff := before.UTC().Format("2006-01-02 15:04:05.000")

	var pruned int64
	err = db.StdTxn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM catchup_match
WHERE  execution_uuid IN (
    SELECT uuid FROM catchup_execution WHERE created_at < ?
)`, cutoff); err != nil {
			return errors.Trace(err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM catchup_execution WHERE created_at < ?`, cutoff)
		if err != nil {
			return errors.Trace(err)
		}
		pruned, err = res.RowsAffected()
		return errors.Trace(err)
	})
	if err != nil {
		return 0, errors.Annotate(err, "pruning catchup executions")
	}
	return int(pruned), nil
}
