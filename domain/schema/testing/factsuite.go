// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"database/sql"
	"encoding/json"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/factstore/core/fact"
	dbtesting "github.com/juju/factstore/database/testing"
	"github.com/juju/factstore/domain/schema"
)

// FactSuite is used to provide a database to tests, pre-populated with the
// fact log schema.
type FactSuite struct {
	dbtesting.SQLiteSuite
}

// SetUpTest is responsible for setting up a testing database initialised
// with the fact log schema.
func (s *FactSuite) SetUpTest(c *gc.C) {
	s.SQLiteSuite.SetUpTest(c)

	err := schema.Apply(context.Background(), s.TxnRunner())
	c.Assert(err, jc.ErrorIsNil)
}

// InsertFacts writes the facts directly to the fact table and returns them
// with their assigned serials.
func (s *FactSuite) InsertFacts(c *gc.C, facts ...fact.Fact) []fact.Fact {
	result := make([]fact.Fact, len(facts))
	err := s.TxnRunner().StdTxn(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		for i, f := range facts {
			aggregates, err := json.Marshal(emptyIfNil(f.AggregateIDs))
			c.Assert(err, jc.ErrorIsNil)
			meta, err := json.Marshal(emptyMapIfNil(f.Meta))
			c.Assert(err, jc.ErrorIsNil)

			payload := string(f.Payload)
			if payload == "" {
				payload = "{}"
			}

			res, err := tx.ExecContext(ctx, `
INSERT INTO fact (uuid, namespace, type, version, aggregate_ids, meta, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
				f.ID, f.Namespace, f.Type, f.Version, string(aggregates), string(meta), payload)
			if err != nil {
				return err
			}
			serial, err := res.LastInsertId()
			if err != nil {
				return err
			}
			f.Serial = serial
			result[i] = f
		}
		return nil
	})
	c.Assert(err, jc.ErrorIsNil)
	return result
}

// CountRows returns the number of rows of the given table.
func (s *FactSuite) CountRows(c *gc.C, table string) int {
	var count int
	err := s.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	c.Assert(err, jc.ErrorIsNil)
	return count
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyMapIfNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
