// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"context"

	"github.com/juju/collections/set"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	dbtesting "github.com/juju/factstore/database/testing"
)

type factLogSuite struct {
	dbtesting.SQLiteSuite
}

var _ = gc.Suite(&factLogSuite{})

func (s *factLogSuite) TestApplyCreatesTables(c *gc.C) {
	err := Apply(context.Background(), s.TxnRunner())
	c.Assert(err, jc.ErrorIsNil)

	rows, err := s.DB().Query(`SELECT name FROM sqlite_master WHERE type IN ('table', 'index') AND name NOT LIKE 'sqlite_%'`)
	c.Assert(err, jc.ErrorIsNil)
	defer func() { _ = rows.Close() }()

	names := set.NewStrings()
	for rows.Next() {
		var name string
		c.Assert(rows.Scan(&name), jc.ErrorIsNil)
		names.Add(name)
	}
	c.Assert(rows.Err(), jc.ErrorIsNil)

	c.Check(names.SortedValues(), jc.DeepEquals, []string{
		"catchup_execution",
		"catchup_match",
		"fact",
		"idx_fact_namespace_type",
		"idx_fact_uuid",
	})
}

func (s *factLogSuite) TestApplyTwice(c *gc.C) {
	err := Apply(context.Background(), s.TxnRunner())
	c.Assert(err, jc.ErrorIsNil)
	err = Apply(context.Background(), s.TxnRunner())
	c.Assert(err, jc.ErrorIsNil)
}

func (s *factLogSuite) TestSerialsAreNotReused(c *gc.C) {
	err := Apply(context.Background(), s.TxnRunner())
	c.Assert(err, jc.ErrorIsNil)

	_, err = s.DB().Exec(`INSERT INTO fact (uuid, namespace) VALUES ('a', 'ns'), ('b', 'ns')`)
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.DB().Exec(`DELETE FROM fact WHERE uuid = 'b'`)
	c.Assert(err, jc.ErrorIsNil)
	_, err = s.DB().Exec(`INSERT INTO fact (uuid, namespace) VALUES ('c', 'ns')`)
	c.Assert(err, jc.ErrorIsNil)

	var serial int64
	err = s.DB().QueryRow(`SELECT serial FROM fact WHERE uuid = 'c'`).Scan(&serial)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(serial, gc.Equals, int64(3))
}
