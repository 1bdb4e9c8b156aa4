// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/factstore/core/fact"
)

type flagsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&flagsSuite{})

func (s *flagsSuite) TestSpecs(c *gc.C) {
	var v specsValue
	for _, value := range []string{"orders", "orders/created", "orders/created@2", "users/joined@1"} {
		c.Assert(v.Set(value), jc.ErrorIsNil)
	}
	c.Check([]fact.Spec(v), jc.DeepEquals, []fact.Spec{
		{Namespace: "orders"},
		{Namespace: "orders", Type: "created"},
		{Namespace: "orders", Type: "created", Version: 2},
		{Namespace: "users", Type: "joined", Version: 1},
	})
	c.Check(v.String(), gc.Equals, "orders,orders/created,orders/created@2,users/joined@1")
}

func (s *flagsSuite) TestSpecsInvalid(c *gc.C) {
	for _, value := range []string{"", "/created", "orders@x", "orders@-1", "orders@2"} {
		var v specsValue
		c.Check(v.Set(value), jc.ErrorIs, errors.NotValid, gc.Commentf("value %q", value))
	}
}

func (s *flagsSuite) TestMeta(c *gc.C) {
	var v metaValue
	c.Assert(v.Set("region=eu"), jc.ErrorIsNil)
	c.Assert(v.Set("tier="), jc.ErrorIsNil)
	c.Check(map[string]string(v), jc.DeepEquals, map[string]string{"region": "eu", "tier": ""})

	c.Check(v.Set("region"), jc.ErrorIs, errors.NotValid)
	c.Check(v.Set("=eu"), jc.ErrorIs, errors.NotValid)
}

func (s *flagsSuite) TestTransforms(c *gc.C) {
	var v transformsValue
	c.Assert(v.Set("orders/created:1-2=v2.star"), jc.ErrorIsNil)
	c.Assert(v.Set("users:0-1=users.star"), jc.ErrorIsNil)
	c.Check([]transformStep(v), jc.DeepEquals, []transformStep{
		{Namespace: "orders", Type: "created", From: 1, To: 2, Path: "v2.star"},
		{Namespace: "users", From: 0, To: 1, Path: "users.star"},
	})
	c.Check(v.String(), gc.Equals, "orders/created:1-2=v2.star,users:0-1=users.star")
}

func (s *flagsSuite) TestTransformsInvalid(c *gc.C) {
	for _, value := range []string{
		"orders/created:1-2",
		"orders/created=v2.star",
		"orders/created:12=v2.star",
		":1-2=v2.star",
		"orders:a-2=v2.star",
		"orders:1-b=v2.star",
	} {
		var v transformsValue
		c.Check(v.Set(value), jc.ErrorIs, errors.NotValid, gc.Commentf("value %q", value))
	}
}
