// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fact

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type factSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&factSuite{})

func (s *factSuite) TestNewIsValid(c *gc.C) {
	f := New("users", "UserCreated", 1, []byte(`{"name":"fred"}`))
	c.Assert(f.Validate(), jc.ErrorIsNil)
	c.Check(f.Serial, gc.Equals, int64(0))
}

func (s *factSuite) TestValidate(c *gc.C) {
	f := New("", "UserCreated", 1, nil)
	err := f.Validate()
	c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)

	f = New("users", "UserCreated", 1, nil)
	f.ID = "not-a-uuid"
	c.Check(f.Validate(), gc.ErrorMatches, `fact id "not-a-uuid" not valid`)
}

func (s *factSuite) TestTransformedKeepsIdentity(c *gc.C) {
	f := New("users", "UserCreated", 1, []byte(`{"name":"fred"}`))
	f.Serial = 42
	f.Meta = map[string]string{"k": "v"}

	t := f.Transformed(2, []byte(`{"first":"fred"}`))
	c.Check(t.ID, gc.Equals, f.ID)
	c.Check(t.Serial, gc.Equals, f.Serial)
	c.Check(t.Version, gc.Equals, 2)
	c.Check(string(t.Payload), gc.Equals, `{"first":"fred"}`)

	// The original is untouched.
	t.Meta["k"] = "changed"
	c.Check(f.Version, gc.Equals, 1)
	c.Check(f.Meta["k"], gc.Equals, "v")
}

func (s *factSuite) TestIDOnly(c *gc.C) {
	f := New("users", "UserCreated", 1, []byte(`{}`))
	f.Serial = 3
	f.AggregateIDs = []string{"a"}

	c.Check(f.IDOnly(), jc.DeepEquals, Fact{
		ID:        f.ID,
		Namespace: "users",
		Type:      "UserCreated",
		Version:   1,
		Serial:    3,
	})
}

func (s *factSuite) TestRequestValidate(c *gc.C) {
	c.Check(Request{}.Validate(), gc.ErrorMatches, `request without specs not valid`)

	req := Request{Specs: []Spec{{Namespace: "users"}, {}}}
	c.Check(req.Validate(), gc.ErrorMatches, `spec 1: spec without namespace not valid`)

	req = Request{Specs: []Spec{{Namespace: "users"}}, StartingAfter: -1}
	c.Check(req.Validate(), gc.ErrorMatches, `starting position -1 not valid`)

	req = Request{Specs: []Spec{{Namespace: "users", Version: 2}}}
	c.Check(req.Validate(), gc.ErrorMatches, `spec 0: spec version 2 without type for namespace "users" not valid`)

	req = Request{Specs: []Spec{{Namespace: "users", Type: "created", Version: 2}}}
	c.Check(req.Validate(), jc.ErrorIsNil)

	req = Request{Specs: []Spec{{Namespace: "users", Filter: &Script{}}}}
	c.Check(req.Validate(), gc.ErrorMatches, `spec 0: empty filter script for namespace "users" not valid`)

	req = Request{Specs: []Spec{{Namespace: "users", Filter: &Script{Source: "def matches(f): return True"}}}}
	c.Check(req.Validate(), jc.ErrorIsNil)
	c.Check(req.HasFilters(), jc.IsTrue)
}
