// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transformation

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

const identity = "def transform(event):\n    return event\n"

type registrySuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&registrySuite{})

func (s *registrySuite) TestRegisterInvalid(c *gc.C) {
	r := NewRegistry()
	c.Check(r.Register("", "t", 1, 2, identity), jc.ErrorIs, errors.NotValid)
	c.Check(r.Register("ns", "t", 2, 2, identity), jc.ErrorIs, errors.NotValid)
	c.Check(r.Register("ns", "t", -1, 2, identity), jc.ErrorIs, errors.NotValid)
	c.Check(r.Register("ns", "t", 1, 2, "def other(e):\n    return e\n"), jc.ErrorIs, errors.NotValid)
}

func (s *registrySuite) TestRegisterDuplicate(c *gc.C) {
	r := NewRegistry()
	c.Assert(r.Register("ns", "t", 1, 2, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 1, 2, identity), jc.ErrorIs, errors.AlreadyExists)
}

func (s *registrySuite) TestResolveAlreadyAtTarget(c *gc.C) {
	r := NewRegistry()
	steps, err := r.Resolve("ns", "t", 2, set.NewInts(2, 3))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, gc.HasLen, 0)
}

func (s *registrySuite) TestResolveChain(c *gc.C) {
	r := NewRegistry()
	c.Assert(r.Register("ns", "t", 1, 2, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 2, 3, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 3, 4, identity), jc.ErrorIsNil)

	steps, err := r.Resolve("ns", "t", 1, set.NewInts(4))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(versions(steps), jc.DeepEquals, [][2]int{{1, 2}, {2, 3}, {3, 4}})
}

func (s *registrySuite) TestResolveShortestChain(c *gc.C) {
	r := NewRegistry()
	c.Assert(r.Register("ns", "t", 1, 2, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 2, 3, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 1, 3, identity), jc.ErrorIsNil)

	steps, err := r.Resolve("ns", "t", 1, set.NewInts(3))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(versions(steps), jc.DeepEquals, [][2]int{{1, 3}})
}

func (s *registrySuite) TestResolveLowestReachableTarget(c *gc.C) {
	r := NewRegistry()
	c.Assert(r.Register("ns", "t", 3, 2, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "t", 3, 5, identity), jc.ErrorIsNil)

	// 1 is not reachable, 2 is the lowest that is.
	steps, err := r.Resolve("ns", "t", 3, set.NewInts(1, 2, 5))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(versions(steps), jc.DeepEquals, [][2]int{{3, 2}})
}

func (s *registrySuite) TestResolveUnreachable(c *gc.C) {
	r := NewRegistry()
	c.Assert(r.Register("ns", "t", 1, 2, identity), jc.ErrorIsNil)
	c.Assert(r.Register("ns", "other", 2, 3, identity), jc.ErrorIsNil)

	_, err := r.Resolve("ns", "t", 1, set.NewInts(3))
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func versions(steps []Step) [][2]int {
	result := make([][2]int, len(steps))
	for i, step := range steps {
		result[i] = [2]int{step.From, step.To}
	}
	return result
}
