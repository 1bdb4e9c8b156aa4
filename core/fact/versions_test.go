// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fact

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type versionsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&versionsSuite{})

func (s *versionsSuite) TestMatchesWithoutEntry(c *gc.C) {
	rv := NewRequestedVersions(nil)
	for _, v := range []int{0, 1, 7, 100} {
		c.Check(rv.Matches("ns", "T", v), jc.IsTrue)
	}
	c.Check(rv.Get("ns", "T").IsEmpty(), jc.IsTrue)
}

func (s *versionsSuite) TestMatchesExplicitVersion(c *gc.C) {
	rv := NewRequestedVersions(nil)
	rv.Add("ns", "T", 7)

	c.Check(rv.Matches("ns", "T", 7), jc.IsTrue)
	c.Check(rv.Matches("ns", "T", 10), jc.IsFalse)
	c.Check(rv.Get("ns", "T").SortedValues(), jc.DeepEquals, []int{7})

	// Other keys are unaffected.
	c.Check(rv.Matches("ns", "U", 10), jc.IsTrue)
	c.Check(rv.Matches("other", "T", 10), jc.IsTrue)
}

func (s *versionsSuite) TestMatchesWildcard(c *gc.C) {
	rv := NewRequestedVersions(nil)
	rv.Add("ns", "T", 7)
	rv.Add("ns", "T", 0)

	c.Check(rv.Matches("ns", "T", 10), jc.IsTrue)
	c.Check(rv.Matches("ns", "T", 7), jc.IsTrue)
	c.Check(rv.Get("ns", "T").SortedValues(), jc.DeepEquals, []int{0, 7})
}

func (s *versionsSuite) TestFromSpecs(c *gc.C) {
	rv := NewRequestedVersions([]Spec{
		{Namespace: "ns", Type: "T", Version: 2},
		{Namespace: "ns", Type: "T", Version: 3},
		{Namespace: "ns", Type: "U"},
	})

	c.Check(rv.Matches("ns", "T", 1), jc.IsFalse)
	c.Check(rv.Matches("ns", "T", 3), jc.IsTrue)
	c.Check(rv.Matches("ns", "U", 42), jc.IsTrue)
	c.Check(rv.Get("ns", "T").SortedValues(), jc.DeepEquals, []int{2, 3})
}

func (s *versionsSuite) TestGetReturnsCopy(c *gc.C) {
	rv := NewRequestedVersions(nil)
	rv.Add("ns", "T", 7)

	got := rv.Get("ns", "T")
	got.Add(10)

	c.Check(rv.Matches("ns", "T", 10), jc.IsFalse)
}
