// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package matchpruner

import (
	"context"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/domain/fact/state"
	schematesting "github.com/juju/factstore/domain/schema/testing"
)

type stubState struct {
	testing.Stub

	pruned []int
	calls  chan time.Time
}

func (s *stubState) PruneExecutions(ctx context.Context, before time.Time) (int, error) {
	s.AddCall("PruneExecutions", before)
	defer func() { s.calls <- before }()
	if err := s.NextErr(); err != nil {
		return 0, err
	}
	if len(s.pruned) == 0 {
		return 0, nil
	}
	n := s.pruned[0]
	s.pruned = s.pruned[1:]
	return n, nil
}

type workerSuite struct {
	testing.IsolationSuite

	clock *testclock.Clock
	state *stubState
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	s.clock = testclock.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.state = &stubState{calls: make(chan time.Time, 10)}
}

func (s *workerSuite) config() WorkerConfig {
	return WorkerConfig{
		State:  s.state,
		MaxAge: time.Hour,
		Clock:  s.clock,
		Logger: loggo.GetLogger("factstore.matchpruner.test"),
	}
}

func (s *workerSuite) waitForPrune(c *gc.C) time.Time {
	select {
	case before := <-s.state.calls:
		return before
	case <-time.After(testing.LongWait):
		c.Fatalf("timed out waiting for prune")
	}
	return time.Time{}
}

func (s *workerSuite) TestValidate(c *gc.C) {
	for i, mutate := range []func(*WorkerConfig){
		func(cfg *WorkerConfig) { cfg.State = nil },
		func(cfg *WorkerConfig) { cfg.MaxAge = 0 },
		func(cfg *WorkerConfig) { cfg.Clock = nil },
		func(cfg *WorkerConfig) { cfg.Logger = nil },
	} {
		c.Logf("test %d", i)
		cfg := s.config()
		mutate(&cfg)
		c.Check(cfg.Validate(), jc.ErrorIs, errors.NotValid)
	}
}

func (s *workerSuite) TestPrunesOlderThanMaxAge(c *gc.C) {
	s.state.pruned = []int{3, 0}

	w, err := NewWorker(s.config())
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w)

	c.Assert(s.clock.WaitAdvance(defaultPruneMinInterval, testing.LongWait, 1), jc.ErrorIsNil)
	before := s.waitForPrune(c)
	c.Check(before, gc.Equals, s.clock.Now().Add(-time.Hour))

	c.Assert(s.clock.WaitAdvance(defaultPruneMaxInterval, testing.LongWait, 1), jc.ErrorIsNil)
	s.waitForPrune(c)

	s.state.CheckCallNames(c, "PruneExecutions", "PruneExecutions")
}

func (s *workerSuite) TestPruneErrorKillsWorker(c *gc.C) {
	s.state.SetErrors(errors.New("boom"))

	w, err := NewWorker(s.config())
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.DirtyKill(c, w)

	c.Assert(s.clock.WaitAdvance(defaultPruneMinInterval, testing.LongWait, 1), jc.ErrorIsNil)
	s.waitForPrune(c)

	err = workertest.CheckKilled(c, w)
	c.Assert(err, gc.ErrorMatches, `pruning match-sets: boom`)
}

func (s *workerSuite) TestBackOffGrows(c *gc.C) {
	previous := backOffStrategy(0, 0)
	for attempt := 1; attempt < 20; attempt++ {
		next := backOffStrategy(0, attempt)
		c.Check(next >= previous, jc.IsTrue)
		c.Check(next <= defaultPruneMaxInterval, jc.IsTrue)
		previous = next
	}
	c.Check(previous, gc.Equals, defaultPruneMaxInterval)
}

type stateSuite struct {
	schematesting.FactSuite
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) TestPrunesOrphanedMatchSets(c *gc.C) {
	st := state.NewState(s.TxnRunnerFactory(), loggo.GetLogger("factstore.matchpruner.test"))
	_, err := st.Append(context.Background(), fact.Fact{
		ID:        "5f0c3a2e-9b1d-4c6e-8a7f-2d4b6e8c0a13",
		Namespace: "orders",
		Payload:   []byte(`{}`),
	})
	c.Assert(err, jc.ErrorIsNil)

	matched, err := st.PrepareMatches(context.Background(), "orphan", []fact.Spec{{Namespace: "orders"}}, 0)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(matched, gc.Equals, int64(1))

	clk := testclock.NewClock(time.Now().Add(2 * time.Hour))
	w, err := NewWorker(WorkerConfig{
		State:  st,
		MaxAge: time.Hour,
		Clock:  clk,
		Logger: loggo.GetLogger("factstore.matchpruner.test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	defer workertest.CleanKill(c, w)

	c.Assert(clk.WaitAdvance(defaultPruneMinInterval, testing.LongWait, 1), jc.ErrorIsNil)

	timeout := time.After(testing.LongWait)
	for s.CountRows(c, "catchup_execution") > 0 {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-timeout:
			c.Fatalf("timed out waiting for match-set to be pruned")
		}
	}
	c.Check(s.CountRows(c, "catchup_match"), gc.Equals, 0)
}
