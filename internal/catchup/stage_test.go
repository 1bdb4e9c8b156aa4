// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package catchup

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/factstore/core/fact"
	"github.com/juju/factstore/core/transformation"
)

type transformerFunc func(context.Context, []transformation.Request) ([]fact.Fact, error)

func (f transformerFunc) Transform(ctx context.Context, requests []transformation.Request) ([]fact.Fact, error) {
	return f(ctx, requests)
}

type stageSuite struct {
	baseSuite

	transformer *versionTransformer
}

var _ = gc.Suite(&stageSuite{})

func (s *stageSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)
	s.transformer = &versionTransformer{}
}

func (s *stageSuite) newStage(c *gc.C, specs []fact.Spec, transformer transformation.Transformer, batchSize int, idOnly bool) *Stage {
	matcher, err := NewMatcher(specs)
	c.Assert(err, jc.ErrorIsNil)
	return NewStage(StageConfig{
		Matcher:     matcher,
		Preparer:    NewPreparer(fact.NewRequestedVersions(specs), idOnly),
		Transformer: transformer,
		Sink:        s.sink,
		BatchSize:   batchSize,
		IDOnly:      idOnly,
		Logger:      testLogger,
	})
}

var wantsV2 = []fact.Spec{{Namespace: "orders", Type: "created", Version: 2}}

func (s *stageSuite) TestDirectForwarding(c *gc.C) {
	defer s.setupMocks(c).Finish()

	facts := makeFacts("orders", 2, 2)
	s.expectNotify(facts...)

	stage := s.newStage(c, wantsV2, s.transformer, 10, false)
	for i, f := range facts {
		c.Assert(stage.Accept(context.Background(), f), jc.ErrorIsNil)
		c.Check(stage.Delivered(), gc.Equals, i+1)
	}
	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	s.transformer.CheckNoCalls(c)
}

func (s *stageSuite) TestBufferingPreservesOrder(c *gc.C) {
	defer s.setupMocks(c).Finish()

	a := fact.Fact{ID: "a", Namespace: "orders", Type: "created", Version: 1, Serial: 1, Payload: []byte(`"a"`)}
	b := fact.Fact{ID: "b", Namespace: "orders", Type: "created", Version: 2, Serial: 2, Payload: []byte(`"b"`)}
	cf := fact.Fact{ID: "c", Namespace: "orders", Type: "created", Version: 1, Serial: 3, Payload: []byte(`"c"`)}

	// C completes before A.
	transformer := transformerFunc(func(ctx context.Context, requests []transformation.Request) ([]fact.Fact, error) {
		c.Check(requests, gc.HasLen, 2)
		return []fact.Fact{
			cf.Transformed(2, upgradedPayload(cf, 2)),
			a.Transformed(2, upgradedPayload(a, 2)),
		}, nil
	})

	s.expectNotify(
		a.Transformed(2, upgradedPayload(a, 2)),
		b,
		cf.Transformed(2, upgradedPayload(cf, 2)),
	)

	stage := s.newStage(c, wantsV2, transformer, 10, false)
	for _, f := range []fact.Fact{a, b, cf} {
		c.Assert(stage.Accept(context.Background(), f), jc.ErrorIsNil)
	}
	c.Check(stage.Delivered(), gc.Equals, 0)

	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 3)
	c.Check(stage.Transformed(), gc.Equals, 2)
}

func (s *stageSuite) TestDirectThenBuffering(c *gc.C) {
	defer s.setupMocks(c).Finish()

	direct := fact.Fact{ID: "a", Namespace: "orders", Type: "created", Version: 2, Serial: 1}
	old := fact.Fact{ID: "b", Namespace: "orders", Type: "created", Version: 1, Serial: 2, Payload: []byte(`1`)}
	s.expectNotify(direct, old.Transformed(2, upgradedPayload(old, 2)))

	stage := s.newStage(c, wantsV2, s.transformer, 10, false)
	c.Assert(stage.Accept(context.Background(), direct), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 1)
	c.Assert(stage.Accept(context.Background(), old), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 1)
	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 2)
}

func (s *stageSuite) TestAutoFlushAtBatchSize(c *gc.C) {
	defer s.setupMocks(c).Finish()

	old := fact.Fact{ID: "a", Namespace: "orders", Type: "created", Version: 1, Serial: 1, Payload: []byte(`1`)}
	current := fact.Fact{ID: "b", Namespace: "orders", Type: "created", Version: 2, Serial: 2}
	s.expectNotify(old.Transformed(2, upgradedPayload(old, 2)), current)

	stage := s.newStage(c, wantsV2, s.transformer, 2, false)
	c.Assert(stage.Accept(context.Background(), old), jc.ErrorIsNil)
	c.Assert(stage.Accept(context.Background(), current), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 2)
	s.transformer.CheckCallNames(c, "Transform")
}

func (s *stageSuite) TestStaysBufferingAfterFlush(c *gc.C) {
	defer s.setupMocks(c).Finish()

	old := fact.Fact{ID: "a", Namespace: "orders", Type: "created", Version: 1, Serial: 1, Payload: []byte(`1`)}
	current := fact.Fact{ID: "b", Namespace: "orders", Type: "created", Version: 2, Serial: 2}
	s.expectNotify(old.Transformed(2, upgradedPayload(old, 2)), current)

	stage := s.newStage(c, wantsV2, s.transformer, 10, false)
	c.Assert(stage.Accept(context.Background(), old), jc.ErrorIsNil)
	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 1)

	c.Assert(stage.Accept(context.Background(), current), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 1)
	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	c.Check(stage.Delivered(), gc.Equals, 2)

	// Only the first flush had anything to transform.
	s.transformer.CheckCallNames(c, "Transform")
}

func (s *stageSuite) TestTransformationFailure(c *gc.C) {
	defer s.setupMocks(c).Finish()

	boom := errors.New("boom")
	s.transformer.SetErrors(boom)

	stage := s.newStage(c, wantsV2, s.transformer, 10, false)
	c.Assert(stage.Accept(context.Background(), makeFacts("orders", 1, 1)[0]), jc.ErrorIsNil)
	err := stage.Flush(context.Background())
	c.Assert(err, jc.ErrorIs, ErrTransformationFailed)
	c.Check(err, jc.ErrorIs, boom)
	c.Check(err, gc.ErrorMatches, `transforming fact "orders-1": boom`)
	c.Check(stage.Delivered(), gc.Equals, 0)
}

func (s *stageSuite) TestMissingTransformationResult(c *gc.C) {
	defer s.setupMocks(c).Finish()

	transformer := transformerFunc(func(context.Context, []transformation.Request) ([]fact.Fact, error) {
		return nil, nil
	})

	stage := s.newStage(c, wantsV2, transformer, 10, false)
	c.Assert(stage.Accept(context.Background(), makeFacts("orders", 1, 1)[0]), jc.ErrorIsNil)
	err := stage.Flush(context.Background())
	c.Assert(err, jc.ErrorIs, ErrTransformationFailed)
	c.Check(err, gc.ErrorMatches, `no transformation result for fact "orders-1"`)
}

func (s *stageSuite) TestFilteredFactsAreDropped(c *gc.C) {
	defer s.setupMocks(c).Finish()

	facts := makeFacts("orders", 2, 4)
	s.expectNotify(facts[1], facts[3])

	specs := []fact.Spec{{
		Namespace: "orders",
		Version:   2,
		Filter:    &fact.Script{Source: "def matches(f):\n    return f[\"payload\"][\"n\"] % 2 == 0\n"},
	}}
	stage := s.newStage(c, specs, s.transformer, 10, false)
	for _, f := range facts {
		c.Assert(stage.Accept(context.Background(), f), jc.ErrorIsNil)
	}
	c.Check(stage.Delivered(), gc.Equals, 2)
}

func (s *stageSuite) TestIDOnly(c *gc.C) {
	defer s.setupMocks(c).Finish()

	f := fact.Fact{
		ID:           "a",
		Namespace:    "orders",
		Type:         "created",
		Version:      1,
		Serial:       1,
		Payload:      []byte(`{}`),
		AggregateIDs: []string{"agg"},
	}
	s.expectNotify(f.IDOnly())

	stage := s.newStage(c, wantsV2, s.transformer, 10, true)
	c.Assert(stage.Accept(context.Background(), f), jc.ErrorIsNil)
	c.Assert(stage.Flush(context.Background()), jc.ErrorIsNil)
	s.transformer.CheckNoCalls(c)
}

func (s *stageSuite) TestDeliveryFailureClosesSink(c *gc.C) {
	defer s.setupMocks(c).Finish()

	f := makeFacts("orders", 2, 1)[0]
	s.sink.EXPECT().Notify(gomock.Any(), f).Return(errors.New("gone"))
	s.sink.EXPECT().Close().Return(errors.New("already closed"))

	stage := s.newStage(c, wantsV2, s.transformer, 10, false)
	err := stage.Accept(context.Background(), f)
	c.Assert(err, gc.ErrorMatches, `delivering fact "orders-1": gone`)
	c.Check(stage.Delivered(), gc.Equals, 0)
}
