// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package transformation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/factstore/internal/script"
)

type stepKey struct {
	namespace string
	factType  string
	from      int
}

// Step migrates a payload from one version to the next.
type Step struct {
	From    int
	To      int
	program *script.Program
}

// Apply runs the step against the payload.
func (s Step) Apply(payload []byte) ([]byte, error) {
	out, err := s.program.Transform(payload)
	if err != nil {
		return nil, errors.Annotatef(err, "step %d -> %d", s.From, s.To)
	}
	return out, nil
}

// Registry holds the transformation scripts known for each namespace and
// type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	steps map[stepKey]map[int]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[stepKey]map[int]Step),
	}
}

// Register compiles the source and records it as the step migrating facts of
// the namespace and type from one version to another. The source must define
// transform(event).
func (r *Registry) Register(namespace, factType string, from, to int, source string) error {
	if namespace == "" {
		return errors.NotValidf("empty namespace")
	}
	if from < 0 || to < 0 || from == to {
		return errors.NotValidf("step %d -> %d", from, to)
	}
	name := fmt.Sprintf("%s/%s/%d-%d", namespace, factType, from, to)
	program, err := script.Compile(name, source, script.TransformEntrypoint)
	if err != nil {
		return errors.Trace(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := stepKey{namespace: namespace, factType: factType, from: from}
	targets, ok := r.steps[key]
	if !ok {
		targets = make(map[int]Step)
		r.steps[key] = targets
	}
	if _, ok := targets[to]; ok {
		return errors.AlreadyExistsf("step %s", name)
	}
	targets[to] = Step{From: from, To: to, program: program}
	return nil
}

// Resolve returns the steps leading from the version to the lowest reachable
// target. Each target is reached by the shortest chain of steps.
func (r *Registry) Resolve(namespace, factType string, from int, targets set.Ints) ([]Step, error) {
	if targets.Contains(from) {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Breadth first search from the current version, remembering how each
	// version was first reached.
	via := map[int]Step{}
	visited := set.NewInts(from)
	queue := []int{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		next := r.steps[stepKey{namespace: namespace, factType: factType, from: current}]
		tos := make([]int, 0, len(next))
		for to := range next {
			tos = append(tos, to)
		}
		sort.Ints(tos)
		for _, to := range tos {
			if visited.Contains(to) {
				continue
			}
			visited.Add(to)
			via[to] = next[to]
			queue = append(queue, to)
		}
	}

	for _, target := range targets.SortedValues() {
		if !visited.Contains(target) {
			continue
		}
		var chain []Step
		for v := target; v != from; {
			step := via[v]
			chain = append(chain, step)
			v = step.From
		}
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		return chain, nil
	}
	return nil, errors.NotFoundf("transformation of %s/%s from version %d to any of %v",
		namespace, factType, from, targets.SortedValues())
}
