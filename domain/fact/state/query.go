// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/canonical/sqlair"

	"github.com/juju/factstore/core/fact"
)

// specPredicate renders the specs as one SQL predicate over the fact table
// aliased as f, combining the specs with OR and the clauses of each spec with
// AND. Filter scripts can not be expressed in SQL and are ignored here. The
// rendered text only depends on the shape of the specs, so statements built
// from it can be cached; the values are returned as sqlair inputs.
func specPredicate(specs []fact.Spec) (string, sqlair.M) {
	args := sqlair.M{}
	branches := make([]string, 0, len(specs))
	for i, spec := range specs {
		param := func(name string, value any) string {
			key := fmt.Sprintf("%s%d", name, i)
			args[key] = value
			return "$M." + key
		}

		clauses := []string{"f.namespace = " + param("ns", spec.Namespace)}
		if spec.Type != "" {
			clauses = append(clauses, "f.type = "+param("type", spec.Type))
		}
		if spec.AggregateID != "" {
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(f.aggregate_ids) AS a WHERE a.value = %s)",
				param("agg", spec.AggregateID),
			))
		}

		keys := make([]string, 0, len(spec.Meta))
		for k := range spec.Meta {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for j, k := range keys {
			path := param(fmt.Sprintf("mk%dn", j), metaPath(k))
			value := param(fmt.Sprintf("mv%dn", j), spec.Meta[k])
			clauses = append(clauses, fmt.Sprintf("json_extract(f.meta, %s) = %s", path, value))
		}

		branches = append(branches, "("+strings.Join(clauses, " AND ")+")")
	}
	return "(" + strings.Join(branches, " OR ") + ")", args
}

// metaPath returns the JSON path addressing the meta key, quoting it so that
// keys containing dots or brackets address a single member.
func metaPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}
