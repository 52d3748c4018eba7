// Package graph provides a small validated execution graph for linear
// processing pipelines. Unlike a general scheduler it has no branching,
// skipping, or parallel levels: the execution order is a declared total
// order over all nodes, and validation only checks that the order is a
// legal linearization of the dependency edges. The consuming intent
// pipeline is linear by construction, so anything more would be unused.
package graph

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// Processor transforms the pipeline state for one node. It receives the
// original caller input alongside the evolving state and returns the state
// to pass to the next node.
type Processor[C any] func(ctx context.Context, input string, state C) (C, error)

// Node is a named processing step with declared dependencies. Nodes and
// their execution order are fixed per pipeline instance; they are not
// mutated at run time outside of tests.
type Node[C any] struct {
	Name         string
	Processor    Processor[C]
	Dependencies []string
}

// TimingSink receives per-node wall-clock timings. The pipeline context
// implements it; a disabled-telemetry context can discard the writes.
type TimingSink interface {
	RecordNodeTiming(node string, ms float64)
}

// Validate checks that order is a valid linearization of the node set:
// every scheduled name exists, every node is scheduled, and every
// dependency runs strictly before its dependent. All offending names are
// collected and reported together rather than failing on the first.
func Validate[C any](nodes map[string]Node[C], order []string) error {
	var missing []string
	for _, name := range order {
		if _, ok := nodes[name]; !ok {
			missing = append(missing, name)
		}
	}

	scheduled := make(map[string]int, len(order))
	for idx, name := range order {
		scheduled[name] = idx
	}

	var unscheduled []string
	for name := range nodes {
		if _, ok := scheduled[name]; !ok {
			unscheduled = append(unscheduled, name)
		}
	}
	slices.Sort(unscheduled)

	var depViolations []string
	for _, name := range order {
		node, ok := nodes[name]
		if !ok {
			continue
		}
		pos := scheduled[name]
		for _, dep := range node.Dependencies {
			depPos, ok := scheduled[dep]
			if !ok || depPos >= pos {
				depViolations = append(depViolations, dep+" -> "+name)
			}
		}
	}
	slices.Sort(depViolations)

	if len(missing) == 0 && len(unscheduled) == 0 && len(depViolations) == 0 {
		return nil
	}

	details := map[string]any{}
	if len(missing) > 0 {
		details["missing_nodes"] = missing
	}
	if len(unscheduled) > 0 {
		details["unscheduled_nodes"] = unscheduled
	}
	if len(depViolations) > 0 {
		details["dependency_violations"] = depViolations
	}
	return schema.NewError(schema.ErrCodeValidation, "invalid execution graph").WithDetails(details)
}

// Run validates the graph and then executes every node strictly in order,
// threading the state forward. Each node's elapsed wall-clock time is
// recorded on the state in milliseconds, rounded to 3 decimal places.
func Run[C TimingSink](ctx context.Context, nodes map[string]Node[C], order []string, input string, state C) (C, error) {
	if err := Validate(nodes, order); err != nil {
		return state, err
	}

	for _, name := range order {
		node := nodes[name]
		start := time.Now()
		next, err := node.Processor(ctx, input, state)
		if err != nil {
			return state, schema.NewErrorf(schema.ErrCodeNodeFailed, "%s", err.Error()).
				WithNode(name).
				WithCause(err)
		}
		state = next
		state.RecordNodeTiming(name, roundMillis(time.Since(start)))
	}
	return state, nil
}

// roundMillis converts a duration to milliseconds rounded to 3 decimals.
func roundMillis(d time.Duration) float64 {
	return math.Round(d.Seconds()*1e6) / 1e3
}
