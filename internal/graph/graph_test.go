package graph

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/lumina-vs/orchestrator/pkg/schema"
)

// --- helpers ---

// testState is a minimal pipeline state capturing node visits and timings.
type testState struct {
	visited []string
	timings map[string]float64
}

func newTestState() *testState {
	return &testState{timings: make(map[string]float64)}
}

func (s *testState) RecordNodeTiming(node string, ms float64) {
	s.timings[node] = ms
}

func visitNode(name string, deps ...string) Node[*testState] {
	return Node[*testState]{
		Name: name,
		Processor: func(_ context.Context, _ string, st *testState) (*testState, error) {
			st.visited = append(st.visited, name)
			return st, nil
		},
		Dependencies: deps,
	}
}

func linearGraph(names ...string) (map[string]Node[*testState], []string) {
	nodes := make(map[string]Node[*testState], len(names))
	for i, name := range names {
		var deps []string
		if i > 0 {
			deps = []string{names[i-1]}
		}
		nodes[name] = visitNode(name, deps...)
	}
	return nodes, names
}

func assertValidationError(t *testing.T, err error, detailKey string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var perr *schema.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %T: %v", err, err)
	}
	if perr.Code != schema.ErrCodeValidation {
		t.Errorf("expected code %s, got %s", schema.ErrCodeValidation, perr.Code)
	}
	if _, ok := perr.Details[detailKey]; !ok {
		t.Errorf("expected detail %q, got %v", detailKey, perr.Details)
	}
}

// --- validation ---

func TestValidate_ValidLinearOrder(t *testing.T) {
	nodes, order := linearGraph("a", "b", "c")
	if err := Validate(nodes, order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingNodes(t *testing.T) {
	nodes, _ := linearGraph("a", "b")
	err := Validate(nodes, []string{"a", "b", "ghost", "phantom"})
	assertValidationError(t, err, "missing_nodes")

	var perr *schema.PipelineError
	errors.As(err, &perr)
	got := perr.Details["missing_nodes"].([]string)
	if len(got) != 2 {
		t.Errorf("expected both missing names reported, got %v", got)
	}
}

func TestValidate_UnscheduledNodes(t *testing.T) {
	nodes, _ := linearGraph("a", "b", "c")
	err := Validate(nodes, []string{"a"})
	assertValidationError(t, err, "unscheduled_nodes")

	var perr *schema.PipelineError
	errors.As(err, &perr)
	got := perr.Details["unscheduled_nodes"].([]string)
	if len(got) != 2 {
		t.Errorf("expected both unscheduled names reported, got %v", got)
	}
}

func TestValidate_DependencyAfterDependent(t *testing.T) {
	nodes, _ := linearGraph("a", "b", "c")
	err := Validate(nodes, []string{"b", "a", "c"})
	assertValidationError(t, err, "dependency_violations")
}

func TestValidate_DependencyNotScheduled(t *testing.T) {
	nodes := map[string]Node[*testState]{
		"a": visitNode("a", "elsewhere"),
	}
	err := Validate(nodes, []string{"a"})
	assertValidationError(t, err, "dependency_violations")
}

func TestValidate_SelfDependency(t *testing.T) {
	nodes := map[string]Node[*testState]{
		"a": visitNode("a", "a"),
	}
	err := Validate(nodes, []string{"a"})
	assertValidationError(t, err, "dependency_violations")
}

// TestValidate_ShuffledOrders checks the linearization property: a shuffled
// order is valid iff no dependency edge ends up inverted.
func TestValidate_ShuffledOrders(t *testing.T) {
	nodes, order := linearGraph("n1", "n2", "n3", "n4", "n5")
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		shuffled := append([]string(nil), order...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		pos := make(map[string]int, len(shuffled))
		for idx, name := range shuffled {
			pos[name] = idx
		}
		inverted := false
		for name, node := range nodes {
			for _, dep := range node.Dependencies {
				if pos[dep] >= pos[name] {
					inverted = true
				}
			}
		}

		err := Validate(nodes, shuffled)
		if inverted && err == nil {
			t.Fatalf("order %v inverts an edge but validated", shuffled)
		}
		if !inverted && err != nil {
			t.Fatalf("order %v is a valid linearization but failed: %v", shuffled, err)
		}
	}
}

// --- execution ---

func TestRun_ExecutesInOrderWithTimings(t *testing.T) {
	nodes, order := linearGraph("preprocess", "classify", "finalize")
	st, err := Run(context.Background(), nodes, order, "hello", newTestState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(st.visited, ",") != "preprocess,classify,finalize" {
		t.Errorf("wrong execution order: %v", st.visited)
	}
	for _, name := range order {
		ms, ok := st.timings[name]
		if !ok {
			t.Errorf("no timing recorded for %s", name)
		}
		if ms < 0 {
			t.Errorf("negative timing for %s: %f", name, ms)
		}
	}
}

func TestRun_ValidatesFirst(t *testing.T) {
	nodes, _ := linearGraph("a", "b")
	st := newTestState()
	_, err := Run(context.Background(), nodes, []string{"b", "a"}, "", st)
	assertValidationError(t, err, "dependency_violations")
	if len(st.visited) != 0 {
		t.Errorf("no node should run when validation fails, ran %v", st.visited)
	}
}

func TestRun_NodeErrorStopsExecution(t *testing.T) {
	boom := errors.New("boom")
	nodes := map[string]Node[*testState]{
		"a": visitNode("a"),
		"b": {
			Name: "b",
			Processor: func(_ context.Context, _ string, st *testState) (*testState, error) {
				return st, boom
			},
			Dependencies: []string{"a"},
		},
		"c": visitNode("c", "b"),
	}

	st := newTestState()
	_, err := Run(context.Background(), nodes, []string{"a", "b", "c"}, "", st)
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *schema.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if perr.Code != schema.ErrCodeNodeFailed || perr.Node != "b" {
		t.Errorf("expected NODE_FAILED at b, got %s at %q", perr.Code, perr.Node)
	}
	if !errors.Is(err, boom) {
		t.Error("cause should be preserved")
	}
	if strings.Join(st.visited, ",") != "a" {
		t.Errorf("c must not run after b fails, visited %v", st.visited)
	}
}

func TestRoundMillis(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1500us", 1.5},
		{"2ms", 2},
		{"1234567ns", 1.235},
	}
	for _, tc := range cases {
		d, err := time.ParseDuration(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := roundMillis(d); got != tc.want {
			t.Errorf("roundMillis(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
