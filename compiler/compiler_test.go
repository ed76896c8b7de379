package compiler

import (
	"strings"
	"testing"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/port"
)

func newTestComponents(t *testing.T) *component.Registry {
	t.Helper()
	reg := component.NewRegistry()
	defs := []*component.Definition{
		{
			ID:      "source.v1",
			Runner:  component.RunnerInline,
			Outputs: []component.PortDef{{ID: "out", Type: port.Prim(port.Text)}},
			Retry:   component.RetryPolicy{MaxAttempts: 1},
		},
		{
			ID:     "sink.v1",
			Runner: component.RunnerInline,
			Inputs: []component.PortDef{{ID: "in", Type: port.Prim(port.Text)}},
			Retry:  component.RetryPolicy{MaxAttempts: 1},
		},
		{
			ID:      "list-source.v1",
			Runner:  component.RunnerInline,
			Outputs: []component.PortDef{{ID: "out", Type: port.ListOf(port.Prim(port.Text))}},
			Retry:   component.RetryPolicy{MaxAttempts: 1},
		},
		{
			ID:     "scalar-sink.v1",
			Runner: component.RunnerInline,
			Inputs: []component.PortDef{{ID: "in", Type: port.Prim(port.Text)}},
			Retry:  component.RetryPolicy{MaxAttempts: 1},
		},
	}
	for _, d := range defs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("registering %s: %v", d.ID, err)
		}
	}
	return reg
}

func TestCompile_SimpleLinearGraph(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "source.v1"},
			{ID: "b", Def: "sink.v1"},
		},
		Edges: []EdgeSpec{
			{FromNode: "a", FromPort: "out", ToNode: "b", ToPort: "in"},
		},
	}

	plan, errs := Compile(g, components, ports)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(plan.Order) != 2 || plan.Order[0] != "a" || plan.Order[1] != "b" {
		t.Errorf("unexpected order: %v", plan.Order)
	}
	if len(plan.EntryNodes) != 1 || plan.EntryNodes[0] != "a" {
		t.Errorf("unexpected entry nodes: %v", plan.EntryNodes)
	}
	if plan.Hash == "" {
		t.Error("expected non-empty plan hash")
	}
}

func TestCompile_DeterministicHash(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "source.v1"},
			{ID: "b", Def: "sink.v1"},
		},
		Edges: []EdgeSpec{
			{FromNode: "a", FromPort: "out", ToNode: "b", ToPort: "in"},
		},
	}

	p1, errs := Compile(g, components, ports)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	p2, errs := Compile(g, components, ports)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p1.Hash != p2.Hash {
		t.Errorf("recompiling an unchanged graph produced different hashes: %s != %s", p1.Hash, p2.Hash)
	}
}

func TestCompile_RejectsCycle(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()
	if err := components.Register(&component.Definition{
		ID:      "passthrough.v1",
		Runner:  component.RunnerInline,
		Inputs:  []component.PortDef{{ID: "in", Type: port.Prim(port.Text)}},
		Outputs: []component.PortDef{{ID: "out", Type: port.Prim(port.Text)}},
		Retry:   component.RetryPolicy{MaxAttempts: 1},
	}); err != nil {
		t.Fatalf("registering passthrough.v1: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "passthrough.v1"},
			{ID: "b", Def: "passthrough.v1"},
		},
		Edges: []EdgeSpec{
			{FromNode: "a", FromPort: "out", ToNode: "b", ToPort: "in"},
			{FromNode: "b", FromPort: "out", ToNode: "a", ToPort: "in"},
		},
	}

	_, errs := Compile(g, components, ports)
	if len(errs) == 0 {
		t.Fatal("expected cycle to be rejected")
	}
	if !strings.Contains(errs[0].Message, "cycle") {
		t.Errorf("expected a cycle error, got: %v", errs)
	}
}

func TestCompile_RejectsUnknownComponent(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{Nodes: []NodeSpec{{ID: "a", Def: "missing.v1"}}}

	_, errs := Compile(g, components, ports)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(errs), errs)
	}
}

func TestCompile_RejectsDuplicateSingleArityEdge(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "source.v1"},
			{ID: "b", Def: "source.v1"},
			{ID: "c", Def: "sink.v1"},
		},
		Edges: []EdgeSpec{
			{FromNode: "a", FromPort: "out", ToNode: "c", ToPort: "in"},
			{FromNode: "b", FromPort: "out", ToNode: "c", ToPort: "in"},
		},
	}

	_, errs := Compile(g, components, ports)
	if len(errs) == 0 {
		t.Fatal("expected second edge on single-arity input to be rejected")
	}
}

func TestCompile_RejectsNoEntryNodes(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "sink.v1"},
		},
	}
	// No nodes at all is trivially "no entry nodes"; use an empty graph to
	// exercise the explicit rejection path without needing a synthetic cycle.
	g.Nodes = nil

	_, errs := Compile(g, components, ports)
	if len(errs) == 0 {
		t.Fatal("expected graph with no entry nodes to be rejected")
	}
}

func TestCompile_FanOutListToScalarIsCompatible(t *testing.T) {
	components := newTestComponents(t)
	ports := port.NewRegistry()

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "a", Def: "list-source.v1"},
			{ID: "b", Def: "scalar-sink.v1"},
		},
		Edges: []EdgeSpec{
			{FromNode: "a", FromPort: "out", ToNode: "b", ToPort: "in"},
		},
	}

	_, errs := Compile(g, components, ports)
	if len(errs) > 0 {
		t.Fatalf("expected list[T] -> scalar T fan-out edge to compile, got errors: %v", errs)
	}
}
