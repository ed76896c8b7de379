package workflow

import (
	"context"
	"testing"

	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/port"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	components := component.NewRegistry()
	if err := components.Register(&component.Definition{
		ID:      "echo",
		Runner:  component.RunnerInline,
		Inputs:  []component.PortDef{{ID: "text", Type: port.Prim(port.Text)}},
		Outputs: []component.PortDef{{ID: "text", Type: port.Prim(port.Text)}},
		Retry:   component.RetryPolicy{MaxAttempts: 1},
	}); err != nil {
		t.Fatalf("registering echo: %v", err)
	}
	return NewRegistry(components, port.NewRegistry())
}

func singleNodeGraph() compiler.Graph {
	return compiler.Graph{Nodes: []compiler.NodeSpec{{ID: "n", Def: "echo"}}}
}

func TestCreateAndGet(t *testing.T) {
	r := newRegistry(t)
	w := r.Create("triage")
	if w.ID == "" {
		t.Fatal("created workflow has no id")
	}
	got, ok := r.Get(w.ID)
	if !ok || got.Name != "triage" {
		t.Fatalf("Get returned %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) reported success")
	}
}

func TestCommitFreezesVersions(t *testing.T) {
	r := newRegistry(t)
	w := r.Create("wf")
	if err := r.UpdateGraph(w.ID, singleNodeGraph()); err != nil {
		t.Fatalf("UpdateGraph: %v", err)
	}

	v1, errs := r.Commit(context.Background(), w.ID)
	if len(errs) > 0 {
		t.Fatalf("Commit errors: %v", errs)
	}
	v2, errs := r.Commit(context.Background(), w.ID)
	if len(errs) > 0 {
		t.Fatalf("second Commit errors: %v", errs)
	}

	if v1.Plan.Hash != v2.Plan.Hash {
		t.Errorf("recommitting an unchanged graph changed the plan hash: %s != %s", v1.Plan.Hash, v2.Plan.Hash)
	}
	if v1.ID == v2.ID {
		t.Error("distinct commits share a version id")
	}

	latest, ok := w.LatestVersion()
	if !ok || latest.ID != v2.ID {
		t.Errorf("LatestVersion = %v, want %s", latest, v2.ID)
	}
	if got, ok := w.VersionByID(v1.ID); !ok || got.Plan.Hash != v1.Plan.Hash {
		t.Error("VersionByID lost the first frozen version")
	}
}

func TestCommitSurfacesCompileErrors(t *testing.T) {
	r := newRegistry(t)
	w := r.Create("wf")
	if err := r.UpdateGraph(w.ID, compiler.Graph{Nodes: []compiler.NodeSpec{{ID: "n", Def: "nope"}}}); err != nil {
		t.Fatalf("UpdateGraph: %v", err)
	}
	if _, errs := r.Commit(context.Background(), w.ID); len(errs) == 0 {
		t.Error("Commit of a broken graph reported no errors")
	}
	if _, ok := w.LatestVersion(); ok {
		t.Error("failed commit still froze a version")
	}
}

func TestUpdateGraphUnknownWorkflow(t *testing.T) {
	r := newRegistry(t)
	if err := r.UpdateGraph("missing", singleNodeGraph()); err == nil {
		t.Error("UpdateGraph(missing) succeeded")
	}
}
