// Package workflow manages authored workflow drafts and their committed,
// compiled versions: the authoring side of the /workflows routes, sitting
// in front of the compiler.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/port"
)

// Workflow is an authoring draft: a mutable graph plus its commit history.
type Workflow struct {
	ID        string
	Name      string
	Graph     compiler.Graph
	Versions  []*Version
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Version is a single frozen, compiled plan produced by a commit.
type Version struct {
	ID        string
	Plan      *compiler.Plan
	CreatedAt time.Time
}

// LatestVersion returns the most recently committed version, if any.
func (w *Workflow) LatestVersion() (*Version, bool) {
	if len(w.Versions) == 0 {
		return nil, false
	}
	return w.Versions[len(w.Versions)-1], true
}

// VersionByID finds a committed version by id.
func (w *Workflow) VersionByID(id string) (*Version, bool) {
	for _, v := range w.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return nil, false
}

// Registry holds authored Workflows in memory, keyed by id. A production
// deployment would back this with store.Store; the engine's run durability
// already covers the part of the system that must survive a restart, so an
// in-memory authoring registry is sufficient here and keeps compile/commit
// latency off any persistence path.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	components *component.Registry
	ports      *port.Registry
}

// NewRegistry constructs a Registry bound to the shared component/port
// registries used to compile committed graphs.
func NewRegistry(components *component.Registry, ports *port.Registry) *Registry {
	return &Registry{
		workflows:  make(map[string]*Workflow),
		components: components,
		ports:      ports,
	}
}

// Create registers a new empty draft workflow.
func (r *Registry) Create(name string) *Workflow {
	w := &Workflow{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.mu.Lock()
	r.workflows[w.ID] = w
	r.mu.Unlock()
	return w
}

// Get retrieves a workflow by id.
func (r *Registry) Get(id string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workflows[id]
	return w, ok
}

// UpdateGraph replaces a draft's graph, leaving already-committed versions
// untouched; compiled plans are immutable once produced.
func (r *Registry) UpdateGraph(id string, g compiler.Graph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok {
		return fmt.Errorf("workflow: %s not found", id)
	}
	w.Graph = g
	w.UpdatedAt = time.Now()
	return nil
}

// Commit compiles the workflow's current draft graph and, on success,
// freezes it as a new immutable Version.
func (r *Registry) Commit(ctx context.Context, id string) (*Version, []*compiler.CompileError) {
	r.mu.Lock()
	w, ok := r.workflows[id]
	r.mu.Unlock()
	if !ok {
		return nil, []*compiler.CompileError{{NodeID: "", EdgeIdx: -1, Message: "workflow not found"}}
	}

	plan, errs := compiler.Compile(w.Graph, r.components, r.ports)
	if len(errs) > 0 {
		return nil, errs
	}

	v := &Version{ID: uuid.NewString(), Plan: plan, CreatedAt: time.Now()}
	r.mu.Lock()
	w.Versions = append(w.Versions, v)
	w.UpdatedAt = time.Now()
	r.mu.Unlock()
	return v, nil
}
