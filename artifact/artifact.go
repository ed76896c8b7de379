// Package artifact stores binary or textual output produced by a node,
// addressed by artifactId and an optional fileId in external object
// storage, never embedded in node outputs by value.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/runtime"
)

// Scope is an artifact's destination scope.
type Scope string

const (
	ScopeRun    Scope = "run"
	ScopeGlobal Scope = "global"
)

// Artifact is the persisted metadata record for one uploaded artifact.
type Artifact struct {
	ArtifactID string
	FileID     string
	RunID      string
	Name       string
	MIME       string
	Scope      Scope
}

// Store is the object-storage boundary a component reaches through its
// Artifacts capability (runtime.Artifacts). Upload returns the artifactId
// (and, for backends with a distinct object key, a fileId) the node's
// output should reference.
type Store interface {
	Upload(ctx context.Context, runID, name string, content []byte, mime string, scope Scope) (*Artifact, error)
	Download(ctx context.Context, artifactID string) ([]byte, *Artifact, error)
}

// ForRun adapts a Store into the runtime.Artifacts capability scoped to
// one run, so a component's uploads carry the owning run id without the
// component ever seeing it.
func ForRun(s Store, runID string) runtime.Artifacts {
	return &runScoped{store: s, runID: runID}
}

type runScoped struct {
	store Store
	runID string
}

func (a *runScoped) Upload(ctx context.Context, name string, content []byte, mime string, scope string) (string, string, error) {
	sc := ScopeRun
	if Scope(scope) == ScopeGlobal {
		sc = ScopeGlobal
	}
	art, err := a.store.Upload(ctx, a.runID, name, content, mime, sc)
	if err != nil {
		return "", "", err
	}
	return art.ArtifactID, art.FileID, nil
}

// FSStore is a local-filesystem Store for development: one file per
// artifact under a root directory, indexed in memory.
type FSStore struct {
	root  string
	index map[string]*Artifact
}

// NewFSStore returns a Store rooted at dir, creating it if necessary.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: creating root %s: %w", dir, err)
	}
	return &FSStore{root: dir, index: make(map[string]*Artifact)}, nil
}

func (s *FSStore) Upload(_ context.Context, runID, name string, content []byte, mime string, scope Scope) (*Artifact, error) {
	id := uuid.NewString()
	path := filepath.Join(s.root, id)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return nil, fmt.Errorf("artifact: writing %s: %w", path, err)
	}
	a := &Artifact{ArtifactID: id, FileID: id, RunID: runID, Name: name, MIME: mime, Scope: scope}
	s.index[id] = a
	return a, nil
}

func (s *FSStore) Download(_ context.Context, artifactID string) ([]byte, *Artifact, error) {
	a, ok := s.index[artifactID]
	if !ok {
		return nil, nil, fmt.Errorf("artifact: unknown artifact %q", artifactID)
	}
	data, err := os.ReadFile(filepath.Join(s.root, artifactID))
	if err != nil {
		return nil, nil, fmt.Errorf("artifact: reading %s: %w", artifactID, err)
	}
	return data, a, nil
}
