// Package runtime defines the uniform component-invocation contract shared
// by the inline, container, and remote runners.
package runtime

import (
	"context"

	"github.com/shipsec/workflow-engine/port"
)

// Logger is the structured log sink a component receives through its
// capability object. Implementations wrap logrus in this repo's ambient
// stack (see cmd/shipsecd's logger wiring).
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Secrets is the capability a component uses to resolve secret values by
// id. Implementations never log or persist the plaintext they return.
type Secrets interface {
	Get(ctx context.Context, id string) (value string, version int, err error)
	List(ctx context.Context) ([]string, error)
}

// Artifacts is the capability a component uses to persist binary or large
// textual output out-of-band; node outputs carry only the returned ids.
type Artifacts interface {
	Upload(ctx context.Context, name string, content []byte, mime string, scope string) (artifactID string, fileID string, err error)
}

// Capabilities bundles everything a component invocation may reach for
// beyond its resolved inputs and parameters.
type Capabilities struct {
	Logger       Logger
	EmitProgress func(text string)
	Secrets      Secrets
	Artifacts    Artifacts
	TenantID     string
}

// InvocationRequest is the uniform request passed to every runner's
// Invoke.
type InvocationRequest struct {
	ComponentID  string
	RunID        string
	NodeID       string
	Inputs       map[string]port.Value
	Params       map[string]port.Value
	Capabilities Capabilities
	// RunnerConfig is the component definition's runner-specific
	// configuration (image/entrypoint/command for container, endpoint/
	// timeout for remote); opaque to the engine, interpreted by the runner.
	RunnerConfig map[string]port.Value
}

// PendingResult is returned by a component (via InvocationResult.Pending)
// that must suspend rather than complete synchronously.
type PendingResult struct {
	RequestID   string
	InputType   string // contract name the eventual resolution payload must satisfy
	Title       string
	Description string
	ContextData map[string]port.Value
	TimeoutAt   *int64 // unix seconds, nil if no timeout
}

// InvocationResult is the uniform result every runner produces. Exactly one
// of Outputs, Pending, or Err is meaningful.
type InvocationResult struct {
	Outputs map[string]port.Value
	Pending *PendingResult
	Err     error
}

// Runner is the sealed-variant interface implemented by each of the three
// runner strategies (inline, container, remote); a dispatch table keyed by
// RunnerKind replaces inheritance.
type Runner interface {
	Invoke(ctx context.Context, req InvocationRequest) InvocationResult
}
