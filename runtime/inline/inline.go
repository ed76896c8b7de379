// Package inline implements the inline runner: component invocations
// executed in the same address space as the engine. Used for lightweight
// transforms, AI-provider glue, secret shaping, and the form/approval
// suspension gates. Errors surface as typed failures; panics are captured
// and converted.
package inline

import (
	"context"
	"fmt"

	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
)

// Func is the signature an inline component implements.
type Func func(ctx context.Context, req runtime.InvocationRequest) runtime.InvocationResult

// Runner dispatches to a registered Func by component id, satisfying
// runtime.Runner.
type Runner struct {
	funcs map[string]Func
}

// NewRunner returns an empty inline Runner; components are wired in with
// Register.
func NewRunner() *Runner {
	return &Runner{funcs: make(map[string]Func)}
}

// Register binds a component id to its inline implementation. Panics on a
// duplicate id — this is a startup-time wiring bug, not a runtime condition.
func (r *Runner) Register(componentID string, fn Func) {
	if _, exists := r.funcs[componentID]; exists {
		panic(fmt.Sprintf("inline: duplicate registration for %q", componentID))
	}
	r.funcs[componentID] = fn
}

// Invoke implements runtime.Runner. Panics raised by a component's Func
// are recovered and converted to an errs.Internal failure so a single
// buggy component cannot take down the engine's worker pool.
func (r *Runner) Invoke(ctx context.Context, req runtime.InvocationRequest) (result runtime.InvocationResult) {
	fn, ok := r.funcs[req.ComponentID]
	if !ok {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Internal, Message: "inline: no implementation for " + req.ComponentID}}
	}
	defer func() {
		if rec := recover(); rec != nil {
			result = runtime.InvocationResult{Err: &errs.NodeError{
				NodeID:  req.NodeID,
				Kind:    errs.Internal,
				Message: fmt.Sprintf("inline: component %s panicked: %v", req.ComponentID, rec),
			}}
		}
	}()
	return fn(ctx, req)
}

// textInput reads a text-valued input, coercing other primitives lexically
// via AsText since inline components operate on already-validated,
// compiler-checked port values.
func textInput(req runtime.InvocationRequest, portID string) string {
	v, ok := req.Inputs[portID]
	if !ok {
		return ""
	}
	return v.AsText()
}

func success(outputs map[string]port.Value) runtime.InvocationResult {
	return runtime.InvocationResult{Outputs: outputs}
}

func fail(nodeID string, kind errs.Kind, format string, args ...interface{}) runtime.InvocationResult {
	return runtime.InvocationResult{Err: &errs.NodeError{NodeID: nodeID, Kind: kind, Message: fmt.Sprintf(format, args...)}}
}
