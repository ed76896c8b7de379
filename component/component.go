// Package component implements the process-global catalog of component
// definitions: declared ports, parameter schema, retry policy, runner kind,
// and the dynamic-port resolution hook.
package component

import (
	"fmt"
	"sync"

	"github.com/shipsec/workflow-engine/port"
)

// RunnerKind names the component runtime that executes invocations of a
// definition.
type RunnerKind string

const (
	RunnerInline    RunnerKind = "inline"
	RunnerContainer RunnerKind = "container"
	RunnerRemote    RunnerKind = "remote"
)

// PortDef declares a single input or output port on a component definition.
type PortDef struct {
	ID            string             `json:"id"`
	Type          port.Type          `json:"type"`
	Multiplicity  bool               `json:"multiplicity,omitempty"` // true if this input accepts a second edge (multi-arity)
	IsBranching   bool               `json:"isBranching,omitempty"`  // true if this output is a branch selector (approved/rejected, ...)
	ValuePriority port.ValuePriority `json:"valuePriority,omitempty"`
}

// ParamSchema validates a node's static `params` payload against a
// component's declared parameter shape. Implementations are provided by
// individual components; the registry treats it opaquely.
type ParamSchema interface {
	Validate(params map[string]port.Value) error
}

// ParamSchemaFunc adapts a function to ParamSchema.
type ParamSchemaFunc func(params map[string]port.Value) error

func (f ParamSchemaFunc) Validate(params map[string]port.Value) error { return f(params) }

// RetryPolicy is a definition's retry configuration, interpreted uniformly
// by the engine.
type RetryPolicy struct {
	MaxAttempts            int      `json:"maxAttempts"`
	InitialIntervalSeconds float64  `json:"initialIntervalSeconds,omitempty"`
	MaximumIntervalSeconds float64  `json:"maximumIntervalSeconds,omitempty"`
	BackoffCoefficient     float64  `json:"backoffCoefficient,omitempty"`
	NonRetryableErrorKinds []string `json:"nonRetryableErrorKinds,omitempty"`
}

// Validate checks the policy's internal constraints.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return fmt.Errorf("component: retry policy MaxAttempts must be >= 1, got %d", rp.MaxAttempts)
	}
	if rp.MaximumIntervalSeconds > 0 && rp.InitialIntervalSeconds > 0 &&
		rp.MaximumIntervalSeconds < rp.InitialIntervalSeconds {
		return fmt.Errorf("component: retry policy MaximumIntervalSeconds (%v) < InitialIntervalSeconds (%v)",
			rp.MaximumIntervalSeconds, rp.InitialIntervalSeconds)
	}
	if rp.BackoffCoefficient != 0 && rp.BackoffCoefficient < 1 {
		return fmt.Errorf("component: retry policy BackoffCoefficient must be >= 1, got %v", rp.BackoffCoefficient)
	}
	return nil
}

// ResolveDynamicPortsFunc computes ports beyond a definition's static
// shape from a concrete params payload. It must be pure and deterministic
// for a given params value.
type ResolveDynamicPortsFunc func(params map[string]port.Value) (inputs, outputs []PortDef, err error)

// Definition is a single catalog entry: a component's static shape, its
// retry behavior, and its runtime binding. RunnerConfig is the
// runner-specific configuration block (image/entrypoint/command for
// container, endpoint/timeout for remote); the engine carries it opaquely
// and the runner interprets it.
type Definition struct {
	ID                  string
	Category            string
	Runner              RunnerKind
	RunnerConfig        map[string]port.Value
	Inputs              []PortDef
	Outputs             []PortDef
	Params              ParamSchema
	Retry               RetryPolicy
	ResolveDynamicPorts ResolveDynamicPortsFunc // optional
}

// EffectivePorts is the result of merging a definition's static ports with
// whatever its ResolveDynamicPorts hook contributes for a given params value.
type EffectivePorts struct {
	Inputs  []PortDef
	Outputs []PortDef
}

// Registry is the process-global component catalog. Like port.Registry,
// it is intended to be fully populated at startup and then read
// concurrently.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry returns an empty component registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register inserts a definition, rejecting a duplicate id.
func (r *Registry) Register(def *Definition) error {
	if def.ID == "" {
		return fmt.Errorf("component: definition must have a non-empty ID")
	}
	if err := def.Retry.Validate(); err != nil {
		return fmt.Errorf("component: %s: %w", def.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.ID]; exists {
		return fmt.Errorf("component: duplicate definition id %q", def.ID)
	}
	r.defs[def.ID] = def
	return nil
}

// Get performs a process-global lookup by id. ok is false if no such
// definition has been registered.
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// ResolveDynamicPorts invokes def's optional hook and merges its result onto
// the static shape. The merge augments but never contradicts the static
// shape: it is an error for the hook to redeclare an existing port id with a
// different type, and statically declared ports are always kept, so a hook
// that omits one does not remove it.
func ResolveDynamicPorts(def *Definition, params map[string]port.Value) (EffectivePorts, error) {
	eff := EffectivePorts{
		Inputs:  append([]PortDef(nil), def.Inputs...),
		Outputs: append([]PortDef(nil), def.Outputs...),
	}
	if def.ResolveDynamicPorts == nil {
		return eff, nil
	}
	dynIn, dynOut, err := def.ResolveDynamicPorts(params)
	if err != nil {
		return EffectivePorts{}, fmt.Errorf("component: %s: resolveDynamicPorts: %w", def.ID, err)
	}
	eff.Inputs, err = mergePorts(eff.Inputs, dynIn)
	if err != nil {
		return EffectivePorts{}, fmt.Errorf("component: %s: %w", def.ID, err)
	}
	eff.Outputs, err = mergePorts(eff.Outputs, dynOut)
	if err != nil {
		return EffectivePorts{}, fmt.Errorf("component: %s: %w", def.ID, err)
	}
	return eff, nil
}

// mergePorts overlays dyn onto static: a dynamic port with a new id is
// appended; a dynamic port matching a static id must agree on type
// exactly, or the merge is rejected.
func mergePorts(static, dyn []PortDef) ([]PortDef, error) {
	byID := make(map[string]int, len(static))
	for i, p := range static {
		byID[p.ID] = i
	}
	out := append([]PortDef(nil), static...)
	for _, d := range dyn {
		if i, ok := byID[d.ID]; ok {
			if !port.Equals(out[i].Type, d.Type) {
				return nil, fmt.Errorf("dynamic port %q type %s contradicts static type %s",
					d.ID, port.Describe(d.Type), port.Describe(out[i].Type))
			}
			continue
		}
		out = append(out, d)
		byID[d.ID] = len(out) - 1
	}
	return out, nil
}
