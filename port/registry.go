package port

import (
	"fmt"
	"sync"
)

// Schema validates a value's shape against a contract when ValidateContract
// is called; RegisterContract only stores it. Contracts
// are opaque to the rest of the system beyond their name and version; the
// validator is the registry's only hook into their structure.
type Schema interface {
	Validate(v Value) error
}

// SchemaFunc adapts a function to Schema.
type SchemaFunc func(v Value) error

func (f SchemaFunc) Validate(v Value) error { return f(v) }

// Registry is the process-global, read-after-startup port/contract type
// system. It is safe for concurrent reads once construction
// (RegisterContract) is complete.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Schema
}

// NewRegistry returns an empty contract registry. Tests construct a fresh
// Registry rather than mutating a shared singleton.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]Schema)}
}

// RegisterContract binds a contract name (e.g. "llm.provider.v1") to a
// validation schema. Re-registering the same name overwrites the schema,
// which is only safe during process startup before any compile/run occurs.
func (r *Registry) RegisterContract(name string, schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[name] = schema
}

// HasContract reports whether name has been registered.
func (r *Registry) HasContract(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contracts[name]
	return ok
}

// ValidateContract runs the registered schema for name against v. Returns an
// error if the contract is unknown or validation fails.
func (r *Registry) ValidateContract(name string, v Value) error {
	r.mu.RLock()
	schema, ok := r.contracts[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("port: unknown contract %q", name)
	}
	return schema.Validate(v)
}

// ValuePriority controls how an input port resolves between an inbound
// edge value and a manually supplied parameter override.
type ValuePriority string

const (
	// EdgeFirst uses the inbound edge value when present, falling back to
	// the manual parameter otherwise. This is the default.
	EdgeFirst ValuePriority = "edge-first"
	// ManualFirst overrides any inbound edge value with the manual
	// parameter whenever one is supplied.
	ManualFirst ValuePriority = "manual-first"
)

// Compatible reports whether a value of source type `from` may flow into a
// target port of type `to`, under the identity, any, coercion, and
// list-covariance rules. Compile-time compatibility consults only the
// declared coercion `from` sets — it never inspects a concrete Value.
func (r *Registry) Compatible(from, to Type) bool {
	if to.IsAny() || from.IsAny() {
		return true
	}

	if from.kind == KindList && to.kind == KindList {
		fe, _ := from.Elem()
		te, _ := to.Elem()
		return r.Compatible(fe, te)
	}

	if from.kind == KindMap && to.kind == KindMap {
		return from.primitive == to.primitive
	}

	if from.kind == to.kind {
		switch from.kind {
		case KindPrimitive:
			if from.primitive == to.primitive {
				return true
			}
		case KindContract:
			if from.contract == to.contract {
				return true
			}
		}
	}

	// Asymmetric coercions are declared only between primitives.
	if to.kind == KindPrimitive && from.kind == KindPrimitive {
		for _, rule := range defaultCoercions {
			if rule.to == to.primitive && rule.from == from.primitive {
				return true
			}
		}
	}

	return false
}

// Coerce performs the pure runtime conversion from a value of type `from` to
// type `to`. It is the execution-time counterpart of Compatible: compilation
// only checks that a coercion is *declared*; Coerce actually performs it.
func (r *Registry) Coerce(v Value, from, to Type) (Value, error) {
	if Equals(from, to) || to.IsAny() {
		return v, nil
	}
	if from.IsAny() {
		return v, nil
	}
	if from.kind == KindList && to.kind == KindList {
		fe, _ := from.Elem()
		te, _ := to.Elem()
		out := make([]Value, len(v.List))
		for i, elem := range v.List {
			cv, err := r.Coerce(elem, fe, te)
			if err != nil {
				return Value{}, fmt.Errorf("port: coercing list element %d: %w", i, err)
			}
			out[i] = cv
		}
		return ListValue(out), nil
	}
	if to.kind == KindPrimitive && from.kind == KindPrimitive {
		for _, rule := range defaultCoercions {
			if rule.to == to.primitive && rule.from == from.primitive {
				return rule.convert(v)
			}
		}
	}
	return Value{}, fmt.Errorf("port: no coercion declared from %s to %s", Describe(from), Describe(to))
}
