// Package webhook implements inbound webhook ingress: a registered
// configuration maps an inbound HTTP path to a workflow, a CEL parsing
// script projects the request body/headers into the workflow's
// runtime-input shape, and the result is handed to a Trigger to start a
// run.
package webhook

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/port"
)

// Configuration binds an inbound path to a workflow and its parsing script.
type Configuration struct {
	ID            string
	Path          string // unique, matched against /webhooks/inbound/{path}
	WorkflowID    string
	VersionID     string
	ParsingScript string // CEL expression; must evaluate to a map
	Secret        string // optional shared secret checked against X-Webhook-Secret
}

// Trigger starts a run for a workflow version with the given runtime inputs.
// Implemented by the engine/API layer; kept as an interface here so webhook
// has no dependency on engine's run-management internals.
type Trigger func(ctx context.Context, workflowID, versionID string, inputs map[string]port.Value) (runID string, err error)

// InboundRequest is the data a parsing script is evaluated against.
type InboundRequest struct {
	Headers map[string]string
	Body    map[string]interface{}
	Query   map[string]string
}

// Registry holds registered webhook Configurations, keyed by path. A
// parsing script is compiled once on Register to reject bad scripts and
// again on every evaluation; compiled programs are not cached.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]Configuration
	byID    map[string]Configuration
	env     *cel.Env
	trigger Trigger
}

// NewRegistry constructs a Registry. trigger is called once a parsing script
// has produced runtime inputs for a matched configuration.
func NewRegistry(trigger Trigger) (*Registry, error) {
	env, err := cel.NewEnv(
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("body", cel.DynType),
		cel.Variable("query", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("webhook: building CEL env: %w", err)
	}
	return &Registry{
		byPath:  make(map[string]Configuration),
		byID:    make(map[string]Configuration),
		env:     env,
		trigger: trigger,
	}, nil
}

// Register adds or replaces a Configuration, validating its parsing script
// compiles under the shared CEL environment before accepting it.
func (r *Registry) Register(cfg Configuration) error {
	if cfg.Path == "" || cfg.WorkflowID == "" {
		return fmt.Errorf("webhook: path and workflowId are required")
	}
	if cfg.ParsingScript != "" {
		if _, issues := r.env.Compile(cfg.ParsingScript); issues != nil && issues.Err() != nil {
			return fmt.Errorf("webhook: invalid parsing script: %w", issues.Err())
		}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPath[cfg.Path] = cfg
	r.byID[cfg.ID] = cfg
	return nil
}

// Remove deletes a Configuration by id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.byID[id]; ok {
		delete(r.byPath, cfg.Path)
		delete(r.byID, id)
	}
}

// List returns all registered configurations.
func (r *Registry) List() []Configuration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Configuration, 0, len(r.byID))
	for _, cfg := range r.byID {
		out = append(out, cfg)
	}
	return out
}

// ErrNoMatch is returned when no configuration matches the inbound path.
var ErrNoMatch = fmt.Errorf("webhook: no configuration registered for path")

// ErrSecretMismatch is returned when a configuration declares a shared secret
// and the inbound request's X-Webhook-Secret header does not match it.
var ErrSecretMismatch = fmt.Errorf("webhook: secret mismatch")

// Handle evaluates the parsing script for the configuration bound to path
// against req, then triggers a run with the resulting inputs.
func (r *Registry) Handle(ctx context.Context, path string, req InboundRequest) (runID string, err error) {
	r.mu.RLock()
	cfg, ok := r.byPath[path]
	r.mu.RUnlock()
	if !ok {
		return "", ErrNoMatch
	}
	if cfg.Secret != "" && req.Headers["x-webhook-secret"] != cfg.Secret {
		return "", ErrSecretMismatch
	}

	inputs, err := r.evaluate(cfg, req)
	if err != nil {
		return "", fmt.Errorf("webhook: evaluating parsing script: %w", err)
	}
	return r.trigger(ctx, cfg.WorkflowID, cfg.VersionID, inputs)
}

func (r *Registry) evaluate(cfg Configuration, req InboundRequest) (map[string]port.Value, error) {
	if cfg.ParsingScript == "" {
		return port.MapFromJSON(req.Body), nil
	}

	ast, issues := r.env.Compile(cfg.ParsingScript)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := r.env.Program(ast)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]interface{}, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}
	query := make(map[string]interface{}, len(req.Query))
	for k, v := range req.Query {
		query[k] = v
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"headers": headers,
		"body":    req.Body,
		"query":   query,
	})
	if err != nil {
		return nil, err
	}

	raw, err := out.ConvertToNative(reflect.TypeOf(map[string]interface{}{}))
	if err != nil {
		return nil, fmt.Errorf("parsing script must evaluate to a map: %w", err)
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("parsing script must evaluate to a map, got %T", raw)
	}
	return port.MapFromJSON(m), nil
}
