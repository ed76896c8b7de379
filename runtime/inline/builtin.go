package inline

import (
	"context"
	"strings"

	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
)

// UppercaseComponentID is a trivial text -> text transform used to
// exercise fan-out/join end to end.
const UppercaseComponentID = "uppercase"

// TextInput and TextOutput are the port ids Uppercase reads/writes.
const (
	TextInput  = "text"
	TextOutput = "text"
)

// Uppercase returns the Func for the uppercase component.
func Uppercase() Func {
	return func(_ context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
		return success(map[string]port.Value{TextOutput: port.TextValue(strings.ToUpper(textInput(req, TextInput)))})
	}
}

// SecretRefComponentID resolves a secret id (supplied as a parameter) into
// a plaintext `secret`-typed output via the invocation's Secrets
// capability.
const SecretRefComponentID = "secret-ref"

// SecretIDParam names the parameter carrying the secret id to resolve.
const SecretIDParam = "secretId"

// SecretValueOutput is the port id the resolved secret is written to.
const SecretValueOutput = "value"

// SecretRef returns the Func for the secret-ref component.
func SecretRef() Func {
	return func(ctx context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
		id := req.Params[SecretIDParam].AsText()
		if id == "" {
			return fail(req.NodeID, "ValidationError", "secret-ref: %s parameter is required", SecretIDParam)
		}
		if req.Capabilities.Secrets == nil {
			return fail(req.NodeID, "ConfigurationError", "secret-ref: no secrets capability configured")
		}
		value, _, err := req.Capabilities.Secrets.Get(ctx, id)
		if err != nil {
			return fail(req.NodeID, "ConfigurationError", "secret-ref: resolving %s: %v", id, err)
		}
		return success(map[string]port.Value{SecretValueOutput: port.TextValue(value)})
	}
}
