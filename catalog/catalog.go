// Package catalog wires every built-in component and contract into a fresh
// port.Registry/component.Registry/inline.Runner triple at process start.
package catalog

import (
	"fmt"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/model"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime/inline"
	"github.com/shipsec/workflow-engine/runtime/inline/aiprovider"
	"github.com/shipsec/workflow-engine/tool"
)

// Catalog bundles the registries and inline dispatch table populated by
// Build, ready to hand to engine.New alongside a container/remote runner.
type Catalog struct {
	Ports      *port.Registry
	Components *component.Registry
	Inline     *inline.Runner
}

// Models supplies the model.ChatModel implementations to wire behind the
// anthropic-chat/openai-chat component ids; nil entries are skipped so a
// deployment without an OpenAI key, say, doesn't fail to build its catalog.
// Tools, when nil, defaults to a registry holding the HTTP tool.
type Models struct {
	Anthropic model.ChatModel
	OpenAI    model.ChatModel
	Tools     *tool.Registry
}

// Build constructs the catalog of built-in contracts and components.
func Build(models Models) (*Catalog, error) {
	ports := port.NewRegistry()
	components := component.NewRegistry()
	runner := inline.NewRunner()

	if models.Tools == nil {
		var err error
		models.Tools, err = tool.NewRegistry(tool.NewHTTPTool(0))
		if err != nil {
			return nil, err
		}
	}

	registerContracts(ports)

	if err := registerUppercase(components, runner); err != nil {
		return nil, err
	}
	if err := registerSecretRef(components, runner); err != nil {
		return nil, err
	}
	if err := registerManualApproval(components, runner); err != nil {
		return nil, err
	}
	if err := registerForm(components, runner); err != nil {
		return nil, err
	}
	if models.Anthropic != nil {
		if err := registerChatComponent(components, runner, "anthropic-chat", models.Anthropic, models.Tools); err != nil {
			return nil, err
		}
	}
	if models.OpenAI != nil {
		if err := registerChatComponent(components, runner, "openai-chat", models.OpenAI, models.Tools); err != nil {
			return nil, err
		}
	}

	return &Catalog{Ports: ports, Components: components, Inline: runner}, nil
}

func registerContracts(ports *port.Registry) {
	ports.RegisterContract(aiprovider.ContractName, port.SchemaFunc(func(v port.Value) error {
		return nil // free-form chat payload; the inline adapter is the sole producer/consumer
	}))
	ports.RegisterContract("mcp.tool.v1", port.SchemaFunc(func(v port.Value) error {
		if v.Map == nil {
			return nil
		}
		if _, ok := v.Map["name"]; !ok {
			return fmt.Errorf("catalog: mcp.tool.v1 value missing field name")
		}
		return nil
	}))
}

func registerUppercase(components *component.Registry, runner *inline.Runner) error {
	runner.Register(inline.UppercaseComponentID, inline.Uppercase())
	return components.Register(&component.Definition{
		ID:      inline.UppercaseComponentID,
		Runner:  component.RunnerInline,
		Inputs:  []component.PortDef{{ID: inline.TextInput, Type: port.Prim(port.Text)}},
		Outputs: []component.PortDef{{ID: inline.TextOutput, Type: port.Prim(port.Text)}},
		Retry:   component.RetryPolicy{MaxAttempts: 1},
	})
}

func registerSecretRef(components *component.Registry, runner *inline.Runner) error {
	runner.Register(inline.SecretRefComponentID, inline.SecretRef())
	return components.Register(&component.Definition{
		ID:      inline.SecretRefComponentID,
		Runner:  component.RunnerInline,
		Outputs: []component.PortDef{{ID: inline.SecretValueOutput, Type: port.Prim(port.Secret)}},
		Retry:   component.RetryPolicy{MaxAttempts: 1},
	})
}

func registerManualApproval(components *component.Registry, runner *inline.Runner) error {
	runner.Register(inline.ManualApprovalComponentID, inline.ManualApproval())
	return components.Register(&component.Definition{
		ID:     inline.ManualApprovalComponentID,
		Runner: component.RunnerInline,
		Outputs: []component.PortDef{
			{ID: inline.ApprovedBranch, Type: port.Prim(port.Boolean), IsBranching: true},
			{ID: inline.RejectedBranch, Type: port.Prim(port.Boolean), IsBranching: true},
		},
		Retry: component.RetryPolicy{MaxAttempts: 1},
	})
}

func registerForm(components *component.Registry, runner *inline.Runner) error {
	runner.Register(inline.FormComponentID, inline.Form())
	return components.Register(&component.Definition{
		ID:      inline.FormComponentID,
		Runner:  component.RunnerInline,
		Outputs: []component.PortDef{{ID: "fields", Type: port.Prim(port.JSON)}},
		Retry:   component.RetryPolicy{MaxAttempts: 1},
	})
}

func registerChatComponent(components *component.Registry, runner *inline.Runner, id string, m model.ChatModel, tools *tool.Registry) error {
	runner.Register(id, aiprovider.ComponentFunc(m, tools))
	return components.Register(&component.Definition{
		ID:     id,
		Runner: component.RunnerInline,
		Inputs: []component.PortDef{
			{ID: aiprovider.PromptInput, Type: port.Prim(port.Text)},
			{ID: aiprovider.SystemInput, Type: port.Prim(port.Text)},
		},
		Outputs: []component.PortDef{
			{ID: aiprovider.ResponseOutput, Type: port.Prim(port.Text)},
			{ID: aiprovider.ToolCallsOutput, Type: port.ListOf(port.Prim(port.JSON))},
		},
		Retry:               component.RetryPolicy{MaxAttempts: 3, InitialIntervalSeconds: 1, MaximumIntervalSeconds: 30, BackoffCoefficient: 2},
		ResolveDynamicPorts: aiprovider.ResolvePorts,
	})
}
