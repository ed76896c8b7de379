package catalog

import (
	"context"
	"testing"

	"github.com/shipsec/workflow-engine/model"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
	"github.com/shipsec/workflow-engine/runtime/inline"
	"github.com/shipsec/workflow-engine/runtime/inline/aiprovider"
)

func TestBuildRegistersBuiltins(t *testing.T) {
	cat, err := Build(Models{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, id := range []string{
		inline.UppercaseComponentID,
		inline.SecretRefComponentID,
		inline.ManualApprovalComponentID,
		inline.FormComponentID,
	} {
		if _, ok := cat.Components.Get(id); !ok {
			t.Errorf("component %s not registered", id)
		}
	}
	// No models configured: no chat components.
	if _, ok := cat.Components.Get("anthropic-chat"); ok {
		t.Error("anthropic-chat registered without a model")
	}
	for _, contract := range []string{aiprovider.ContractName, "mcp.tool.v1"} {
		if !cat.Ports.HasContract(contract) {
			t.Errorf("contract %s not registered", contract)
		}
	}
}

func TestBuildWiresChatModels(t *testing.T) {
	cat, err := Build(Models{Anthropic: &model.MockChatModel{Responses: []model.ChatOut{{Text: "hi"}}}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	def, ok := cat.Components.Get("anthropic-chat")
	if !ok {
		t.Fatal("anthropic-chat not registered")
	}
	if def.Retry.MaxAttempts != 3 {
		t.Errorf("chat retry MaxAttempts = %d, want 3", def.Retry.MaxAttempts)
	}

	result := cat.Inline.Invoke(context.Background(), runtime.InvocationRequest{
		ComponentID: "anthropic-chat",
		RunID:       "r", NodeID: "n",
		Inputs: map[string]port.Value{aiprovider.PromptInput: port.TextValue("hello")},
	})
	if result.Err != nil {
		t.Fatalf("Invoke: %v", result.Err)
	}
	if got := result.Outputs[aiprovider.ResponseOutput].Str; got != "hi" {
		t.Errorf("chat response = %q, want hi", got)
	}
}

func TestChatDynamicToolsPort(t *testing.T) {
	cat, err := Build(Models{OpenAI: &model.MockChatModel{}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	def, _ := cat.Components.Get("openai-chat")

	inputs, _, err := def.ResolveDynamicPorts(map[string]port.Value{aiprovider.ToolsEnabledParam: port.BoolValue(true)})
	if err != nil {
		t.Fatalf("ResolveDynamicPorts: %v", err)
	}
	found := false
	for _, in := range inputs {
		if in.ID == aiprovider.ToolsInput {
			found = true
			if name, ok := in.Type.ContractName(); !ok || name != "mcp.tool.v1" {
				t.Errorf("tools input type = %s", port.Describe(in.Type))
			}
		}
	}
	if !found {
		t.Error("toolsEnabled did not add the tools input")
	}

	inputs, _, err = def.ResolveDynamicPorts(nil)
	if err != nil {
		t.Fatalf("ResolveDynamicPorts(nil): %v", err)
	}
	if len(inputs) != 0 {
		t.Errorf("tools input added without toolsEnabled: %v", inputs)
	}
}

func TestMCPToolContractValidation(t *testing.T) {
	cat, err := Build(Models{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ok := port.MapValue(map[string]port.Value{"name": port.TextValue("search")})
	if err := cat.Ports.ValidateContract("mcp.tool.v1", ok); err != nil {
		t.Errorf("valid tool value rejected: %v", err)
	}
	bad := port.MapValue(map[string]port.Value{"description": port.TextValue("no name")})
	if err := cat.Ports.ValidateContract("mcp.tool.v1", bad); err == nil {
		t.Error("tool value without name accepted")
	}
}
