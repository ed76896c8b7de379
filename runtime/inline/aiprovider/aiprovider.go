// Package aiprovider wires model.ChatModel implementations (anthropic,
// openai) behind the shared llm.provider.v1 contract as inline components,
// grounded on model.ChatModel's provider-neutral chat shape and executing
// provider tool calls through a tool.Registry between turns.
package aiprovider

import (
	"context"
	"encoding/json"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/model"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
	"github.com/shipsec/workflow-engine/runtime/inline"
	"github.com/shipsec/workflow-engine/tool"
)

// ContractName is the named contract every LLM chat component's
// provider-shaped values satisfy.
const ContractName = "llm.provider.v1"

// Input/output/parameter port ids shared by every chat component.
const (
	PromptInput       = "prompt"
	SystemInput       = "system"
	ToolsInput        = "tools" // only present when ToolsEnabledParam is true
	ResponseOutput    = "response"
	ToolCallsOutput   = "toolCalls"
	ToolsEnabledParam = "toolsEnabled"
)

// maxToolRounds bounds the chat/execute loop so a provider that keeps
// requesting tools cannot spin a worker slot forever.
const maxToolRounds = 5

// ComponentFunc adapts a model.ChatModel into an inline.Func. When the
// provider responds with tool calls and a matching tool is registered, the
// call is executed and its result fed back as a new turn; unresolvable
// calls are surfaced on the toolCalls output for a downstream node to
// handle. When one round has both, the loop stops there: the unresolved
// calls are surfaced and the executed results are not sent back to the
// provider, so the response output is that round's text.
func ComponentFunc(m model.ChatModel, tools *tool.Registry) inline.Func {
	return func(ctx context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
		var messages []model.Message
		if sys := req.Inputs[SystemInput]; sys.Str != "" {
			messages = append(messages, model.Message{Role: model.RoleSystem, Content: sys.Str})
		}
		messages = append(messages, model.Message{Role: model.RoleUser, Content: req.Inputs[PromptInput].AsText()})

		var specs []model.ToolSpec
		if toolsVal, ok := req.Inputs[ToolsInput]; ok {
			specs = decodeTools(toolsVal)
		}

		var out model.ChatOut
		for round := 0; ; round++ {
			var err error
			out, err = m.Chat(ctx, messages, specs)
			if err != nil {
				return runtime.InvocationResult{Err: classifyChatError(req.NodeID, err)}
			}
			if len(out.ToolCalls) == 0 || tools == nil || round >= maxToolRounds {
				break
			}
			executed, unresolved := executeToolCalls(ctx, tools, out.ToolCalls, req.Capabilities.Logger)
			if len(executed) == 0 {
				break // nothing registered for any requested tool
			}
			if out.Text != "" {
				messages = append(messages, model.Message{Role: model.RoleAssistant, Content: out.Text})
			}
			messages = append(messages, executed...)
			if len(unresolved) > 0 {
				out.ToolCalls = unresolved
				break
			}
		}

		outputs := map[string]port.Value{ResponseOutput: port.TextValue(out.Text)}
		if len(out.ToolCalls) > 0 {
			outputs[ToolCallsOutput] = port.ListValue(encodeToolCalls(out.ToolCalls))
		}
		return runtime.InvocationResult{Outputs: outputs}
	}
}

// executeToolCalls runs every call with a registered tool, returning the
// result turns to append plus the calls no tool could serve. A failing tool
// reports its error back to the model rather than failing the node.
func executeToolCalls(ctx context.Context, tools *tool.Registry, calls []model.ToolCall, logger runtime.Logger) ([]model.Message, []model.ToolCall) {
	var turns []model.Message
	var unresolved []model.ToolCall
	for _, call := range calls {
		t, ok := tools.Get(call.Name)
		if !ok {
			unresolved = append(unresolved, call)
			continue
		}
		result, err := t.Call(ctx, call.Input)
		if err != nil {
			if logger != nil {
				logger.Warnf("tool %s failed: %v", call.Name, err)
			}
			result = map[string]interface{}{"error": err.Error()}
		}
		resultJSON, _ := json.Marshal(result)
		turns = append(turns, model.Message{
			Role:    model.RoleUser,
			Content: "Tool " + call.Name + " returned: " + string(resultJSON),
		})
	}
	return turns, unresolved
}

func decodeTools(v port.Value) []model.ToolSpec {
	tools := make([]model.ToolSpec, 0, len(v.List))
	for _, item := range v.List {
		name := item.Map["name"].AsText()
		desc := item.Map["description"].AsText()
		var schema map[string]interface{}
		if raw := item.Map["schema"]; raw.Str != "" {
			_ = json.Unmarshal([]byte(raw.Str), &schema)
		}
		tools = append(tools, model.ToolSpec{Name: name, Description: desc, Schema: schema})
	}
	return tools
}

func encodeToolCalls(calls []model.ToolCall) []port.Value {
	out := make([]port.Value, 0, len(calls))
	for _, c := range calls {
		inputJSON, _ := json.Marshal(c.Input)
		out = append(out, port.MapValue(map[string]port.Value{
			"name":  port.TextValue(c.Name),
			"input": port.TextValue(string(inputJSON)),
		}))
	}
	return out
}

// ResolvePorts implements component.ResolveDynamicPortsFunc for a chat
// component: when the node's toolsEnabled parameter is true, a `tools
// []mcp.tool.v1` input is added.
func ResolvePorts(params map[string]port.Value) (inputs, outputs []component.PortDef, err error) {
	if !params[ToolsEnabledParam].Bool {
		return nil, nil, nil
	}
	return []component.PortDef{
		{ID: ToolsInput, Type: port.ListOf(port.Contract("mcp.tool.v1"))},
	}, nil, nil
}
