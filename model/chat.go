// Package model defines the chat-provider abstraction behind the
// llm.provider.v1 contract: a uniform request/response shape over
// Anthropic, OpenAI, and mock backends, so AI components never couple to a
// vendor SDK.
package model

import "context"

// ChatModel is implemented by each provider adapter. Implementations handle
// authentication, convert Message/ToolSpec to the provider's wire format,
// and respect context cancellation. They do not retry: retry policy belongs
// to the engine, which interprets a component's declared policy uniformly.
type ChatModel interface {
	// Chat sends the conversation (plus optional tool specs) and returns
	// the provider's response — text, tool calls, or both.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single turn in a conversation.
type Message struct {
	// Role is one of the Role* constants.
	Role string
	// Content is the message text; may be empty on turns that carry only
	// tool calls.
	Content string
}

// Conversation roles, matching the convention every major provider shares.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes one tool offered to the provider. Schema is JSON
// Schema for the tool's input; nil for parameterless tools.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a provider response: generated text, requested tool calls, or
// both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is the provider asking for one tool invocation. Input matches
// the corresponding ToolSpec.Schema.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
