package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/shipsec/workflow-engine/model"
)

type fakeClient struct {
	system   string
	messages []model.Message
	tools    []model.ToolSpec
	out      model.ChatOut
	err      error
}

func (f *fakeClient) createMessage(_ context.Context, system string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	f.system = system
	f.messages = messages
	f.tools = tools
	return f.out, f.err
}

func TestExtractSystemPrompt(t *testing.T) {
	tests := []struct {
		name       string
		messages   []model.Message
		wantSystem string
		wantConv   int
	}{
		{
			name: "single system message",
			messages: []model.Message{
				{Role: model.RoleSystem, Content: "be brief"},
				{Role: model.RoleUser, Content: "hi"},
			},
			wantSystem: "be brief",
			wantConv:   1,
		},
		{
			name: "multiple system messages concatenate",
			messages: []model.Message{
				{Role: model.RoleSystem, Content: "one"},
				{Role: model.RoleSystem, Content: "two"},
				{Role: model.RoleUser, Content: "hi"},
			},
			wantSystem: "one\n\ntwo",
			wantConv:   1,
		},
		{
			name:       "no system message",
			messages:   []model.Message{{Role: model.RoleUser, Content: "hi"}},
			wantSystem: "",
			wantConv:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, conv := extractSystemPrompt(tt.messages)
			if system != tt.wantSystem {
				t.Errorf("system = %q, want %q", system, tt.wantSystem)
			}
			if len(conv) != tt.wantConv {
				t.Errorf("conversation length = %d, want %d", len(conv), tt.wantConv)
			}
		})
	}
}

func TestChatRoutesThroughClient(t *testing.T) {
	fake := &fakeClient{out: model.ChatOut{Text: "bonjour"}}
	m := &ChatModel{modelName: DefaultModel, client: fake}

	out, err := m.Chat(context.Background(), []model.Message{
		{Role: model.RoleSystem, Content: "fr only"},
		{Role: model.RoleUser, Content: "hello"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "bonjour" {
		t.Errorf("Text = %q, want bonjour", out.Text)
	}
	if fake.system != "fr only" {
		t.Errorf("system prompt not extracted: %q", fake.system)
	}
	if len(fake.messages) != 1 {
		t.Errorf("conversation length = %d, want 1 (system removed)", len(fake.messages))
	}
}

func TestChatContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewChatModel("key", "")
	if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Chat error = %v, want context.Canceled", err)
	}
}

func TestChatClientError(t *testing.T) {
	wantErr := errors.New("overloaded_error")
	m := &ChatModel{modelName: DefaultModel, client: &fakeClient{err: wantErr}}
	if _, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "x"}}, nil); !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestSDKClientRequiresAPIKey(t *testing.T) {
	c := &sdkClient{modelName: DefaultModel}
	if _, err := c.createMessage(context.Background(), "", nil, nil); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestToolInputMap(t *testing.T) {
	if got := toolInputMap(nil); got != nil {
		t.Errorf("nil input -> %v, want nil", got)
	}
	m := map[string]interface{}{"a": 1}
	if got := toolInputMap(m); got["a"] != 1 {
		t.Errorf("map input not passed through: %v", got)
	}
	if got := toolInputMap("raw"); got["_raw"] != "raw" {
		t.Errorf("non-map input not wrapped: %v", got)
	}
}
