package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockChatModelScriptedResponses(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "one"}, {Text: "two"}}}

	out, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "one" {
		t.Errorf("first response = %q, want one", out.Text)
	}

	out, _ = m.Chat(context.Background(), nil, nil)
	if out.Text != "two" {
		t.Errorf("second response = %q, want two", out.Text)
	}

	// Exhausted scripts repeat the last response.
	out, _ = m.Chat(context.Background(), nil, nil)
	if out.Text != "two" {
		t.Errorf("repeated response = %q, want two", out.Text)
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", m.CallCount())
	}
}

func TestMockChatModelErr(t *testing.T) {
	wantErr := errors.New("boom")
	m := &MockChatModel{Err: wantErr}
	if _, err := m.Chat(context.Background(), nil, nil); !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestMockChatModelContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &MockChatModel{Responses: []ChatOut{{Text: "never"}}}
	if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Chat error = %v, want context.Canceled", err)
	}
	if m.CallCount() != 0 {
		t.Error("cancelled call was recorded")
	}
}

func TestMockChatModelReset(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "one"}, {Text: "two"}}}
	_, _ = m.Chat(context.Background(), nil, nil)
	m.Reset()
	if m.CallCount() != 0 {
		t.Error("Reset did not clear calls")
	}
	out, _ := m.Chat(context.Background(), nil, nil)
	if out.Text != "one" {
		t.Errorf("post-Reset response = %q, want one", out.Text)
	}
}
