package tool

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	a := &MockTool{ToolName: "alpha"}
	b := &MockTool{ToolName: "beta"}
	r, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if got, ok := r.Get("alpha"); !ok || got != Tool(a) {
		t.Error("Get(alpha) did not return the registered tool")
	}
	if _, ok := r.Get("gamma"); ok {
		t.Error("Get(gamma) returned a tool that was never registered")
	}
	if names := r.Names(); !reflect.DeepEqual(names, []string{"alpha", "beta"}) {
		t.Errorf("Names() = %v, want [alpha beta]", names)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(&MockTool{ToolName: "dup"}, &MockTool{ToolName: "dup"}); err == nil {
		t.Error("expected duplicate-name error")
	}
}

func TestMockToolScript(t *testing.T) {
	m := &MockTool{
		ToolName:  "calc",
		Responses: []map[string]interface{}{{"result": 4}, {"result": 9}},
	}
	out, err := m.Call(context.Background(), map[string]interface{}{"expression": "2+2"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out["result"] != 4 {
		t.Errorf("first result = %v, want 4", out["result"])
	}
	out, _ = m.Call(context.Background(), nil)
	if out["result"] != 9 {
		t.Errorf("second result = %v, want 9", out["result"])
	}
	out, _ = m.Call(context.Background(), nil)
	if out["result"] != 9 {
		t.Errorf("exhausted script should repeat last response, got %v", out["result"])
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", m.CallCount())
	}
}

func TestMockToolErr(t *testing.T) {
	wantErr := errors.New("down")
	m := &MockTool{ToolName: "x", Err: wantErr}
	if _, err := m.Call(context.Background(), nil); !errors.Is(err, wantErr) {
		t.Errorf("Call error = %v, want %v", err, wantErr)
	}
}
