package component

import (
	"testing"

	"github.com/shipsec/workflow-engine/port"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	def := &Definition{
		ID:     "http.request.v1",
		Runner: RunnerInline,
		Retry:  RetryPolicy{MaxAttempts: 1},
	}

	if err := r.Register(def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := r.Get("http.request.v1")
	if !ok {
		t.Fatal("expected definition to be found")
	}
	if got.ID != def.ID {
		t.Errorf("got ID %q, want %q", got.ID, def.ID)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing definition to be absent")
	}
}

func TestRegistry_Register_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	def := &Definition{ID: "dup.v1", Retry: RetryPolicy{MaxAttempts: 1}}
	if err := r.Register(def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(def); err == nil {
		t.Error("expected error registering duplicate id")
	}
}

func TestRegistry_Register_RejectsInvalidRetryPolicy(t *testing.T) {
	r := NewRegistry()
	def := &Definition{ID: "bad.v1", Retry: RetryPolicy{MaxAttempts: 0}}
	if err := r.Register(def); err == nil {
		t.Error("expected error for MaxAttempts < 1")
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	cases := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{"valid no retries", RetryPolicy{MaxAttempts: 1}, false},
		{"valid with intervals", RetryPolicy{MaxAttempts: 3, InitialIntervalSeconds: 1, MaximumIntervalSeconds: 30, BackoffCoefficient: 2}, false},
		{"zero attempts", RetryPolicy{MaxAttempts: 0}, true},
		{"max below initial", RetryPolicy{MaxAttempts: 2, InitialIntervalSeconds: 10, MaximumIntervalSeconds: 5}, true},
		{"coefficient below one", RetryPolicy{MaxAttempts: 2, BackoffCoefficient: 0.5}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolveDynamicPorts_AugmentsWithoutContradiction(t *testing.T) {
	def := &Definition{
		ID: "dynamic.v1",
		Inputs: []PortDef{
			{ID: "prompt", Type: port.Prim(port.Text)},
		},
		ResolveDynamicPorts: func(params map[string]port.Value) (inputs, outputs []PortDef, err error) {
			return []PortDef{{ID: "extra", Type: port.Prim(port.Number)}}, nil, nil
		},
	}

	eff, err := ResolveDynamicPorts(def, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(eff.Inputs) != 2 {
		t.Fatalf("expected 2 effective inputs, got %d", len(eff.Inputs))
	}
}

func TestResolveDynamicPorts_RejectsTypeContradiction(t *testing.T) {
	def := &Definition{
		ID: "dynamic.v2",
		Inputs: []PortDef{
			{ID: "prompt", Type: port.Prim(port.Text)},
		},
		ResolveDynamicPorts: func(params map[string]port.Value) (inputs, outputs []PortDef, err error) {
			return []PortDef{{ID: "prompt", Type: port.Prim(port.Number)}}, nil, nil
		},
	}

	if _, err := ResolveDynamicPorts(def, nil); err == nil {
		t.Error("expected error when dynamic port contradicts static type")
	}
}
