// Package remote implements the remote runner: posting an invocation
// request to a declared remote endpoint over HTTP with a bounded timeout,
// treating non-2xx as failure with the status code projected into the
// error taxonomy.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
)

// Spec is a component's remote-runner configuration.
type Spec struct {
	Endpoint       string
	TimeoutSeconds int
}

// wireRequest/wireResponse are the JSON shapes posted to and read from a
// remote component endpoint.
type wireRequest struct {
	ComponentID string                 `json:"componentId"`
	RunID       string                 `json:"runId"`
	NodeID      string                 `json:"nodeId"`
	Inputs      map[string]interface{} `json:"inputs"`
	Params      map[string]interface{} `json:"params"`
}

type wireResponse struct {
	Outputs map[string]interface{} `json:"outputs"`
	Pending *wirePending            `json:"pending,omitempty"`
}

type wirePending struct {
	RequestID   string                 `json:"requestId"`
	InputType   string                 `json:"inputType"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	ContextData map[string]interface{} `json:"contextData"`
	TimeoutAt   *int64                 `json:"timeoutAt,omitempty"`
}

// Runner dispatches component invocations over HTTP.
type Runner struct {
	client *resty.Client
	specOf func(componentID string) Spec
}

// New constructs a remote Runner with a shared resty client; specOf
// resolves a component id to its endpoint/timeout configuration.
func New(specOf func(componentID string) Spec) *Runner {
	return &Runner{client: resty.New(), specOf: specOf}
}

// Invoke implements runtime.Runner.
func (r *Runner) Invoke(ctx context.Context, req runtime.InvocationRequest) runtime.InvocationResult {
	spec := r.specOf(req.ComponentID)
	if spec.Endpoint == "" {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Configuration, Message: "remote: no endpoint configured for " + req.ComponentID}}
	}
	timeout := 30 * time.Second
	if spec.TimeoutSeconds > 0 {
		timeout = time.Duration(spec.TimeoutSeconds) * time.Second
	}

	body := wireRequest{
		ComponentID: req.ComponentID,
		RunID:       req.RunID,
		NodeID:      req.NodeID,
		Inputs:      toWireValues(req.Inputs),
		Params:      toWireValues(req.Params),
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out wireResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		ForceContentType("application/json").
		SetHeader("Content-Type", "application/json").
		Post(spec.Endpoint)
	if err != nil {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: errs.Transient, Message: "remote: request failed: " + err.Error(), Cause: err}}
	}
	if resp.StatusCode() >= 300 {
		return runtime.InvocationResult{Err: &errs.NodeError{NodeID: req.NodeID, Kind: classifyStatus(resp.StatusCode()), Message: fmt.Sprintf("remote: status %d: %s", resp.StatusCode(), resp.String())}}
	}

	if out.Pending != nil {
		return runtime.InvocationResult{Pending: &runtime.PendingResult{
			RequestID:   out.Pending.RequestID,
			InputType:   out.Pending.InputType,
			Title:       out.Pending.Title,
			Description: out.Pending.Description,
			ContextData: fromWireValues(out.Pending.ContextData),
			TimeoutAt:   out.Pending.TimeoutAt,
		}}
	}
	return runtime.InvocationResult{Outputs: fromWireValues(out.Outputs)}
}

func classifyStatus(code int) errs.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return errs.RateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return errs.Authentication
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return errs.Validation
	case code >= 500:
		return errs.Transient
	default:
		return errs.Internal
	}
}

func toWireValues(m map[string]port.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v.AsText()
	}
	return out
}

func fromWireValues(m map[string]interface{}) map[string]port.Value {
	out := make(map[string]port.Value, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case string:
			out[k] = port.TextValue(vv)
		case float64:
			out[k] = port.NumberValue(vv)
		case bool:
			out[k] = port.BoolValue(vv)
		default:
			out[k] = port.TextValue(fmt.Sprintf("%v", vv))
		}
	}
	return out
}
