package webhook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsec/workflow-engine/port"
)

type capturedTrigger struct {
	workflowID string
	versionID  string
	inputs     map[string]port.Value
	runID      string
	err        error
}

func (c *capturedTrigger) fn(_ context.Context, workflowID, versionID string, inputs map[string]port.Value) (string, error) {
	c.workflowID = workflowID
	c.versionID = versionID
	c.inputs = inputs
	if c.runID == "" {
		c.runID = "run-1"
	}
	return c.runID, c.err
}

func newTestRegistry(t *testing.T) (*Registry, *capturedTrigger) {
	t.Helper()
	trigger := &capturedTrigger{}
	r, err := NewRegistry(trigger.fn)
	require.NoError(t, err)
	return r, trigger
}

func TestRegisterRejectsInvalidScript(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.Register(Configuration{Path: "p", WorkflowID: "wf", ParsingScript: "this is not CEL ((("})
	assert.Error(t, err)
}

func TestRegisterRequiresPathAndWorkflow(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.Error(t, r.Register(Configuration{WorkflowID: "wf"}))
	assert.Error(t, r.Register(Configuration{Path: "p"}))
}

func TestHandleParsesGitHubStylePayload(t *testing.T) {
	r, trigger := newTestRegistry(t)
	script := `{"repo_name": body.repository.full_name, "is_push": headers["x-github-event"] == "push" ? "true" : "false"}`
	require.NoError(t, r.Register(Configuration{Path: "gh", WorkflowID: "wf-1", ParsingScript: script}))

	runID, err := r.Handle(context.Background(), "gh", InboundRequest{
		Headers: map[string]string{"x-github-event": "push"},
		Body:    map[string]interface{}{"repository": map[string]interface{}{"full_name": "org/repo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.Equal(t, "wf-1", trigger.workflowID)
	assert.Equal(t, "org/repo", trigger.inputs["repo_name"].Str)
	assert.Equal(t, "true", trigger.inputs["is_push"].Str)
}

func TestHandleNoScriptPassesBodyThrough(t *testing.T) {
	r, trigger := newTestRegistry(t)
	require.NoError(t, r.Register(Configuration{Path: "raw", WorkflowID: "wf-1"}))

	_, err := r.Handle(context.Background(), "raw", InboundRequest{
		Body: map[string]interface{}{"key": "value", "n": float64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "value", trigger.inputs["key"].Str)
	assert.Equal(t, float64(3), trigger.inputs["n"].Num)
}

func TestHandleUnknownPath(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, err := r.Handle(context.Background(), "missing", InboundRequest{})
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestHandleSecretMismatch(t *testing.T) {
	r, trigger := newTestRegistry(t)
	require.NoError(t, r.Register(Configuration{Path: "s", WorkflowID: "wf", Secret: "hunter2"}))

	_, err := r.Handle(context.Background(), "s", InboundRequest{Headers: map[string]string{"x-webhook-secret": "wrong"}})
	assert.ErrorIs(t, err, ErrSecretMismatch)

	_, err = r.Handle(context.Background(), "s", InboundRequest{Headers: map[string]string{"x-webhook-secret": "hunter2"}})
	assert.NoError(t, err)
	assert.Equal(t, "wf", trigger.workflowID)
}

func TestHandleScriptMustYieldMap(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(Configuration{Path: "bad", WorkflowID: "wf", ParsingScript: `"a string"`}))
	_, err := r.Handle(context.Background(), "bad", InboundRequest{})
	assert.Error(t, err)
}

func TestRemoveAndList(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.Register(Configuration{ID: "cfg-1", Path: "a", WorkflowID: "wf"}))
	require.NoError(t, r.Register(Configuration{ID: "cfg-2", Path: "b", WorkflowID: "wf"}))
	assert.Len(t, r.List(), 2)

	r.Remove("cfg-1")
	assert.Len(t, r.List(), 1)
	_, err := r.Handle(context.Background(), "a", InboundRequest{})
	assert.ErrorIs(t, err, ErrNoMatch)
}
