package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsInvalidExpression(t *testing.T) {
	s := New(func(context.Context, Entry) error { return nil })
	err := s.Add(Entry{ID: "bad", Expression: "not a cron line", WorkflowID: "wf"})
	assert.Error(t, err)
}

func TestEntryFires(t *testing.T) {
	fired := make(chan Entry, 4)
	s := New(func(_ context.Context, e Entry) error {
		fired <- e
		return nil
	})
	require.NoError(t, s.Add(Entry{
		ID:         "tick",
		Expression: "@every 100ms",
		WorkflowID: "wf-1",
		Inputs:     map[string]string{"source": "cron"},
	}))
	s.Start()
	defer func() { <-s.Stop().Done() }()

	select {
	case e := <-fired:
		assert.Equal(t, "wf-1", e.WorkflowID)
		assert.Equal(t, "cron", e.Inputs["source"])
	case <-time.After(3 * time.Second):
		t.Fatal("entry never fired")
	}
}

func TestAddReplacesExistingEntry(t *testing.T) {
	fired := make(chan string, 16)
	s := New(func(_ context.Context, e Entry) error {
		fired <- e.WorkflowID
		return nil
	})
	require.NoError(t, s.Add(Entry{ID: "job", Expression: "@every 100ms", WorkflowID: "old"}))
	require.NoError(t, s.Add(Entry{ID: "job", Expression: "@every 100ms", WorkflowID: "new"}))
	s.Start()
	defer func() { <-s.Stop().Done() }()

	select {
	case wf := <-fired:
		assert.Equal(t, "new", wf, "replaced entry must not fire under its old binding")
	case <-time.After(3 * time.Second):
		t.Fatal("entry never fired")
	}
}

func TestRemoveStopsFiring(t *testing.T) {
	fired := make(chan struct{}, 16)
	s := New(func(context.Context, Entry) error {
		fired <- struct{}{}
		return nil
	})
	require.NoError(t, s.Add(Entry{ID: "job", Expression: "@every 50ms", WorkflowID: "wf"}))
	s.Remove("job")
	s.Start()
	defer func() { <-s.Stop().Done() }()

	select {
	case <-fired:
		t.Fatal("removed entry fired")
	case <-time.After(300 * time.Millisecond):
	}
}
