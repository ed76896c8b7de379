package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipsec/workflow-engine/emit"
)

func TestNewAppliesLevelAndFormat(t *testing.T) {
	logger := New(Config{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = New(Config{Level: "nonsense", Format: "text"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel(), "bad level falls back to info")
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestEventLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json"})
	logger.SetOutput(&buf)

	el := &EventLogger{Logger: logger}
	el.Emit(emit.Event{
		RunID:  "run-1",
		Step:   7,
		NodeID: "scan",
		Type:   emit.EventTransition,
		Msg:    "node running",
		Meta:   map[string]interface{}{"attempt": 2},
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, float64(7), line["step"])
	assert.Equal(t, "scan", line["node_id"])
	assert.Equal(t, "transition", line["type"])
	assert.Equal(t, "node running", line["msg"])
	assert.Equal(t, float64(2), line["attempt"])
}

func TestEventLoggerBatchAndFlush(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Format: "json"})
	logger.SetOutput(&buf)
	el := &EventLogger{Logger: logger}

	events := []emit.Event{
		{RunID: "r", Step: 1, Msg: "one"},
		{RunID: "r", Step: 2, Msg: "two"},
	}
	require.NoError(t, el.EmitBatch(context.Background(), events))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.NoError(t, el.Flush(context.Background()))
}
