// Package logging builds the process-wide structured logger:
// level/format configuration over github.com/sirupsen/logrus, text format
// for local development and JSON for anything scraped by a log pipeline.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/shipsec/workflow-engine/emit"
)

// Config carries the logger settings exposed through SHIPSEC_*;
// caller-info and custom time formats are left to logrus defaults.
type Config struct {
	Level  string // "debug" | "info" | "warn" | "error"
	Format string // "json" | "text"
}

// New constructs a *logrus.Logger per cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// EventLogger adapts a *logrus.Logger into an emit.Emitter, so structured
// run events flow through the same sink as the rest of the process's
// logs.
type EventLogger struct {
	Logger *logrus.Logger
}

var _ emit.Emitter = (*EventLogger)(nil)

// Emit implements emit.Emitter.
func (l *EventLogger) Emit(event emit.Event) {
	fields := logrus.Fields{"run_id": event.RunID, "step": event.Step, "type": string(event.Type)}
	if event.NodeID != "" {
		fields["node_id"] = event.NodeID
	}
	for k, v := range event.Meta {
		fields[k] = v
	}
	l.Logger.WithFields(fields).Info(event.Msg)
}

// EmitBatch implements emit.Emitter.
func (l *EventLogger) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

// Flush implements emit.Emitter; logrus writes synchronously.
func (l *EventLogger) Flush(context.Context) error { return nil }
