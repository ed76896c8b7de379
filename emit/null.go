package emit

import "context"

// NullEmitter discards every event. Useful as a default when observability
// is not wired and in benchmarks that must exclude emission cost.
type NullEmitter struct{}

// NewNullEmitter returns an Emitter that drops everything.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event) {}

func (n *NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (n *NullEmitter) Flush(context.Context) error { return nil }
