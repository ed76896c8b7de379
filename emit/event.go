package emit

// EventType classifies an execution event so sinks can route without
// parsing Msg.
type EventType string

const (
	// EventTransition marks a durable run/node state transition: run
	// started, node running, node succeeded, suspension created, and so on.
	EventTransition EventType = "transition"
	// EventProgress carries a component's emitProgress text.
	EventProgress EventType = "progress"
	// EventLog carries a structured log line routed through a component's
	// logger capability.
	EventLog EventType = "log"
)

// Event is one observability record from a run: state transitions, node
// progress, retries, suspensions, checkpoints. Events flow to an Emitter,
// which may log them, trace them, retain them for the logs API, or stage
// them in the store's outbox.
type Event struct {
	// RunID identifies the run that produced this event.
	RunID string

	// Step is the run's durable checkpoint cursor at emission time. Zero
	// for events emitted outside a transition (e.g. progress ticks).
	Step int

	// NodeID is the node this event concerns; empty for run-level events.
	NodeID string

	// Type routes the event; see the EventType constants.
	Type EventType

	// Msg is a short human-readable description ("node running",
	// "suspension created", ...).
	Msg string

	// Meta holds event-specific structured data. Common keys: "attempt",
	// "error", "kind", "delay_ms", "suspension_id", "children",
	// "strategy", "trigger", "plan_hash".
	Meta map[string]interface{}
}
