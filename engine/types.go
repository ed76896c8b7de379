// Package engine implements the durable execution engine (C4): it advances
// a run through a compiled plan node-by-node with dependency-ready
// scheduling, fan-out/join, retries, cancellation, suspension and
// resumption, and checkpointed durability.
package engine

import (
	"time"

	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
)

// RunStatus is the lifecycle state of a single run.
type RunStatus string

const (
	RunPending       RunStatus = "PENDING"
	RunRunning       RunStatus = "RUNNING"
	RunCompleted     RunStatus = "COMPLETED"
	RunFailed        RunStatus = "FAILED"
	RunCancelled     RunStatus = "CANCELLED"
	RunAwaitingInput RunStatus = "AWAITING_INPUT"
)

// NodeStatus is the lifecycle state of a single node within a run.
type NodeStatus string

const (
	NodeIdle          NodeStatus = "idle"
	NodeRunning       NodeStatus = "running"
	NodeSuccess       NodeStatus = "success"
	NodeError         NodeStatus = "error"
	NodeWaiting       NodeStatus = "waiting"
	NodeAwaitingInput NodeStatus = "awaiting_input"
	NodeSkipped       NodeStatus = "skipped"
)

// TriggerKind names how a run was started.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerSchedule TriggerKind = "schedule"
	TriggerAPI      TriggerKind = "api"
	TriggerWebhook  TriggerKind = "webhook"
)

// SuspensionStatus is the lifecycle state of a suspension record.
type SuspensionStatus string

const (
	SuspensionPending   SuspensionStatus = "pending"
	SuspensionResolved  SuspensionStatus = "resolved"
	SuspensionExpired   SuspensionStatus = "expired"
	SuspensionCancelled SuspensionStatus = "cancelled"
)

// SuspensionKind names the shape of input a suspended node is waiting on.
type SuspensionKind string

const (
	SuspensionApproval SuspensionKind = "approval"
	SuspensionForm     SuspensionKind = "form"
	SuspensionTimer    SuspensionKind = "timer"
	SuspensionWebhook  SuspensionKind = "webhook"
)

// NodeState is the per-node state record carried in a Run.
type NodeState struct {
	NodeID    string
	Status    NodeStatus
	Attempt   int
	Scheduled time.Time
	Started   time.Time
	Finished  time.Time
	LastError *errs.NodeError
	Output    map[string]port.Value
}

// Suspension is a parked work item awaiting external resolution.
// ResolutionToken is single-use and compared in constant time by the
// resolution path.
type Suspension struct {
	ID              string
	RunID           string
	NodeID          string
	Kind            SuspensionKind
	Status          SuspensionStatus
	Title           string
	Description     string
	ContextData     map[string]port.Value
	InputSchema     string // contract name the resolution payload must satisfy, for "form" kind
	TimeoutAt       *time.Time
	ResolutionToken string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

// Run is a single execution instance bound to one plan version/hash.
type Run struct {
	ID              string
	PlanHash        string
	Plan            *compiler.Plan
	Status          RunStatus
	RuntimeInputs   map[string]port.Value
	NodeStates      map[string]*NodeState
	Suspensions     map[string]*Suspension
	Trigger         TriggerKind
	CreatedAt       time.Time
	FinishedAt      time.Time
	FirstFailure    *errs.NodeError
	CancelRequested bool
	// Step is the durable checkpoint cursor: it increments once per
	// recorded state transition, so replaying a checkpoint stream can tell
	// a stale snapshot from a fresh one.
	Step int
	// MaxConcurrency bounds this run's simultaneously dispatched nodes;
	// zero means unbounded.
	MaxConcurrency int
	// Deadline, when set, cancels the run wholesale once reached.
	Deadline *time.Time
}

// ResolutionPayload is supplied on a `/humanInputs/{id}/resolve` call.
// For "approval" kind, Approved/ResponseNote are used; for "form" kind,
// Fields carries the input-schema-validated payload.
type ResolutionPayload struct {
	Approved     bool
	ResponseNote string
	Fields       map[string]port.Value
}
