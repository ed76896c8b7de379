package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shipsec/workflow-engine/errs"
)

// Restore reloads a run's most recent durable snapshot after a process
// restart. Terminal runs come back as-is; an interrupted run
// comes back ready to hand to Resume. Nodes that were RUNNING or WAITING
// when the process died have lost their dispatch, so they are reset for a
// fresh attempt — Resume charges that attempt against the retry budget.
func (e *Engine) Restore(ctx context.Context, runID string) (*Run, error) {
	snapshot, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("engine: restoring run %s: %w", runID, err)
	}
	var run Run
	if err := json.Unmarshal(snapshot, &run); err != nil {
		return nil, fmt.Errorf("engine: decoding run snapshot: %w", err)
	}
	return &run, nil
}

// Resume continues an interrupted, non-terminal run to completion. It
// reconstructs the in-memory scheduling state from the durable record:
// delivered edge values are replayed from terminal nodes' outputs, parked
// suspensions stay parked (their timers re-armed), and interrupted
// dispatches become fresh attempts within the retry budget. Like Start it
// blocks for the run's remaining lifetime.
func (e *Engine) Resume(ctx context.Context, run *Run) error {
	if isRunTerminal(run.Status) {
		return nil
	}
	rs := e.register(ctx, run)
	defer e.unregister(run.ID, rs)

	run.Status = RunRunning
	if hasPendingSuspension(run) {
		run.Status = RunAwaitingInput
	}
	e.event(rs, "", "run resumed", nil)
	e.checkpoint(run, "run-resumed")

	for id := range run.Plan.Nodes {
		rs.remaining[id] = len(inEdges(run.Plan, id))
	}

	// Interrupted dispatches: the invocation may or may not have happened,
	// so it is re-run as a fresh attempt, charged against the retry
	// budget.
	for _, ns := range run.NodeStates {
		if ns.Status == NodeRunning || ns.Status == NodeWaiting {
			node := run.Plan.Nodes[ns.NodeID]
			if ns.Attempt >= node.Retry.MaxAttempts {
				ns.Status = NodeError
				ns.LastError = &errs.NodeError{NodeID: ns.NodeID, Kind: errs.Internal, Message: "dispatch lost with retry budget exhausted"}
				if run.FirstFailure == nil {
					run.FirstFailure = ns.LastError
				}
				continue
			}
			ns.Status = NodeIdle
		}
	}

	// Replay delivered values: every successful node's outputs flow along
	// its out-edges again, and skipped nodes re-mask their cones.
	// scheduleReady skips nodes already terminal or awaiting input, so the
	// replay only re-enqueues genuinely unfinished work; re-delivering a
	// completed transition is a no-op beyond that. Failed nodes mask
	// nothing, same as live execution: their downstream stays idle and the
	// run fails at quiescence.
	for _, nodeID := range run.Plan.Order {
		ns := run.NodeStates[nodeID]
		switch ns.Status {
		case NodeSuccess:
			e.advance(rs, nodeID, ns.Output)
		case NodeSkipped:
			e.maskOutEdges(rs, nodeID)
		}
	}
	for _, nodeID := range run.Plan.EntryNodes {
		if run.NodeStates[nodeID].Status == NodeIdle {
			e.seedEntry(rs, nodeID)
		}
	}

	for _, susp := range run.Suspensions {
		if susp.Status == SuspensionPending && susp.TimeoutAt != nil {
			e.armSuspensionTimer(rs, susp.ID, time.Until(*susp.TimeoutAt))
		}
	}

	return e.schedulerLoop(rs)
}
