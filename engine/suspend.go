package engine

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
	"github.com/shipsec/workflow-engine/store"
)

// createSuspension parks a node that returned a pending result: a durable
// suspension record with a single-use resolution token, an optional
// wake-up timer, and the node flipped to AWAITING_INPUT.
func (e *Engine) createSuspension(rs *runState, nodeID string, pending *runtime.PendingResult) {
	run := rs.run
	susp := &Suspension{
		ID:              pending.RequestID,
		RunID:           run.ID,
		NodeID:          nodeID,
		Kind:            suspensionKindFromInputType(pending.InputType),
		Status:          SuspensionPending,
		Title:           pending.Title,
		Description:     pending.Description,
		ContextData:     pending.ContextData,
		InputSchema:     pending.InputType,
		ResolutionToken: uuid.NewString(),
		CreatedAt:       timeNow(),
	}
	if susp.ID == "" {
		susp.ID = uuid.NewString()
	}
	if pending.TimeoutAt != nil {
		t := time.Unix(*pending.TimeoutAt, 0)
		susp.TimeoutAt = &t
	}
	run.Suspensions[susp.ID] = susp
	run.NodeStates[nodeID].Status = NodeAwaitingInput

	if record, err := json.Marshal(susp); err == nil {
		_ = e.store.SaveSuspension(context.Background(), run.ID, susp.ID, record)
	}
	e.event(rs, nodeID, "suspension created", map[string]interface{}{"suspension_id": susp.ID, "kind": string(susp.Kind)})
	e.checkpoint(run, "suspension-created")

	if susp.TimeoutAt != nil {
		e.armSuspensionTimer(rs, susp.ID, time.Until(*susp.TimeoutAt))
	}
}

// armSuspensionTimer schedules a timeout expiry to re-enter the scheduler
// through the resumption channel, so expiry shares the single-goroutine
// state-mutation discipline with external resolutions.
func (e *Engine) armSuspensionTimer(rs *runState, suspensionID string, delay time.Duration) {
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-rs.runCtx.Done():
		case <-timer.C:
			select {
			case rs.resume <- resumeMsg{suspensionID: suspensionID, expire: true}:
			case <-rs.runCtx.Done():
			}
		}
	}()
}

// suspensionKindFromInputType maps a component's PendingResult.InputType
// to the suspension taxonomy. Anything outside the three named kinds
// defaults to "form" — a component-declared contract name such as
// "expense-approval.v1" is still a form-shaped input schema.
func suspensionKindFromInputType(inputType string) SuspensionKind {
	switch inputType {
	case "approval":
		return SuspensionApproval
	case "timer":
		return SuspensionTimer
	case "webhook":
		return SuspensionWebhook
	default:
		return SuspensionForm
	}
}

// handleResume processes one message off the typed resumption channel on
// the scheduler goroutine: either a timeout expiry or an external
// resolution attempt.
func (e *Engine) handleResume(rs *runState, msg resumeMsg) {
	if msg.expire {
		e.expireSuspension(rs, msg.suspensionID)
		return
	}
	err := e.applyResolution(rs, msg.suspensionID, msg.token, msg.payload)
	if msg.reply != nil {
		msg.reply <- err
	}
}

func (e *Engine) expireSuspension(rs *runState, suspensionID string) {
	run := rs.run
	susp, ok := run.Suspensions[suspensionID]
	if !ok || susp.Status != SuspensionPending {
		return
	}
	susp.Status = SuspensionExpired
	nodeErr := &errs.NodeError{NodeID: susp.NodeID, Kind: errs.TimedOut, Message: "suspension timed out"}
	if run.Status == RunAwaitingInput {
		run.Status = RunRunning
	}
	e.event(rs, susp.NodeID, "suspension expired", map[string]interface{}{"suspension_id": suspensionID})
	e.failNode(rs, susp.NodeID, nodeErr)
	e.maskOutEdges(rs, susp.NodeID)
}

// applyResolution validates and consumes a resolution: suspension pending,
// token equal under constant-time comparison, payload conforming to the
// declared input schema. On success the payload becomes the node's output
// and downstream scheduling resumes.
func (e *Engine) applyResolution(rs *runState, suspensionID, token string, payload ResolutionPayload) error {
	run := rs.run
	susp, ok := run.Suspensions[suspensionID]
	if !ok {
		return store.ErrNotFound
	}
	if susp.Status != SuspensionPending {
		return store.ErrAlreadyResolved
	}
	if subtle.ConstantTimeCompare([]byte(susp.ResolutionToken), []byte(token)) != 1 {
		return fmt.Errorf("engine: resolution token mismatch")
	}
	if susp.Kind == SuspensionForm && payload.Fields != nil && e.ports.HasContract(susp.InputSchema) {
		if err := e.ports.ValidateContract(susp.InputSchema, port.MapValue(payload.Fields)); err != nil {
			return &errs.NodeError{NodeID: susp.NodeID, Kind: errs.Validation, Message: "resolution payload: " + err.Error(), Cause: err}
		}
	}

	susp.Status = SuspensionResolved
	now := timeNow()
	susp.ResolvedAt = &now
	if record, err := json.Marshal(susp); err == nil {
		_ = e.store.ResolveSuspension(context.Background(), suspensionID, record)
	}

	out := e.resolutionOutputs(run, susp, payload)
	if run.Status == RunAwaitingInput {
		run.Status = RunRunning
	}
	e.event(rs, susp.NodeID, "suspension resolved", map[string]interface{}{"suspension_id": suspensionID})
	e.checkpoint(run, "suspension-resolved")
	e.succeedNode(rs, susp.NodeID, out)
	return nil
}

// resolutionOutputs shapes a resolution payload into the suspended node's
// output map. For an approval gate only the chosen branch's output port is
// populated, so advance() routes to that arm and the masking pass skips
// the other.
func (e *Engine) resolutionOutputs(run *Run, susp *Suspension, payload ResolutionPayload) map[string]port.Value {
	out := map[string]port.Value{}
	switch {
	case susp.Kind == SuspensionApproval:
		node := run.Plan.Nodes[susp.NodeID]
		branch := "rejected"
		if payload.Approved {
			branch = "approved"
		}
		if _, found := findPortDef(node.Outputs, branch); found {
			out[branch] = port.TextValue(payload.ResponseNote)
		} else {
			out["approved"] = port.BoolValue(payload.Approved)
			out["responseNote"] = port.TextValue(payload.ResponseNote)
		}
	case payload.Fields != nil:
		out = payload.Fields
	default:
		out["approved"] = port.BoolValue(payload.Approved)
		out["responseNote"] = port.TextValue(payload.ResponseNote)
	}
	return out
}

// Resolve implements the external half of the resumption protocol: it
// hands (suspensionId, token, payload) to the run's scheduler goroutine
// over the typed resumption channel and waits for the verdict.
func (e *Engine) Resolve(ctx context.Context, runID, suspensionID, token string, payload ResolutionPayload) error {
	e.mu.Lock()
	rs, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return e.resolveInactive(ctx, runID, suspensionID)
	}

	reply := make(chan error, 1)
	msg := resumeMsg{suspensionID: suspensionID, token: token, payload: payload, reply: reply}
	select {
	case rs.resume <- msg:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveInactive reports why a resolution cannot be applied to a run that
// has no live scheduler: resolved suspensions surface AlreadyResolved so a
// re-post after success stays idempotent-by-failure; anything else is an
// error the caller must recover from by resuming the run first.
func (e *Engine) resolveInactive(ctx context.Context, runID, suspensionID string) error {
	snapshot, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("engine: run %s is not active: %w", runID, err)
	}
	var run Run
	if err := json.Unmarshal(snapshot, &run); err != nil {
		return fmt.Errorf("engine: decoding run snapshot: %w", err)
	}
	susp, ok := run.Suspensions[suspensionID]
	if !ok {
		return store.ErrNotFound
	}
	if susp.Status != SuspensionPending {
		return store.ErrAlreadyResolved
	}
	return fmt.Errorf("engine: run %s is not active; resume it before resolving", runID)
}
