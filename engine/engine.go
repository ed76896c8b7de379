package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shipsec/workflow-engine/artifact"
	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/emit"
	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
	"github.com/shipsec/workflow-engine/runtime"
	"github.com/shipsec/workflow-engine/store"
)

// Options configures an Engine instance.
type Options struct {
	// MaxConcurrency bounds the number of node invocations running at once
	// across the whole engine. Zero means unbounded.
	MaxConcurrency int
	// QueueDepth bounds each run's Frontier; Enqueue blocks past this depth.
	QueueDepth int
	// DefaultNodeTimeout bounds every node invocation. A runner that honours
	// a component's own timeoutSeconds applies it inside this bound, so the
	// shorter of the two wins.
	DefaultNodeTimeout time.Duration
	// CancelGracePeriod is how long the engine waits for cooperative
	// termination after signalling cancellation before forcing outstanding
	// nodes to a cancelled error state. Default 30s.
	CancelGracePeriod time.Duration
	Metrics           *PrometheusMetrics

	// Capability wiring handed to every invocation; components reach the
	// logger, secrets, and artifact sinks only through their capability
	// struct, never process-global singletons. Artifacts is re-scoped per
	// run so a component's uploads carry the owning run id.
	Logger    runtime.Logger
	Secrets   runtime.Secrets
	Artifacts artifact.Store
	TenantID  string
}

func (o Options) withDefaults() Options {
	if o.QueueDepth <= 0 {
		o.QueueDepth = 1024
	}
	if o.DefaultNodeTimeout <= 0 {
		o.DefaultNodeTimeout = 5 * time.Minute
	}
	if o.CancelGracePeriod <= 0 {
		o.CancelGracePeriod = 30 * time.Second
	}
	return o
}

// Engine advances runs through compiled plans. One Engine instance typically
// backs an entire process; each Run is driven by its own scheduler loop
// (goroutine) so runs never share mutable state with each other.
type Engine struct {
	components *component.Registry
	ports      *port.Registry
	runners    map[component.RunnerKind]runtime.Runner
	store      store.Store
	emitter    emit.Emitter
	opts       Options

	sem chan struct{} // engine-wide worker slots, nil if unbounded

	mu   sync.Mutex
	runs map[string]*runState
}

// runState is the engine's live, in-memory view of a run while its
// scheduler goroutine is active. All fields except frontier and resume are
// owned by the scheduler goroutine; workers communicate through channels
// only, never shared mutable state.
type runState struct {
	run      *Run
	frontier *Frontier
	runCtx   context.Context
	cancel   context.CancelFunc
	rng      *rand.Rand
	resume   chan resumeMsg

	fan        map[string]*fanGroup             // target node id -> in-flight fan-out
	delivered  map[string]map[string]port.Value // node id -> port id -> delivered edge value
	deliveredN map[string]int                   // node id -> count of delivered (non-masked) in-edges
	remaining  map[string]int                   // node id -> in-edges not yet delivered or masked
	nodeSems   map[string]chan struct{}         // per-node fan-out concurrency, from NodeConfig.MaxConcurrency
	runSem     chan struct{}                    // per-run concurrency, from Run.MaxConcurrency
}

// resumeMsg is the typed resumption channel's payload: either an external
// resolution attempt (reply non-nil) or an internal timeout expiry (expire
// true, no reply).
type resumeMsg struct {
	suspensionID string
	token        string
	payload      ResolutionPayload
	expire       bool
	reply        chan error
}

// fanGroup tracks one node's in-flight fan-out family. Results are indexed
// by FanOutIndex so an `all` join delivers them downstream in source order
// regardless of completion order. ctx/cancel cover every child; `any` and
// `first` joins cancel the remaining siblings through it before delivering.
type fanGroup struct {
	strategy  compiler.JoinStrategy
	total     int
	results   []map[string]port.Value
	remaining int
	successes int
	firstErr  *errs.NodeError
	delivered bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New constructs an Engine bound to the given registries, runner dispatch
// table, store, and emitter.
func New(components *component.Registry, ports *port.Registry, runners map[component.RunnerKind]runtime.Runner, st store.Store, emitter emit.Emitter, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		components: components,
		ports:      ports,
		runners:    runners,
		store:      st,
		emitter:    emitter,
		opts:       opts,
		runs:       make(map[string]*runState),
	}
	if opts.MaxConcurrency > 0 {
		e.sem = make(chan struct{}, opts.MaxConcurrency)
	}
	return e
}

// NewRun materializes a fresh Run bound to plan and persists its PENDING
// snapshot, so a status poll racing the scheduler's first checkpoint still
// finds it. It does not start execution; adjust MaxConcurrency/Deadline if
// needed, then call Start.
func (e *Engine) NewRun(plan *compiler.Plan, trigger TriggerKind, inputs map[string]port.Value) *Run {
	run := &Run{
		ID:            uuid.NewString(),
		PlanHash:      plan.Hash,
		Plan:          plan,
		Status:        RunPending,
		RuntimeInputs: inputs,
		NodeStates:    make(map[string]*NodeState),
		Suspensions:   make(map[string]*Suspension),
		Trigger:       trigger,
		CreatedAt:     timeNow(),
	}
	for id := range plan.Nodes {
		run.NodeStates[id] = &NodeState{NodeID: id, Status: NodeIdle}
	}
	if snapshot, err := json.Marshal(run); err == nil {
		_ = e.store.SaveRun(context.Background(), snapshot, run.ID)
	}
	return run
}

// timeNow is a seam for deterministic tests; production callers get
// time.Now.
var timeNow = time.Now

// Start begins executing run until it reaches a terminal status, blocking
// for the run's whole lifetime (including any parked AWAITING_INPUT
// stretches, during which the scheduler goroutine idles on the resumption
// channel). Callers that need the run id immediately start it on its own
// goroutine.
func (e *Engine) Start(ctx context.Context, run *Run) error {
	rs := e.register(ctx, run)
	defer e.unregister(run.ID, rs)

	run.Status = RunRunning
	e.event(rs, "", "run started", map[string]interface{}{"trigger": string(run.Trigger), "plan_hash": run.PlanHash})
	e.checkpoint(run, "run-started")

	for id := range run.Plan.Nodes {
		rs.remaining[id] = len(inEdges(run.Plan, id))
	}
	for _, nodeID := range run.Plan.EntryNodes {
		e.seedEntry(rs, nodeID)
	}
	return e.schedulerLoop(rs)
}

// register installs the run's live state under the engine's run table and
// derives its cancellable context.
func (e *Engine) register(ctx context.Context, run *Run) *runState {
	var runCtx context.Context
	var cancel context.CancelFunc
	if run.Deadline != nil {
		runCtx, cancel = context.WithDeadline(ctx, *run.Deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	rs := &runState{
		run:        run,
		frontier:   NewFrontier(e.opts.QueueDepth),
		cancel:     cancel,
		rng:        initRNG(run.ID),
		resume:     make(chan resumeMsg),
		fan:        make(map[string]*fanGroup),
		delivered:  make(map[string]map[string]port.Value),
		deliveredN: make(map[string]int),
		remaining:  make(map[string]int),
		nodeSems:   make(map[string]chan struct{}),
	}
	if run.MaxConcurrency > 0 {
		rs.runSem = make(chan struct{}, run.MaxConcurrency)
	}
	rs.runCtx = runCtx

	e.mu.Lock()
	e.runs[run.ID] = rs
	e.mu.Unlock()
	return rs
}

func (e *Engine) unregister(runID string, rs *runState) {
	e.mu.Lock()
	delete(e.runs, runID)
	e.mu.Unlock()
	rs.cancel()
}

// seedEntry hands an entry node its slice of the run's runtime inputs and
// schedules it.
func (e *Engine) seedEntry(rs *runState, nodeID string) {
	node := rs.run.Plan.Nodes[nodeID]
	vals := make(map[string]port.Value)
	for _, in := range node.Inputs {
		if v, ok := rs.run.RuntimeInputs[in.ID]; ok {
			vals[in.ID] = v
		}
	}
	rs.delivered[nodeID] = vals
	rs.deliveredN[nodeID] = len(vals)
	e.scheduleReady(rs, nodeID)
}

// Cancel requests cooperative cancellation of an in-flight run. It is a
// no-op if the run is not currently tracked; cancelling a COMPLETED run
// changes nothing.
func (e *Engine) Cancel(runID string) {
	e.mu.Lock()
	rs, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return
	}
	rs.cancel()
}

// GetRun returns a run's most recent durable snapshot. The engine
// checkpoints on every state transition, so the snapshot is never more than
// one transition behind the live scheduler — and unlike the live *Run it is
// safe to read (and marshal into an HTTP response) without racing the
// scheduler goroutine.
func (e *Engine) GetRun(ctx context.Context, runID string) (*Run, error) {
	snapshot, err := e.store.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	var run Run
	if err := json.Unmarshal(snapshot, &run); err != nil {
		return nil, fmt.Errorf("engine: decoding run snapshot: %w", err)
	}
	return &run, nil
}

func initRNG(runID string) *rand.Rand {
	h := sha256.Sum256([]byte(runID))
	seed := int64(binary.BigEndian.Uint64(h[:8])) // #nosec G115 -- deterministic seeding, not security-sensitive
	return rand.New(rand.NewSource(seed))
}

// nodeResult is what a worker goroutine reports back to the scheduler loop.
type nodeResult struct {
	item     WorkItem
	outputs  map[string]port.Value
	pending  *runtime.PendingResult
	err      error
	dropped  bool // a cancelled fan-out sibling whose result is discarded
	duration time.Duration
}

// schedulerLoop is the single goroutine that owns rs.run's mutable state: it
// pulls ready work, dispatches it onto worker goroutines, and folds results
// and resumption messages back in as they arrive.
func (e *Engine) schedulerLoop(rs *runState) error {
	ctx := rs.runCtx
	results := make(chan nodeResult, 64)
	inFlight := 0
	var wg sync.WaitGroup

	for {
		if isRunTerminal(rs.run.Status) {
			wg.Wait()
			return nil
		}

		// Fold in anything already completed before dispatching more.
		select {
		case res := <-results:
			inFlight--
			e.handleResult(rs, res)
			continue
		case msg := <-rs.resume:
			e.handleResume(rs, msg)
			continue
		case <-ctx.Done():
			e.drainCancelled(rs, &wg, results, inFlight)
			return nil
		default:
		}

		if rs.frontier.Len() > 0 {
			item, err := rs.frontier.Dequeue(ctx)
			if err != nil {
				continue
			}
			invokeCtx := ctx
			if item.FanChild {
				group, ok := rs.fan[item.NodeID]
				if !ok || group.delivered {
					continue // stale child of an already-joined fan-out
				}
				invokeCtx = group.ctx
			}
			ns := rs.run.NodeStates[item.NodeID]
			ns.Status = NodeRunning
			ns.Started = timeNow()
			ns.Attempt = item.Attempt
			e.event(rs, item.NodeID, "node running", map[string]interface{}{"attempt": item.Attempt})
			e.checkpoint(rs.run, "node-running")
			if m := e.opts.Metrics; m != nil {
				m.StepCount.Inc()
				m.ActiveNodes.Inc()
			}

			if m := e.opts.Metrics; m != nil {
				m.QueueDepth.Set(float64(rs.frontier.Len()))
			}
			// Semaphores are resolved here, on the scheduler goroutine, so
			// workers never read the per-node sem map concurrently with a
			// fan-out registering a new entry.
			sems := []chan struct{}{e.sem, rs.runSem, rs.nodeSems[item.NodeID]}
			inFlight++
			wg.Add(1)
			go e.worker(invokeCtx, rs, item, sems, results, &wg)
			continue
		}

		if inFlight == 0 {
			// A node waiting on a retry timer has nothing queued yet: idle
			// until the timer enqueues its next attempt instead of finishing.
			retryPending := false
			for id, ns := range rs.run.NodeStates {
				g, fanned := rs.fan[id]
				retryPending = retryPending || ns.Status == NodeWaiting || (fanned && !g.delivered)
			}
			if retryPending {
				select {
				case msg := <-rs.resume:
					e.handleResume(rs, msg)
				case <-ctx.Done():
				case <-time.After(10 * time.Millisecond):
				}
				continue
			}
			if hasPendingSuspension(rs.run) {
				if rs.run.Status != RunAwaitingInput {
					rs.run.Status = RunAwaitingInput
					e.event(rs, "", "run awaiting input", nil)
					e.checkpoint(rs.run, "run-awaiting-input")
				}
				select {
				case msg := <-rs.resume:
					e.handleResume(rs, msg)
				case <-ctx.Done():
					e.drainCancelled(rs, &wg, results, inFlight)
					return nil
				}
				continue
			}
			e.finishTerminal(rs)
			wg.Wait()
			return nil
		}

		// Work in flight, nothing queued: block until something changes.
		select {
		case res := <-results:
			inFlight--
			e.handleResult(rs, res)
		case msg := <-rs.resume:
			e.handleResume(rs, msg)
		case <-ctx.Done():
			e.drainCancelled(rs, &wg, results, inFlight)
			return nil
		}
	}
}

// worker runs one node invocation on its own goroutine, bounded by the
// engine-wide, per-run, and per-node concurrency limits. It only reads the
// immutable plan and its WorkItem; every state mutation happens back on the
// scheduler goroutine.
func (e *Engine) worker(ctx context.Context, rs *runState, item WorkItem, sems []chan struct{}, results chan<- nodeResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for _, sem := range sems {
		if sem == nil {
			continue
		}
		select {
		case sem <- struct{}{}:
			defer func(s chan struct{}) { <-s }(sem)
		case <-ctx.Done():
			results <- nodeResult{item: item, dropped: item.FanChild, err: cancelledError(item.NodeID)}
			return
		}
	}
	start := timeNow()
	res := e.invoke(ctx, rs.run, item)
	res.duration = timeNow().Sub(start)
	results <- res
}

func cancelledError(nodeID string) *errs.NodeError {
	return &errs.NodeError{NodeID: nodeID, Kind: errs.Cancelled, Message: "invocation cancelled"}
}

// invoke materializes the invocation request (inputs, params, capabilities,
// runner config) and dispatches it through the runner table.
func (e *Engine) invoke(ctx context.Context, run *Run, item WorkItem) nodeResult {
	node := run.Plan.Nodes[item.NodeID]
	def, ok := e.components.Get(node.Def)
	if !ok {
		return nodeResult{item: item, err: &errs.NodeError{NodeID: item.NodeID, Kind: errs.Internal, Message: "component not found: " + node.Def}}
	}
	runner, ok := e.runners[def.Runner]
	if !ok {
		return nodeResult{item: item, err: &errs.NodeError{NodeID: item.NodeID, Kind: errs.Internal, Message: "no runner registered for " + string(def.Runner)}}
	}

	invokeCtx, cancel := context.WithTimeout(ctx, e.opts.DefaultNodeTimeout)
	defer cancel()

	var artifacts runtime.Artifacts
	if e.opts.Artifacts != nil {
		artifacts = artifact.ForRun(e.opts.Artifacts, run.ID)
	}
	req := runtime.InvocationRequest{
		ComponentID:  node.Def,
		RunID:        run.ID,
		NodeID:       item.NodeID,
		Inputs:       item.Inputs,
		Params:       node.Params,
		RunnerConfig: def.RunnerConfig,
		Capabilities: runtime.Capabilities{
			Logger:    e.opts.Logger,
			Secrets:   e.opts.Secrets,
			Artifacts: artifacts,
			TenantID:  e.opts.TenantID,
			EmitProgress: func(text string) {
				if e.emitter != nil {
					e.emitter.Emit(emit.Event{RunID: run.ID, NodeID: item.NodeID, Type: emit.EventProgress, Msg: text})
				}
			},
		},
	}
	result := runner.Invoke(invokeCtx, req)
	if result.Err == nil && result.Pending == nil && invokeCtx.Err() != nil {
		result.Err = cancelledError(item.NodeID)
	}
	return nodeResult{item: item, outputs: result.Outputs, pending: result.Pending, err: result.Err}
}

// handleResult folds one completed invocation back into the run's state.
func (e *Engine) handleResult(rs *runState, res nodeResult) {
	if m := e.opts.Metrics; m != nil {
		m.ActiveNodes.Dec()
		m.StepLatency.Observe(float64(res.duration.Milliseconds()))
	}
	run := rs.run
	ns := run.NodeStates[res.item.NodeID]

	group, fanned := rs.fan[res.item.NodeID]
	if res.dropped || (res.item.FanChild && !fanned) || (fanned && group.delivered) {
		return // late sibling of an already-joined fan-out
	}

	switch {
	case res.pending != nil:
		e.createSuspension(rs, res.item.NodeID, res.pending)

	case res.err != nil:
		nodeErr := asNodeError(res.item.NodeID, res.err)
		node := run.Plan.Nodes[res.item.NodeID]
		if nodeErr.Kind != errs.Cancelled && shouldRetry(res.item.Attempt, node.Retry, nodeErr) {
			delay := computeBackoff(res.item.Attempt, node.Retry, rs.rng)
			if nodeErr.Kind == errs.RateLimited && nodeErr.RetryAfterSeconds > 0 {
				if suggested := time.Duration(nodeErr.RetryAfterSeconds * float64(time.Second)); suggested > delay {
					delay = suggested
				}
			}
			ns.Status = NodeWaiting
			ns.Scheduled = timeNow().Add(delay)
			e.event(rs, res.item.NodeID, "node retry scheduled", map[string]interface{}{
				"attempt": res.item.Attempt, "delay_ms": delay.Milliseconds(), "error": nodeErr.Message,
			})
			if m := e.opts.Metrics; m != nil {
				m.RetryCount.Inc()
			}
			retry := res.item
			retry.Attempt++
			go func(item WorkItem, d time.Duration) {
				timer := time.NewTimer(d)
				defer timer.Stop()
				select {
				case <-rs.runCtx.Done():
				case <-timer.C:
					_ = rs.frontier.Enqueue(rs.runCtx, item)
				}
			}(retry, delay)
			return
		}
		if fanned {
			e.fanChildFailed(rs, group, res.item, nodeErr)
			return
		}
		e.failNode(rs, res.item.NodeID, nodeErr)

	default:
		if fanned {
			e.fanChildSucceeded(rs, group, res.item, res.outputs)
			return
		}
		e.succeedNode(rs, res.item.NodeID, res.outputs)
	}
}

// failNode marks a node terminally failed and records the run's first
// fatal failure for reporting.
func (e *Engine) failNode(rs *runState, nodeID string, nodeErr *errs.NodeError) {
	ns := rs.run.NodeStates[nodeID]
	ns.Status = NodeError
	ns.LastError = nodeErr
	ns.Finished = timeNow()
	if rs.run.FirstFailure == nil {
		rs.run.FirstFailure = nodeErr
	}
	e.event(rs, nodeID, "node failed", map[string]interface{}{"error": nodeErr.Message, "kind": string(nodeErr.Kind)})
	e.checkpoint(rs.run, "node-terminal")
}

// succeedNode records a node's outputs and advances its downstream edges.
func (e *Engine) succeedNode(rs *runState, nodeID string, outputs map[string]port.Value) {
	ns := rs.run.NodeStates[nodeID]
	ns.Status = NodeSuccess
	ns.Output = outputs
	ns.Finished = timeNow()
	e.event(rs, nodeID, "node succeeded", nil)
	e.checkpoint(rs.run, "node-terminal")
	e.advance(rs, nodeID, outputs)
}

func asNodeError(nodeID string, err error) *errs.NodeError {
	if ne, ok := err.(*errs.NodeError); ok {
		return ne
	}
	return &errs.NodeError{NodeID: nodeID, Kind: errs.Internal, Message: err.Error(), Cause: err}
}

// drainCancelled implements the cooperative-cancellation endgame: the
// context is already cancelled (every invocation sees it), so wait up to
// the grace period for workers to come home, then mark whatever is still
// outstanding cancelled and revoke in-flight suspensions.
func (e *Engine) drainCancelled(rs *runState, wg *sync.WaitGroup, results chan nodeResult, inFlight int) {
	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()
	timer := time.NewTimer(e.opts.CancelGracePeriod)
	defer timer.Stop()

drain:
	for inFlight > 0 {
		select {
		case res := <-results:
			inFlight--
			// Clean completions that beat the grace deadline still count
			// (already-successful nodes keep their results).
			if res.err == nil && res.pending == nil && !res.dropped {
				e.handleResult(rs, res)
			}
		case <-timer.C:
			break drain
		case <-workersDone:
			break drain
		}
	}

	run := rs.run
	for _, ns := range run.NodeStates {
		if ns.Status == NodeRunning || ns.Status == NodeWaiting {
			ns.Status = NodeError
			ns.LastError = cancelledError(ns.NodeID)
			ns.Finished = timeNow()
		}
	}
	for _, s := range run.Suspensions {
		if s.Status == SuspensionPending {
			s.Status = SuspensionCancelled // token revoked; late resolutions fail
		}
	}
	run.Status = RunCancelled
	run.CancelRequested = true
	run.FinishedAt = timeNow()
	e.event(rs, "", "run cancelled", nil)
	e.checkpoint(run, "run-terminal")
	e.flush()
}

func (e *Engine) finishTerminal(rs *runState) {
	run := rs.run
	if run.FirstFailure != nil {
		run.Status = RunFailed
		e.event(rs, "", "run failed", map[string]interface{}{"error": run.FirstFailure.Error()})
	} else {
		run.Status = RunCompleted
		e.event(rs, "", "run completed", nil)
	}
	run.FinishedAt = timeNow()
	e.checkpoint(run, "run-terminal")
	e.flush()
}

func (e *Engine) flush() {
	if e.emitter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.emitter.Flush(ctx)
}

func isRunTerminal(s RunStatus) bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	default:
		return false
	}
}

func isTerminalNodeStatus(s NodeStatus) bool {
	switch s {
	case NodeSuccess, NodeError, NodeSkipped:
		return true
	default:
		return false
	}
}

func hasPendingSuspension(run *Run) bool {
	for _, s := range run.Suspensions {
		if s.Status == SuspensionPending {
			return true
		}
	}
	return false
}

// event records one observability event on the run's durable step cursor.
func (e *Engine) event(rs *runState, nodeID, msg string, meta map[string]interface{}) {
	rs.run.Step++
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(emit.Event{
		RunID:  rs.run.ID,
		Step:   rs.run.Step,
		NodeID: nodeID,
		Type:   emit.EventTransition,
		Msg:    msg,
		Meta:   meta,
	})
}

// checkpoint writes a durable snapshot after a state transition. The
// idempotency key is a SHA-256 over the run id, the step cursor, and the
// transition label, so replaying a completed transition is a no-op at the
// store. Checkpoint writes are serialized per run by construction: only
// the scheduler goroutine calls this.
func (e *Engine) checkpoint(run *Run, label string) {
	snapshot, err := json.Marshal(run)
	if err != nil {
		return
	}
	_ = e.store.SaveCheckpoint(context.Background(), store.Checkpoint{
		RunID:          run.ID,
		StepID:         run.Step,
		Label:          label,
		RunSnapshot:    snapshot,
		IdempotencyKey: idempotencyKey(run.ID, run.Step, label),
		Timestamp:      timeNow(),
	})
	_ = e.store.SaveRun(context.Background(), snapshot, run.ID)
}

func idempotencyKey(runID string, step int, label string) string {
	h := sha256.New()
	h.Write([]byte(runID))
	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(step)) // #nosec G115 -- step cursor is non-negative
	h.Write(stepBytes)
	h.Write([]byte(label))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func inEdges(plan *compiler.Plan, nodeID string) []int {
	var idx []int
	for i, ed := range plan.Edges {
		if ed.ToNode == nodeID {
			idx = append(idx, i)
		}
	}
	return idx
}

func outEdges(plan *compiler.Plan, nodeID string) []int {
	var idx []int
	for i, ed := range plan.Edges {
		if ed.FromNode == nodeID {
			idx = append(idx, i)
		}
	}
	return idx
}

func findPortDef(defs []component.PortDef, id string) (component.PortDef, bool) {
	for _, d := range defs {
		if d.ID == id {
			return d, true
		}
	}
	return component.PortDef{}, false
}
