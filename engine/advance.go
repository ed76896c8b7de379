package engine

import (
	"context"
	"fmt"

	"github.com/shipsec/workflow-engine/compiler"
	"github.com/shipsec/workflow-engine/errs"
	"github.com/shipsec/workflow-engine/port"
)

// advance pushes a node's outputs along its outgoing edges. Each edge either
// delivers a (possibly coerced) value to its target input or, for the
// unchosen side of a branching output, masks the edge so the downstream
// dependency count still converges.
func (e *Engine) advance(rs *runState, nodeID string, outputs map[string]port.Value) {
	plan := rs.run.Plan
	srcNode := plan.Nodes[nodeID]
	for _, edgeIdx := range outEdges(plan, nodeID) {
		ed := plan.Edges[edgeIdx]
		srcPort, _ := findPortDef(srcNode.Outputs, ed.FromPort)
		val, ok := outputs[ed.FromPort]
		if !ok {
			if srcPort.IsBranching {
				e.maskEdge(rs, edgeIdx)
				continue
			}
			// A non-branching output the component didn't produce delivers
			// null, so a partially-populated result never deadlocks its
			// consumers.
			val = port.NullValue()
		}
		e.deliver(rs, edgeIdx, srcPort.Type, val)
	}
}

// deliver records one edge's value on its target node, coercing it per the
// declared §4.1 rules, and schedules the target once every in-edge has
// either delivered or been masked.
func (e *Engine) deliver(rs *runState, edgeIdx int, srcType port.Type, val port.Value) {
	plan := rs.run.Plan
	ed := plan.Edges[edgeIdx]
	dstNode := plan.Nodes[ed.ToNode]
	dstPort, _ := findPortDef(dstNode.Inputs, ed.ToPort)

	coerced, err := e.coerceForEdge(srcType, dstPort.Type, val)
	if err != nil {
		e.failNode(rs, ed.ToNode, &errs.NodeError{NodeID: ed.ToNode, Kind: errs.Validation, Message: err.Error(), Cause: err})
		e.maskOutEdges(rs, ed.ToNode)
		return
	}

	vals := rs.delivered[ed.ToNode]
	if vals == nil {
		vals = make(map[string]port.Value)
		rs.delivered[ed.ToNode] = vals
	}
	if existing, ok := vals[ed.ToPort]; ok && dstPort.Multiplicity {
		if existing.List != nil {
			existing.List = append(existing.List, coerced)
			vals[ed.ToPort] = existing
		} else {
			vals[ed.ToPort] = port.ListValue([]port.Value{existing, coerced})
		}
	} else {
		vals[ed.ToPort] = coerced
	}
	rs.deliveredN[ed.ToNode]++
	rs.remaining[ed.ToNode]--
	if rs.remaining[ed.ToNode] == 0 {
		e.scheduleReady(rs, ed.ToNode)
	}
}

// coerceForEdge applies the runtime half of §4.1's asymmetric coercions. A
// list arriving at a scalar input is the fan-out case: each element is
// coerced to the scalar target type and the list is re-wrapped, to be split
// at scheduling time.
func (e *Engine) coerceForEdge(srcType, dstType port.Type, val port.Value) (port.Value, error) {
	if port.Equals(srcType, dstType) || dstType.IsAny() || srcType.IsAny() {
		return val, nil
	}
	if srcType.Kind() == port.KindList && dstType.Kind() != port.KindList {
		elemType, _ := srcType.Elem()
		out := make([]port.Value, len(val.List))
		for i, elem := range val.List {
			cv, err := e.ports.Coerce(elem, elemType, dstType)
			if err != nil {
				return port.Value{}, fmt.Errorf("fan-out element %d: %w", i, err)
			}
			out[i] = cv
		}
		return port.ListValue(out), nil
	}
	if srcType.Kind() != port.KindList && dstType.Kind() == port.KindList {
		// The join edge downstream of a fan-out: the scalar-declared output
		// carries the family's aggregated list. A genuinely scalar value is
		// wrapped as a singleton instead.
		elemType, _ := dstType.Elem()
		if val.List != nil {
			out := make([]port.Value, len(val.List))
			for i, elem := range val.List {
				cv, err := e.ports.Coerce(elem, srcType, elemType)
				if err != nil {
					return port.Value{}, fmt.Errorf("join element %d: %w", i, err)
				}
				out[i] = cv
			}
			return port.ListValue(out), nil
		}
		cv, err := e.ports.Coerce(val, srcType, elemType)
		if err != nil {
			return port.Value{}, err
		}
		return port.ListValue([]port.Value{cv}), nil
	}
	return e.ports.Coerce(val, srcType, dstType)
}

// maskEdge marks one in-edge as never going to deliver. A target whose every
// in-edge is masked is skipped transitively; a target left with at least one
// delivered value still runs on what it has.
func (e *Engine) maskEdge(rs *runState, edgeIdx int) {
	ed := rs.run.Plan.Edges[edgeIdx]
	rs.remaining[ed.ToNode]--
	if rs.remaining[ed.ToNode] != 0 {
		return
	}
	if rs.deliveredN[ed.ToNode] == 0 {
		e.skipNode(rs, ed.ToNode)
		return
	}
	e.scheduleReady(rs, ed.ToNode)
}

// skipNode marks a node SKIPPED and masks its whole downstream cone.
func (e *Engine) skipNode(rs *runState, nodeID string) {
	ns := rs.run.NodeStates[nodeID]
	if isTerminalNodeStatus(ns.Status) {
		return
	}
	ns.Status = NodeSkipped
	ns.Finished = timeNow()
	e.event(rs, nodeID, "node skipped", nil)
	e.checkpoint(rs.run, "node-terminal")
	e.maskOutEdges(rs, nodeID)
}

func (e *Engine) maskOutEdges(rs *runState, nodeID string) {
	for _, edgeIdx := range outEdges(rs.run.Plan, nodeID) {
		e.maskEdge(rs, edgeIdx)
	}
}

// scheduleReady materializes a node's effective inputs (delivered edge
// values combined with manual overrides per valuePriority) and enqueues it.
// When a list has arrived at a scalar-declared input, the node fans out
// into one child invocation per element instead.
func (e *Engine) scheduleReady(rs *runState, nodeID string) {
	ns := rs.run.NodeStates[nodeID]
	if isTerminalNodeStatus(ns.Status) || ns.Status == NodeAwaitingInput {
		return
	}
	node := rs.run.Plan.Nodes[nodeID]
	inputs := materializeInputs(node, rs.delivered[nodeID])

	fanPort := ""
	var elements []port.Value
	for _, in := range node.Inputs {
		v, ok := inputs[in.ID]
		if !ok {
			continue
		}
		if v.List != nil && in.Type.Kind() != port.KindList && !in.Type.IsAny() {
			fanPort = in.ID
			elements = v.List
			break
		}
	}

	if fanPort == "" {
		e.enqueueItem(rs, WorkItem{
			NodeID:   nodeID,
			Attempt:  ns.Attempt + 1,
			Inputs:   inputs,
			OrderKey: ComputeOrderKey(nodeID, 0),
		})
		return
	}
	e.fanOut(rs, nodeID, node, fanPort, elements, inputs)
}

// enqueueItem pushes a work item and flips the node to WAITING. Only the
// scheduler goroutine calls this; retry timers go through the frontier
// directly and leave status writes to the dispatch path.
func (e *Engine) enqueueItem(rs *runState, item WorkItem) {
	ns := rs.run.NodeStates[item.NodeID]
	ns.Status = NodeWaiting
	ns.Scheduled = timeNow()
	e.checkpoint(rs.run, "node-ready")
	if err := rs.frontier.Enqueue(rs.runCtx, item); err != nil {
		return // run context cancelled; the scheduler loop will wind down
	}
}

// materializeInputs combines delivered edge values with the node's manual
// input overrides under each port's declared valuePriority: for
// manual-first, a manually supplied value overrides an inbound edge.
func materializeInputs(node compiler.CompiledNode, delivered map[string]port.Value) map[string]port.Value {
	out := make(map[string]port.Value, len(node.Inputs))
	for _, in := range node.Inputs {
		edgeVal, hasEdge := delivered[in.ID]
		manual, hasManual := node.Config.InputOverrides[in.ID]
		switch {
		case in.ValuePriority == port.ManualFirst && hasManual:
			out[in.ID] = manual
		case hasEdge:
			out[in.ID] = edgeVal
		case hasManual:
			out[in.ID] = manual
		}
	}
	return out
}

// fanOut spawns one child invocation per element, registering a fanGroup
// so the node's joinStrategy can collect the family's results.
// Children share every input except the fanned port, which carries their
// element.
func (e *Engine) fanOut(rs *runState, nodeID string, node compiler.CompiledNode, fanPort string, elements []port.Value, shared map[string]port.Value) {
	strategy := node.Config.JoinStrategy
	if strategy == "" {
		strategy = compiler.JoinAll
	}

	if len(elements) == 0 {
		// Zero children: an `all` join yields the empty list; `any` and
		// `first` signal no-result and the downstream is skipped.
		if strategy == compiler.JoinAll {
			outputs := make(map[string]port.Value, len(node.Outputs))
			for _, out := range node.Outputs {
				outputs[out.ID] = port.ListValue([]port.Value{})
			}
			e.succeedNode(rs, nodeID, outputs)
			return
		}
		e.skipNode(rs, nodeID)
		return
	}

	groupCtx, cancel := context.WithCancel(rs.runCtx)
	rs.fan[nodeID] = &fanGroup{
		strategy:  strategy,
		total:     len(elements),
		results:   make([]map[string]port.Value, len(elements)),
		remaining: len(elements),
		ctx:       groupCtx,
		cancel:    cancel,
	}
	if node.Config.MaxConcurrency > 0 && rs.nodeSems[nodeID] == nil {
		rs.nodeSems[nodeID] = make(chan struct{}, node.Config.MaxConcurrency)
	}

	ns := rs.run.NodeStates[nodeID]
	ns.Status = NodeWaiting
	ns.Scheduled = timeNow()
	e.event(rs, nodeID, "fan-out", map[string]interface{}{"children": len(elements), "strategy": string(strategy)})

	for i, elem := range elements {
		childInputs := make(map[string]port.Value, len(shared))
		for k, v := range shared {
			childInputs[k] = v
		}
		childInputs[fanPort] = elem
		item := WorkItem{
			NodeID:      nodeID,
			Attempt:     1,
			Inputs:      childInputs,
			FanChild:    true,
			FanOutIndex: i,
			OrderKey:    ComputeOrderKey(nodeID, i),
		}
		if err := rs.frontier.Enqueue(rs.runCtx, item); err != nil {
			return
		}
	}
}

// fanChildSucceeded records one child's result and delivers the join once
// its strategy's completion condition holds.
func (e *Engine) fanChildSucceeded(rs *runState, group *fanGroup, item WorkItem, outputs map[string]port.Value) {
	group.results[item.FanOutIndex] = outputs
	group.remaining--
	group.successes++

	switch group.strategy {
	case compiler.JoinAny, compiler.JoinFirst:
		// Siblings are cancelled before the result is emitted.
		group.cancel()
		e.deliverJoin(rs, item.NodeID, group, []map[string]port.Value{outputs}, false)
	case compiler.JoinAll:
		if group.remaining == 0 {
			e.deliverJoin(rs, item.NodeID, group, group.results, true)
		}
	}
}

// fanChildFailed folds a child's post-retry failure into the join: `all`
// fails the whole family on the first child failure, `first` delivers the
// failure if it came first, and `any` fails only once every child has
// failed — a family with a surviving candidate never fails the run.
func (e *Engine) fanChildFailed(rs *runState, group *fanGroup, item WorkItem, nodeErr *errs.NodeError) {
	group.remaining--
	if group.firstErr == nil {
		group.firstErr = nodeErr
	}

	switch group.strategy {
	case compiler.JoinAll, compiler.JoinFirst:
		group.delivered = true
		group.cancel()
		delete(rs.fan, item.NodeID)
		e.failNode(rs, item.NodeID, nodeErr)
		e.maskOutEdges(rs, item.NodeID)
	case compiler.JoinAny:
		if group.remaining == 0 && group.successes == 0 {
			group.delivered = true
			group.cancel()
			delete(rs.fan, item.NodeID)
			e.failNode(rs, item.NodeID, group.firstErr)
			e.maskOutEdges(rs, item.NodeID)
		}
	}
}

// deliverJoin merges per-child output maps into list-valued outputs (one
// list per output port id, in source order) for an `all` join, or unwraps
// the single winning child for `any`/`first`, then resumes normal
// advancement from the fanned node.
func (e *Engine) deliverJoin(rs *runState, nodeID string, group *fanGroup, perChild []map[string]port.Value, asList bool) {
	group.delivered = true
	delete(rs.fan, nodeID)

	var merged map[string]port.Value
	if !asList {
		merged = perChild[0]
	} else {
		merged = make(map[string]port.Value)
		portIDs := make(map[string]bool)
		for _, m := range perChild {
			for k := range m {
				portIDs[k] = true
			}
		}
		for portID := range portIDs {
			list := make([]port.Value, len(perChild))
			for i, m := range perChild {
				list[i] = m[portID]
			}
			merged[portID] = port.ListValue(list)
		}
	}
	e.succeedNode(rs, nodeID, merged)
}
