// Package compiler turns an authored graph plus a component registry
// snapshot into a content-hashed execution plan, or a structured list of
// errors carrying node/edge coordinates.
package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shipsec/workflow-engine/component"
	"github.com/shipsec/workflow-engine/port"
)

// JoinStrategy is the policy for collecting a fan-out family's outputs.
type JoinStrategy string

const (
	JoinAll   JoinStrategy = "all"
	JoinAny   JoinStrategy = "any"
	JoinFirst JoinStrategy = "first"
)

// NodeConfig is the authored per-node config block: manual input
// overrides, the join strategy applied when this node is the target of a
// fan-out, stream/group correlation ids, and a fan-out concurrency bound.
type NodeConfig struct {
	InputOverrides map[string]port.Value `json:"inputOverrides,omitempty"`
	JoinStrategy   JoinStrategy          `json:"joinStrategy,omitempty"`
	StreamID       string                `json:"streamId,omitempty"`
	GroupID        string                `json:"groupId,omitempty"`
	MaxConcurrency int                   `json:"maxConcurrency,omitempty"`
}

// NodeSpec is a single authored node: a component reference plus static
// parameter values and its config block.
type NodeSpec struct {
	ID     string                `json:"id"`
	Def    string                `json:"componentId"`
	Params map[string]port.Value `json:"params,omitempty"`
	Config NodeConfig            `json:"config,omitempty"`
}

// EdgeSpec connects a named output port on one node to a named input port on
// another.
type EdgeSpec struct {
	FromNode string `json:"fromNode"`
	FromPort string `json:"fromPort"`
	ToNode   string `json:"toNode"`
	ToPort   string `json:"toPort"`
}

// Graph is the authored input to Compile: a flat node/edge list as produced
// by the visual editor, with no implicit ordering. Version is the authoring
// version counter; it identifies the draft a plan was compiled from but does
// not enter the content hash, so recommitting an unchanged graph stays
// idempotent.
type Graph struct {
	Nodes   []NodeSpec `json:"nodes"`
	Edges   []EdgeSpec `json:"edges"`
	Version int        `json:"version,omitempty"`
}

// CompileError carries the node/edge coordinates of a single rejection, so
// the editor can highlight the offending element.
type CompileError struct {
	NodeID  string `json:"nodeId"`
	EdgeIdx int    `json:"edgeIdx"` // -1 when the error is node-scoped rather than edge-scoped
	Message string `json:"message"`
}

func (e *CompileError) Error() string {
	if e.EdgeIdx >= 0 {
		return fmt.Sprintf("edge[%d] (node %s): %s", e.EdgeIdx, e.NodeID, e.Message)
	}
	return fmt.Sprintf("node %s: %s", e.NodeID, e.Message)
}

// Plan is the compiler's output: a resolved, topologically ordered,
// content-addressed execution plan.
type Plan struct {
	Hash       string                  `json:"hash"`
	Order      []string                `json:"order"` // topological order, ties broken by node id
	Nodes      map[string]CompiledNode `json:"nodes"`
	Edges      []EdgeSpec              `json:"edges"`
	EntryNodes []string                `json:"entryNodes"`
}

// CompiledNode is a node's effective shape after dynamic port resolution,
// bound to its static parameters, config block, and the retry policy the
// engine interprets for it (copied out of the component definition so a run
// never depends on the live registry).
type CompiledNode struct {
	ID      string                `json:"id"`
	Def     string                `json:"componentId"`
	Params  map[string]port.Value `json:"params,omitempty"`
	Config  NodeConfig            `json:"config,omitempty"`
	Inputs  []component.PortDef   `json:"inputs"`
	Outputs []component.PortDef   `json:"outputs"`
	Retry   component.RetryPolicy `json:"retry"`
}

// Compile runs the five-stage pipeline: node resolution, parameter
// validation, edge validation, cycle detection, and plan emission. It
// returns every error it finds rather than stopping at the first, so the
// editor can surface them all at once.
func Compile(g Graph, components *component.Registry, ports *port.Registry) (*Plan, []*CompileError) {
	var errs []*CompileError

	compiled := make(map[string]CompiledNode, len(g.Nodes))
	for _, n := range g.Nodes {
		def, ok := components.Get(n.Def)
		if !ok {
			errs = append(errs, &CompileError{NodeID: n.ID, EdgeIdx: -1, Message: fmt.Sprintf("unknown component %q", n.Def)})
			continue
		}
		eff, err := component.ResolveDynamicPorts(def, n.Params)
		if err != nil {
			errs = append(errs, &CompileError{NodeID: n.ID, EdgeIdx: -1, Message: err.Error()})
			continue
		}
		if def.Params != nil {
			if err := def.Params.Validate(n.Params); err != nil {
				errs = append(errs, &CompileError{NodeID: n.ID, EdgeIdx: -1, Message: "parameter validation: " + err.Error()})
				continue
			}
		}
		switch n.Config.JoinStrategy {
		case "", JoinAll, JoinAny, JoinFirst:
		default:
			errs = append(errs, &CompileError{NodeID: n.ID, EdgeIdx: -1, Message: fmt.Sprintf("unknown join strategy %q", n.Config.JoinStrategy)})
			continue
		}
		compiled[n.ID] = CompiledNode{
			ID:      n.ID,
			Def:     n.Def,
			Params:  n.Params,
			Config:  n.Config,
			Inputs:  eff.Inputs,
			Outputs: eff.Outputs,
			Retry:   def.Retry,
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	targetsSeen := make(map[string]bool) // "nodeID.portID" -> already has a single-arity edge
	for i, e := range g.Edges {
		from, ok := compiled[e.FromNode]
		if !ok {
			errs = append(errs, &CompileError{NodeID: e.FromNode, EdgeIdx: i, Message: "edge source node not found"})
			continue
		}
		to, ok := compiled[e.ToNode]
		if !ok {
			errs = append(errs, &CompileError{NodeID: e.ToNode, EdgeIdx: i, Message: "edge target node not found"})
			continue
		}
		srcPort, ok := findPort(from.Outputs, e.FromPort)
		if !ok {
			errs = append(errs, &CompileError{NodeID: e.FromNode, EdgeIdx: i, Message: fmt.Sprintf("output port %q not found", e.FromPort)})
			continue
		}
		dstPort, ok := findPort(to.Inputs, e.ToPort)
		if !ok {
			errs = append(errs, &CompileError{NodeID: e.ToNode, EdgeIdx: i, Message: fmt.Sprintf("input port %q not found", e.ToPort)})
			continue
		}

		// A scalar-declared input fed by a list[T] output fans out at
		// runtime; compatibility there is checked against the fan-out
		// element type, not the list itself. The mirror case — a scalar
		// output feeding a list[T] input — is the join edge downstream of a
		// fan-out and is checked against the element type too.
		effectiveSrc := srcPort.Type
		effectiveDst := dstPort.Type
		if srcPort.Type.Kind() == port.KindList && dstPort.Type.Kind() != port.KindList {
			if elem, ok := srcPort.Type.Elem(); ok {
				effectiveSrc = elem
			}
		}
		if srcPort.Type.Kind() != port.KindList && dstPort.Type.Kind() == port.KindList {
			if elem, ok := dstPort.Type.Elem(); ok {
				effectiveDst = elem
			}
		}
		if !ports.Compatible(effectiveSrc, effectiveDst) {
			errs = append(errs, &CompileError{NodeID: e.ToNode, EdgeIdx: i, Message: fmt.Sprintf(
				"port type mismatch: %s -> %s", port.Describe(srcPort.Type), port.Describe(dstPort.Type))})
			continue
		}

		key := e.ToNode + "." + e.ToPort
		if targetsSeen[key] && !dstPort.Multiplicity {
			errs = append(errs, &CompileError{NodeID: e.ToNode, EdgeIdx: i, Message: fmt.Sprintf(
				"input %q already has an edge and is not multi-arity", e.ToPort)})
			continue
		}
		targetsSeen[key] = true
	}
	if len(errs) > 0 {
		return nil, errs
	}

	adj := make(map[string][]string, len(compiled))
	indegree := make(map[string]int, len(compiled))
	for id := range compiled {
		indegree[id] = 0
	}
	for _, e := range g.Edges {
		adj[e.FromNode] = append(adj[e.FromNode], e.ToNode)
		indegree[e.ToNode]++
	}

	if cyc := findCycle(compiled, adj); cyc != "" {
		errs = append(errs, &CompileError{NodeID: cyc, EdgeIdx: -1, Message: "cycle detected in dataflow graph"})
		return nil, errs
	}

	var entry []string
	for id := range compiled {
		if indegree[id] == 0 {
			entry = append(entry, id)
		}
	}
	sort.Strings(entry)
	if len(entry) == 0 {
		return nil, []*CompileError{{NodeID: "", EdgeIdx: -1, Message: "graph has no entry nodes (every node has an incoming edge)"}}
	}

	order := topologicalOrder(compiled, adj, indegree)

	plan := &Plan{
		Order:      order,
		Nodes:      compiled,
		Edges:      append([]EdgeSpec(nil), g.Edges...),
		EntryNodes: entry,
	}
	plan.Hash = hashPlan(plan)
	return plan, nil
}

func findPort(ports []component.PortDef, id string) (component.PortDef, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return component.PortDef{}, false
}

// findCycle runs a recursive DFS with white/gray/black colouring, returning the
// id of a node found on a back-edge, or "" if the graph is acyclic.
func findCycle(nodes map[string]CompiledNode, adj map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))

	var ids []string
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			switch color[next] {
			case gray:
				return next
			case white:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, id := range ids {
		if color[id] == white {
			if c := visit(id); c != "" {
				return c
			}
		}
	}
	return ""
}

// topologicalOrder computes a Kahn's-algorithm ordering with ties broken
// by node id, so recompilation is deterministic.
func topologicalOrder(nodes map[string]CompiledNode, adj map[string][]string, indegree map[string]int) []string {
	remaining := make(map[string]int, len(indegree))
	for k, v := range indegree {
		remaining[k] = v
	}

	var ready []string
	for id, deg := range remaining {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			remaining[next]--
			if remaining[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order
}

// hashPlan computes the content hash of a normalized plan: sorted node ids,
// sorted edges, port tables, and parameter values. Recompiling an unchanged
// graph must yield an identical hash, so every input is sorted before
// marshaling — map iteration order must never leak into the digest.
func hashPlan(p *Plan) string {
	type normalizedNode struct {
		ID      string                `json:"id"`
		Def     string                `json:"def"`
		Params  map[string]port.Value `json:"params"`
		Config  NodeConfig            `json:"config"`
		Inputs  []component.PortDef   `json:"inputs"`
		Outputs []component.PortDef   `json:"outputs"`
		Retry   component.RetryPolicy `json:"retry"`
	}
	nodeIDs := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	normNodes := make([]normalizedNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		n := p.Nodes[id]
		inputs := append([]component.PortDef(nil), n.Inputs...)
		outputs := append([]component.PortDef(nil), n.Outputs...)
		sort.Slice(inputs, func(i, j int) bool { return inputs[i].ID < inputs[j].ID })
		sort.Slice(outputs, func(i, j int) bool { return outputs[i].ID < outputs[j].ID })
		normNodes = append(normNodes, normalizedNode{ID: id, Def: n.Def, Params: n.Params, Config: n.Config, Inputs: inputs, Outputs: outputs, Retry: n.Retry})
	}

	edges := append([]EdgeSpec(nil), p.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromNode != edges[j].FromNode {
			return edges[i].FromNode < edges[j].FromNode
		}
		if edges[i].FromPort != edges[j].FromPort {
			return edges[i].FromPort < edges[j].FromPort
		}
		if edges[i].ToNode != edges[j].ToNode {
			return edges[i].ToNode < edges[j].ToNode
		}
		return edges[i].ToPort < edges[j].ToPort
	})

	payload := struct {
		Nodes []normalizedNode `json:"nodes"`
		Edges []EdgeSpec       `json:"edges"`
	}{Nodes: normNodes, Edges: edges}

	b, err := json.Marshal(payload)
	if err != nil {
		// Values are constrained to the tagged port.Value union, which always
		// marshals; a failure here indicates a construction bug upstream.
		panic(fmt.Sprintf("compiler: normalized plan failed to marshal: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
