package validation

import (
	"errors"
	"fmt"

	"github.com/songzhibin97/xflow/rules"
	"github.com/songzhibin97/xflow/types"
)

// EdgesHaveNodes reports every edge endpoint that does not resolve to a
// single node.
func EdgesHaveNodes(f *types.Flow) []*Violation {
	var violations []*Violation
	for i := range f.Edges {
		edge := &f.Edges[i]
		for _, id := range danglingEndpoints(f, *edge) {
			violations = append(violations, &Violation{
				Kind:      KindDanglingEdgeEndpoint,
				Invariant: 1,
				NodeID:    id,
				Edge:      edge,
				Msg:       fmt.Sprintf("edge %s: endpoint %d does not resolve to a single node", edge, id),
			})
		}
	}
	return violations
}

// BranchesHaveEdges reports every branch whose edge has an endpoint that does
// not resolve to a single node.
func BranchesHaveEdges(f *types.Flow) []*Violation {
	var violations []*Violation
	for i := range f.Branches {
		branch := &f.Branches[i]
		for _, id := range danglingEndpoints(f, branch.Edge) {
			violations = append(violations, &Violation{
				Kind:      KindDanglingBranchEdge,
				Invariant: 2,
				NodeID:    id,
				Edge:      &branch.Edge,
				Branch:    branch,
				Msg:       fmt.Sprintf("branch %q on edge %s: endpoint %d does not resolve to a single node", branch.Variable.Name, branch.Edge, id),
			})
		}
	}
	return violations
}

func danglingEndpoints(f *types.Flow, edge types.Edge) []int {
	var ids []int
	if f.NodeByID(edge.From) == nil {
		ids = append(ids, edge.From)
	}
	if f.NodeByID(edge.To) == nil {
		ids = append(ids, edge.To)
	}
	return ids
}

// UniqueNodeIDs reports each id value shared by more than one node, once,
// in order of first appearance.
func UniqueNodeIDs(f *types.Flow) []*Violation {
	var violations []*Violation
	reported := make(map[int]bool)
	for _, node := range f.Nodes {
		// node exists, so a nil lookup means its id is shared.
		if reported[node.ID] || f.NodeByID(node.ID) != nil {
			continue
		}
		reported[node.ID] = true
		violations = append(violations, &Violation{
			Kind:      KindDuplicateNodeID,
			Invariant: 5,
			NodeID:    node.ID,
			Msg:       fmt.Sprintf("node id %d is used more than once", node.ID),
		})
	}
	return violations
}

// SingleEntry reports a missing or ambiguous entry node.
func SingleEntry(f *types.Flow) []*Violation {
	_, err := f.EntryNode()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, types.ErrMultipleEntryNodes):
		return []*Violation{{
			Kind:      KindMultipleEntryNodes,
			Invariant: 3,
			Msg:       fmt.Sprintf("%d nodes are marked %s/%s", len(f.NodesByKindAction(types.KindFlow, types.ActionStart)), types.KindFlow, types.ActionStart),
		}}
	default:
		return []*Violation{{Kind: KindNoEntryNode, Invariant: 3}}
	}
}

// HasTerminal reports a flow without any terminal node.
func HasTerminal(f *types.Flow) []*Violation {
	if _, err := f.TerminalNodes(); err != nil {
		return []*Violation{{Kind: KindNoTerminalNode, Invariant: 4}}
	}
	return nil
}

// Reachability walks outgoing edges from the entry node. It reports every
// node the walk does not reach and, when terminals exist, a flow whose entry
// reaches none of them. Nothing is reported without a unique entry node.
func Reachability(f *types.Flow) []*Violation {
	entry, err := f.EntryNode()
	if err != nil {
		return nil
	}

	reached := map[int]bool{entry.ID: true}
	queue := []int{entry.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, edge := range f.OutgoingEdges(&types.Node{ID: id}) {
			if !reached[edge.To] {
				reached[edge.To] = true
				queue = append(queue, edge.To)
			}
		}
	}

	var violations []*Violation
	for _, node := range f.Nodes {
		if !reached[node.ID] {
			violations = append(violations, &Violation{
				Kind:      KindUnreachableNode,
				Invariant: 6,
				NodeID:    node.ID,
				Msg:       fmt.Sprintf("node %d (%s/%s) cannot be reached from entry node %d", node.ID, node.Kind, node.Action, entry.ID),
			})
		}
	}

	terminals, err := f.TerminalNodes()
	if err != nil {
		return violations
	}
	for _, t := range terminals {
		if reached[t.ID] {
			return violations
		}
	}
	return append(violations, &Violation{
		Kind:      KindNoReachableTerminal,
		Invariant: 6,
		NodeID:    entry.ID,
		Msg:       fmt.Sprintf("no terminal node can be reached from entry node %d", entry.ID),
	})
}

// VariablesDeclared reports branch variables that are not declared in any scope.
func VariablesDeclared(f *types.Flow) []*Violation {
	names := f.AllVariableNames()
	var violations []*Violation
	for i := range f.Branches {
		branch := &f.Branches[i]
		if _, ok := names[branch.Variable.Name]; ok {
			continue
		}
		violations = append(violations, &Violation{
			Kind:     KindUndeclaredVariable,
			Edge:     &branch.Edge,
			Branch:   branch,
			Variable: branch.Variable.Name,
			Msg:      fmt.Sprintf("branch on edge %s references %q", branch.Edge, branch.Variable.Name),
		})
	}
	return violations
}

// VariableTypes reports unknown declared types and bound values whose
// variant differs from their declared type.
func VariableTypes(f *types.Flow) []*Violation {
	var violations []*Violation
	definition := func(scope string, def types.VariableDefinition) {
		if !def.Type.Valid() {
			violations = append(violations, &Violation{
				Kind:     KindValueTypeMismatch,
				Variable: def.Name,
				Msg:      fmt.Sprintf("%s variable %q has unknown type %q", scope, def.Name, def.Type),
			})
		}
	}
	bound := func(scope string, v types.Variable, branch *types.Branch) {
		var msg string
		switch {
		case !v.Type.Valid():
			msg = fmt.Sprintf("%s variable %q has unknown type %q", scope, v.Name, v.Type)
		case !v.Value.Matches(v.Type):
			msg = fmt.Sprintf("%s variable %q is declared %s but holds %s %q", scope, v.Name, v.Type, v.Value.Type(), v.Value)
		default:
			return
		}
		violation := &Violation{Kind: KindValueTypeMismatch, Variable: v.Name, Branch: branch, Msg: msg}
		if branch != nil {
			violation.Edge = &branch.Edge
		}
		violations = append(violations, violation)
	}

	for _, def := range f.Variables.Input {
		definition("input", def)
	}
	for _, v := range f.Variables.Local {
		bound("local", v, nil)
	}
	for _, def := range f.Variables.Output {
		definition("output", def)
	}
	for i := range f.Branches {
		bound("branch", f.Branches[i].Variable, &f.Branches[i])
	}
	return violations
}

// BranchGuards type-checks each branch guard against the flow's declared
// variable types. Undeclared or untyped variables are left to
// VariablesDeclared and VariableTypes.
func BranchGuards(f *types.Flow, evaluator rules.Evaluator) []*Violation {
	names := f.AllVariableNames()
	var violations []*Violation
	for i := range f.Branches {
		branch := &f.Branches[i]
		if _, ok := names[branch.Variable.Name]; !ok {
			continue
		}
		if vt, _ := f.VariableType(branch.Variable.Name); !vt.Valid() {
			continue
		}
		if err := rules.CheckGuard(evaluator, f, branch); err != nil {
			violations = append(violations, &Violation{
				Kind:     KindInvalidGuard,
				Edge:     &branch.Edge,
				Branch:   branch,
				Variable: branch.Variable.Name,
				Msg:      fmt.Sprintf("branch on edge %s: %v", branch.Edge, err),
			})
		}
	}
	return violations
}
