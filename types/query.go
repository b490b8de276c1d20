package types

// Query methods never modify the flow. Results point into the flow's own
// slices and keep document order.

// NodesByKindAction returns the nodes whose kind and action both match exactly.
func (f *Flow) NodesByKindAction(kind, action string) []*Node {
	var nodes []*Node
	for i := range f.Nodes {
		if f.Nodes[i].Kind == kind && f.Nodes[i].Action == action {
			nodes = append(nodes, &f.Nodes[i])
		}
	}
	return nodes
}

// NodesByKind returns the nodes whose kind matches exactly.
func (f *Flow) NodesByKind(kind string) []*Node {
	var nodes []*Node
	for i := range f.Nodes {
		if f.Nodes[i].Kind == kind {
			nodes = append(nodes, &f.Nodes[i])
		}
	}
	return nodes
}

// NodeByID returns the node with the given id. It returns nil when no node
// has that id and also when several do, since the match is then ambiguous.
func (f *Flow) NodeByID(id int) *Node {
	var found *Node
	for i := range f.Nodes {
		if f.Nodes[i].ID != id {
			continue
		}
		if found != nil {
			return nil
		}
		found = &f.Nodes[i]
	}
	return found
}

// IncomingEdges returns the edges ending at node.
func (f *Flow) IncomingEdges(node *Node) []*Edge {
	var edges []*Edge
	for i := range f.Edges {
		if f.Edges[i].To == node.ID {
			edges = append(edges, &f.Edges[i])
		}
	}
	return edges
}

// OutgoingEdges returns the edges starting at node.
func (f *Flow) OutgoingEdges(node *Node) []*Edge {
	var edges []*Edge
	for i := range f.Edges {
		if f.Edges[i].From == node.ID {
			edges = append(edges, &f.Edges[i])
		}
	}
	return edges
}

// BranchesForEdge returns the branches attached to an edge with the same endpoints.
func (f *Flow) BranchesForEdge(edge Edge) []*Branch {
	var branches []*Branch
	for i := range f.Branches {
		if f.Branches[i].Edge == edge {
			branches = append(branches, &f.Branches[i])
		}
	}
	return branches
}

// OutgoingBranches returns the branches whose edge starts at nodeID.
func (f *Flow) OutgoingBranches(nodeID int) []*Branch {
	var branches []*Branch
	for i := range f.Branches {
		if f.Branches[i].Edge.From == nodeID {
			branches = append(branches, &f.Branches[i])
		}
	}
	return branches
}

// EntryNode returns the single flow/start node.
func (f *Flow) EntryNode() (*Node, error) {
	nodes := f.NodesByKindAction(KindFlow, ActionStart)
	switch len(nodes) {
	case 0:
		return nil, ErrNoEntryNode
	case 1:
		return nodes[0], nil
	default:
		return nil, ErrMultipleEntryNodes
	}
}

// TerminalNodes returns every flow/end node; at least one must exist.
func (f *Flow) TerminalNodes() ([]*Node, error) {
	nodes := f.NodesByKindAction(KindFlow, ActionEnd)
	if len(nodes) == 0 {
		return nil, ErrNoTerminalNode
	}
	return nodes, nil
}

// AllVariableNames returns the union of input, local and output variable names.
func (f *Flow) AllVariableNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, v := range f.Variables.Input {
		names[v.Name] = struct{}{}
	}
	for _, v := range f.Variables.Local {
		names[v.Name] = struct{}{}
	}
	for _, v := range f.Variables.Output {
		names[v.Name] = struct{}{}
	}
	return names
}

// VariableType looks name up scope by scope (input, local, output) and
// returns the type of the first declaration found.
func (f *Flow) VariableType(name string) (ValueType, bool) {
	for _, v := range f.Variables.Input {
		if v.Name == name {
			return v.Type, true
		}
	}
	for _, v := range f.Variables.Local {
		if v.Name == name {
			return v.Type, true
		}
	}
	for _, v := range f.Variables.Output {
		if v.Name == name {
			return v.Type, true
		}
	}
	return "", false
}
