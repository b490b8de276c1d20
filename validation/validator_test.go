package validation

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/songzhibin97/xflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLinearFlow returns start(1) -> end(2).
func newLinearFlow() types.Flow {
	f := types.NewFlow()
	f.Nodes = []types.Node{
		{ID: 1, Kind: types.KindFlow, Label: "Start", Action: types.ActionStart},
		{ID: 2, Kind: types.KindFlow, Label: "End", Action: types.ActionEnd},
	}
	f.Edges = []types.Edge{{From: 1, To: 2}}
	return f
}

// newBranchingFlow returns start(1) -> check(2) -> ok(3) | fail(4), guarded on "approved".
func newBranchingFlow() types.Flow {
	f := types.NewFlow()
	f.Variables.Input = []types.VariableDefinition{{Name: "approved", Type: types.ValueTypeBoolean}}
	f.Variables.Local = []types.Variable{{Name: "attempts", Type: types.ValueTypeInteger, Value: types.IntegerValue(0)}}
	f.Variables.Output = []types.VariableDefinition{{Name: "status", Type: types.ValueTypeString}}
	f.Nodes = []types.Node{
		{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
		{ID: 2, Kind: "call", Action: "check", Parameters: map[string]interface{}{"service": "review"}},
		{ID: 3, Kind: types.KindFlow, Action: types.ActionEnd},
		{ID: 4, Kind: types.KindFlow, Action: types.ActionEnd},
	}
	f.Edges = []types.Edge{{From: 1, To: 2}, {From: 2, To: 3}, {From: 2, To: 4}}
	f.Branches = []types.Branch{
		{Edge: types.Edge{From: 2, To: 3}, Variable: types.Variable{Name: "approved", Type: types.ValueTypeBoolean, Value: types.BooleanValue(true)}},
		{Edge: types.Edge{From: 2, To: 4}, Variable: types.Variable{Name: "approved", Type: types.ValueTypeBoolean, Value: types.BooleanValue(false)}},
	}
	return f
}

func TestValidateEmptyFlow(t *testing.T) {
	f := types.NewFlow()
	report := New().Validate(&f)

	assert.False(t, report.Valid())
	assert.Equal(t, []Kind{KindNoEntryNode, KindNoTerminalNode}, report.Kinds())
	assert.ErrorIs(t, report.Err(), types.ErrNoEntryNode)
	assert.ErrorIs(t, report.Err(), types.ErrNoTerminalNode)
}

func TestValidateNilFlow(t *testing.T) {
	report := New().Validate(nil)
	assert.Equal(t, []Kind{KindNoEntryNode, KindNoTerminalNode}, report.Kinds())
}

func TestValidateLinearFlow(t *testing.T) {
	t.Run("Clean", func(t *testing.T) {
		f := newLinearFlow()
		report := New().Validate(&f)
		assert.True(t, report.Valid(), report.String())
		assert.NoError(t, report.Err())
		assert.Equal(t, "valid", report.String())
	})

	t.Run("RemovedTerminalKeepsEdge", func(t *testing.T) {
		f := newLinearFlow()
		f.Nodes = f.Nodes[:1]

		report := New().Validate(&f)
		require.Equal(t, []Kind{KindDanglingEdgeEndpoint, KindNoTerminalNode}, report.Kinds())

		dangling := report.Violations[0]
		assert.Equal(t, 2, dangling.NodeID)
		assert.Equal(t, 1, dangling.Invariant)
		require.NotNil(t, dangling.Edge)
		assert.Equal(t, types.Edge{From: 1, To: 2}, *dangling.Edge)
		assert.ErrorIs(t, dangling, ErrDanglingEdgeEndpoint)
	})
}

func TestValidateBranchingFlow(t *testing.T) {
	f := newBranchingFlow()
	report := New().Validate(&f)
	assert.True(t, report.Valid(), report.String())
}

func TestValidateIntegerGuardBounds(t *testing.T) {
	for _, n := range []int64{math.MinInt64, math.MaxInt64} {
		f := newBranchingFlow()
		f.Branches = append(f.Branches, types.Branch{
			Edge:     types.Edge{From: 2, To: 4},
			Variable: types.Variable{Name: "attempts", Type: types.ValueTypeInteger, Value: types.IntegerValue(n)},
		})
		report := New().Validate(&f)
		assert.True(t, report.Valid(), report.String())
	}
}

func TestValidateCollectsEverything(t *testing.T) {
	f := types.NewFlow()
	f.Nodes = []types.Node{
		{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
		{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
	}
	f.Edges = []types.Edge{{From: 1, To: 9}}
	f.Branches = []types.Branch{{
		Edge:     types.Edge{From: 8, To: 1},
		Variable: types.Variable{Name: "ghost", Type: types.ValueTypeString, Value: types.IntegerValue(1)},
	}}

	report := New().Validate(&f)
	assert.Equal(t, []Kind{
		KindDanglingEdgeEndpoint, // 1 is ambiguous
		KindDanglingEdgeEndpoint, // 9 is unknown
		KindDanglingBranchEdge,   // 8 is unknown
		KindDanglingBranchEdge,   // 1 is ambiguous
		KindDuplicateNodeID,
		KindMultipleEntryNodes,
		KindNoTerminalNode,
		KindUndeclaredVariable,
		KindValueTypeMismatch,
	}, report.Kinds())

	for _, v := range report.Violations {
		assert.NotEmpty(t, v.Error())
	}
	assert.ErrorIs(t, report.Err(), ErrDuplicateNodeID)
	assert.ErrorIs(t, report.Err(), types.ErrMultipleEntryNodes)
}

func TestEdgesHaveNodes(t *testing.T) {
	f := newLinearFlow()
	f.Edges = append(f.Edges, types.Edge{From: 7, To: 8}, types.Edge{From: 1, To: 2})

	violations := EdgesHaveNodes(&f)
	require.Len(t, violations, 2)
	assert.Equal(t, 7, violations[0].NodeID)
	assert.Equal(t, 8, violations[1].NodeID)
	assert.Same(t, &f.Edges[1], violations[0].Edge, "violations point at the offending edge")
}

func TestBranchesHaveEdges(t *testing.T) {
	f := newBranchingFlow()
	f.Branches[1].Edge = types.Edge{From: 2, To: 40}

	violations := BranchesHaveEdges(&f)
	require.Len(t, violations, 1)
	assert.Equal(t, KindDanglingBranchEdge, violations[0].Kind)
	assert.Equal(t, 40, violations[0].NodeID)
	assert.Equal(t, 2, violations[0].Invariant)
	assert.Same(t, &f.Branches[1], violations[0].Branch)
	assert.True(t, errors.Is(violations[0], ErrDanglingBranchEdge))
}

func TestUniqueNodeIDs(t *testing.T) {
	f := newLinearFlow()
	f.Nodes = append(f.Nodes,
		types.Node{ID: 5, Kind: "call"},
		types.Node{ID: 5, Kind: "call"},
		types.Node{ID: 5, Kind: "call"},
		types.Node{ID: 1, Kind: "call"},
	)

	violations := UniqueNodeIDs(&f)
	require.Len(t, violations, 2, "each duplicated id is reported once")
	assert.Equal(t, 1, violations[0].NodeID)
	assert.Equal(t, 5, violations[1].NodeID)
	assert.Equal(t, 5, violations[1].Invariant)
}

func TestSingleEntryAndHasTerminal(t *testing.T) {
	tests := []struct {
		name  string
		nodes []types.Node
		want  []Kind
	}{
		{
			name:  "no nodes",
			nodes: nil,
			want:  []Kind{KindNoEntryNode, KindNoTerminalNode},
		},
		{
			name: "two starts and one end",
			nodes: []types.Node{
				{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
				{ID: 2, Kind: types.KindFlow, Action: types.ActionStart},
				{ID: 3, Kind: types.KindFlow, Action: types.ActionEnd},
			},
			want: []Kind{KindMultipleEntryNodes},
		},
		{
			name: "start only",
			nodes: []types.Node{
				{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
			},
			want: []Kind{KindNoTerminalNode},
		},
		{
			name: "wrong kind does not count",
			nodes: []types.Node{
				{ID: 1, Kind: "call", Action: types.ActionStart},
				{ID: 2, Kind: types.KindFlow, Action: types.ActionEnd},
			},
			want: []Kind{KindNoEntryNode},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := types.NewFlow()
			f.Nodes = tt.nodes
			var got []Kind
			for _, v := range append(SingleEntry(&f), HasTerminal(&f)...) {
				got = append(got, v.Kind)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReachability(t *testing.T) {
	t.Run("UnreachableNodes", func(t *testing.T) {
		f := newBranchingFlow()
		f.Nodes = append(f.Nodes,
			types.Node{ID: 5, Kind: "call", Action: "orphan"},
			types.Node{ID: 6, Kind: types.KindFlow, Action: types.ActionEnd},
		)
		f.Edges = append(f.Edges, types.Edge{From: 5, To: 6})

		violations := Reachability(&f)
		require.Len(t, violations, 2)
		assert.Equal(t, KindUnreachableNode, violations[0].Kind)
		assert.Equal(t, 5, violations[0].NodeID)
		assert.Equal(t, 6, violations[1].NodeID)
		assert.Equal(t, 6, violations[1].Invariant)
	})

	t.Run("NoReachableTerminal", func(t *testing.T) {
		f := types.NewFlow()
		f.Nodes = []types.Node{
			{ID: 1, Kind: types.KindFlow, Action: types.ActionStart},
			{ID: 2, Kind: "call", Action: "loop"},
			{ID: 3, Kind: types.KindFlow, Action: types.ActionEnd},
		}
		f.Edges = []types.Edge{{From: 1, To: 2}, {From: 2, To: 1}}

		report := New().Validate(&f)
		assert.Equal(t, []Kind{KindUnreachableNode, KindNoReachableTerminal}, report.Kinds())
		assert.ErrorIs(t, report.Err(), ErrNoReachableTerminal)
	})

	t.Run("CyclesTerminate", func(t *testing.T) {
		f := newLinearFlow()
		f.Nodes = append(f.Nodes, types.Node{ID: 3, Kind: "call"})
		f.Edges = []types.Edge{{From: 1, To: 3}, {From: 3, To: 1}, {From: 3, To: 3}, {From: 3, To: 2}}
		assert.Empty(t, Reachability(&f))
	})

	t.Run("DuplicateTargetIsStillReached", func(t *testing.T) {
		f := newLinearFlow()
		f.Nodes = append(f.Nodes, types.Node{ID: 2, Kind: "call"})
		assert.Empty(t, Reachability(&f))
	})

	t.Run("SkippedWithoutEntry", func(t *testing.T) {
		f := newLinearFlow()
		f.Nodes[0].Action = "begin"
		assert.Empty(t, Reachability(&f))
	})

	t.Run("CanBeSkipped", func(t *testing.T) {
		f := newLinearFlow()
		f.Nodes = append(f.Nodes, types.Node{ID: 3, Kind: "call"})
		assert.Equal(t, []Kind{KindUnreachableNode}, New().Validate(&f).Kinds())
		assert.True(t, New(SkipChecks(CheckReachability)).Validate(&f).Valid())
	})
}

func TestVariableChecks(t *testing.T) {
	t.Run("Undeclared", func(t *testing.T) {
		f := newBranchingFlow()
		f.Branches[0].Variable.Name = "approval"

		violations := VariablesDeclared(&f)
		require.Len(t, violations, 1)
		assert.Equal(t, "approval", violations[0].Variable)
		assert.Equal(t, 0, violations[0].Invariant)
		assert.ErrorIs(t, violations[0], ErrUndeclaredVariable)
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		f := newBranchingFlow()
		f.Variables.Local[0].Value = types.StringValue("0")
		f.Variables.Output[0].Type = types.ValueType("text")
		f.Branches[1].Variable.Value = types.IntegerValue(0)

		violations := VariableTypes(&f)
		require.Len(t, violations, 3)
		assert.Equal(t, "attempts", violations[0].Variable)
		assert.Equal(t, "status", violations[1].Variable)
		assert.Equal(t, "approved", violations[2].Variable)
		assert.Same(t, &f.Branches[1], violations[2].Branch)
	})

	t.Run("GuardAgainstDeclaredType", func(t *testing.T) {
		f := newBranchingFlow()
		// consistent with itself, but "approved" is declared boolean
		f.Branches[0].Variable = types.Variable{Name: "approved", Type: types.ValueTypeString, Value: types.StringValue("yes")}

		report := New().Validate(&f)
		assert.Equal(t, []Kind{KindInvalidGuard}, report.Kinds())
		assert.ErrorIs(t, report.Err(), ErrInvalidGuard)
	})

	t.Run("GuardWithUnusableName", func(t *testing.T) {
		f := newBranchingFlow()
		f.Variables.Local = append(f.Variables.Local, types.Variable{Name: "retry-count", Type: types.ValueTypeInteger, Value: types.IntegerValue(1)})
		f.Branches[0].Variable = types.Variable{Name: "retry-count", Type: types.ValueTypeInteger, Value: types.IntegerValue(2)}

		assert.Equal(t, []Kind{KindInvalidGuard}, New().Validate(&f).Kinds())
	})
}

func TestValidateDocument(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		doc := types.NewFlowDocument()
		doc.Flow = newBranchingFlow()
		doc.Flow.Requirements = []types.Requirement{{Kind: "http", Version: 2}}
		report := New().ValidateDocument(&doc)
		assert.True(t, report.Valid(), report.String())
	})

	t.Run("EnvelopeFirst", func(t *testing.T) {
		doc := types.NewFlowDocument()
		doc.DocumentType = ""
		doc.Version = 0
		doc.Flow = newLinearFlow()
		doc.Flow.Requirements = []types.Requirement{{Kind: "", Version: 1}}

		report := New().ValidateDocument(&doc)
		require.Equal(t, []Kind{KindInvalidDocument, KindInvalidDocument, KindInvalidDocument}, report.Kinds())
		assert.Equal(t, "FlowDocument.DocumentType", report.Violations[0].Field)
		assert.Equal(t, "FlowDocument.Version", report.Violations[1].Field)
		assert.Equal(t, "FlowDocument.Flow.Requirements[0].Kind", report.Violations[2].Field)
		assert.ErrorIs(t, report.Err(), ErrInvalidDocument)
	})

	t.Run("Nil", func(t *testing.T) {
		report := New().ValidateDocument(nil)
		assert.Equal(t, []Kind{KindInvalidDocument}, report.Kinds())
	})
}

func TestCustomChecks(t *testing.T) {
	noLoops := Check{
		Name: "no-self-loops",
		Run: func(f *types.Flow) []*Violation {
			var out []*Violation
			for i := range f.Edges {
				if f.Edges[i].From == f.Edges[i].To {
					out = append(out, &Violation{Kind: "self_loop", Edge: &f.Edges[i], Msg: "self loop"})
				}
			}
			return out
		},
	}

	f := newLinearFlow()
	f.Edges = append(f.Edges, types.Edge{From: 2, To: 2})

	report := New(WithChecks(noLoops)).Validate(&f)
	require.Equal(t, []Kind{"self_loop"}, report.Kinds())
	assert.Equal(t, "self_loop: self loop", report.Violations[0].Error())
	assert.Nil(t, errors.Unwrap(report.Violations[0]))

	assert.True(t, New(WithChecks(noLoops), SkipChecks("no-self-loops")).Validate(&f).Valid())
}

func TestValidateDoesNotMutate(t *testing.T) {
	f := newBranchingFlow()
	f.Nodes = append(f.Nodes, types.Node{ID: 4, Kind: "call"})
	before := newBranchingFlow()
	before.Nodes = append(before.Nodes, types.Node{ID: 4, Kind: "call"})

	New().Validate(&f)
	assert.Equal(t, before, f)
}

func TestValidateConcurrently(t *testing.T) {
	f := newBranchingFlow()
	v := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, v.Validate(&f).Valid())
		}()
	}
	wg.Wait()
}

func TestReportCount(t *testing.T) {
	f := newLinearFlow()
	f.Edges = append(f.Edges, types.Edge{From: 10, To: 11})
	report := New().Validate(&f)
	assert.Equal(t, 2, report.Count(KindDanglingEdgeEndpoint))
	assert.Equal(t, 0, report.Count(KindNoEntryNode))
}

func TestCheckNames(t *testing.T) {
	v := New()
	names := make([]string, 0, len(v.checks))
	for _, c := range v.checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, CheckNames(), names)
}
