package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/songzhibin97/xflow/types"
)

// Kind identifies the rule a Violation breaks.
type Kind string

const (
	KindNoEntryNode          Kind = "no_entry_node"
	KindMultipleEntryNodes   Kind = "multiple_entry_nodes"
	KindNoTerminalNode       Kind = "no_terminal_node"
	KindDanglingEdgeEndpoint Kind = "dangling_edge_endpoint"
	KindDanglingBranchEdge   Kind = "dangling_branch_edge"
	KindDuplicateNodeID      Kind = "duplicate_node_id"
	KindUnreachableNode      Kind = "unreachable_node"
	KindNoReachableTerminal  Kind = "no_reachable_terminal"
	KindUndeclaredVariable   Kind = "undeclared_variable"
	KindValueTypeMismatch    Kind = "value_type_mismatch"
	KindInvalidGuard         Kind = "invalid_guard"
	KindInvalidDocument      Kind = "invalid_document"
)

// Sentinel errors for programmatic checking via errors.Is(). Entry and
// terminal violations unwrap to the types package sentinels.
var (
	ErrDanglingEdgeEndpoint = errors.New("edge endpoint references unknown node")
	ErrDanglingBranchEdge   = errors.New("branch edge references unknown node")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrUnreachableNode      = errors.New("node is unreachable from the entry node")
	ErrNoReachableTerminal  = errors.New("entry node reaches no terminal node")
	ErrUndeclaredVariable   = errors.New("undeclared variable")
	ErrValueTypeMismatch    = errors.New("value does not match declared type")
	ErrInvalidGuard         = errors.New("invalid branch guard")
	ErrInvalidDocument      = errors.New("invalid document")
)

var kindErrors = map[Kind]error{
	KindNoEntryNode:          types.ErrNoEntryNode,
	KindMultipleEntryNodes:   types.ErrMultipleEntryNodes,
	KindNoTerminalNode:       types.ErrNoTerminalNode,
	KindDanglingEdgeEndpoint: ErrDanglingEdgeEndpoint,
	KindDanglingBranchEdge:   ErrDanglingBranchEdge,
	KindDuplicateNodeID:      ErrDuplicateNodeID,
	KindUnreachableNode:      ErrUnreachableNode,
	KindNoReachableTerminal:  ErrNoReachableTerminal,
	KindUndeclaredVariable:   ErrUndeclaredVariable,
	KindValueTypeMismatch:    ErrValueTypeMismatch,
	KindInvalidGuard:         ErrInvalidGuard,
	KindInvalidDocument:      ErrInvalidDocument,
}

// Violation is a single broken rule together with the entity that broke it.
// Only the fields relevant to Kind are set.
type Violation struct {
	Kind Kind
	// Invariant is the numbered structural invariant (1-6), or 0 for
	// variable and document level rules.
	Invariant int
	NodeID    int
	Edge      *types.Edge
	Branch    *types.Branch
	Variable  string
	Field     string
	Msg       string
}

func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	base := string(v.Kind)
	if err, ok := kindErrors[v.Kind]; ok {
		base = err.Error()
	}
	if v.Msg == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, v.Msg)
}

func (v *Violation) Unwrap() error { return kindErrors[v.Kind] }

// Report is the ordered result of a validation run.
type Report struct {
	Violations []*Violation
}

// Valid reports whether no violation was found.
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns nil for a valid report, otherwise all violations joined.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Violations))
	for i, v := range r.Violations {
		errs[i] = v
	}
	return errors.Join(errs...)
}

// Kinds returns the kind of every violation, in report order.
func (r *Report) Kinds() []Kind {
	kinds := make([]Kind, len(r.Violations))
	for i, v := range r.Violations {
		kinds[i] = v.Kind
	}
	return kinds
}

// Count returns how many violations have the given kind.
func (r *Report) Count(kind Kind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) String() string {
	if r.Valid() {
		return "valid"
	}
	lines := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		lines[i] = v.Error()
	}
	return strings.Join(lines, "\n")
}
