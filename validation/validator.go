package validation

import (
	"github.com/hashicorp/go-hclog"
	"github.com/songzhibin97/xflow/rules"
	"github.com/songzhibin97/xflow/types"
)

// Check names, in the order they run.
const (
	CheckEdgesHaveNodes    = "edges-have-nodes"
	CheckBranchesHaveEdges = "branches-have-edges"
	CheckUniqueNodeIDs     = "unique-node-ids"
	CheckSingleEntry       = "single-entry"
	CheckHasTerminal       = "has-terminal"
	CheckReachability      = "reachability"
	CheckVariablesDeclared = "variables-declared"
	CheckVariableTypes     = "variable-types"
	CheckBranchGuards      = "branch-guards"
)

// Check is a named, independent validation rule over a flow.
type Check struct {
	Name string
	Run  func(f *types.Flow) []*Violation
}

// Validator runs an ordered list of checks and collects every violation.
// It never modifies the flow, so one Validator may be shared by goroutines.
type Validator struct {
	checks    []Check
	skip      map[string]bool
	evaluator rules.Evaluator
	logger    hclog.Logger
}

// Option defines functional options for configuring a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for per-check debug output.
func WithLogger(logger hclog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithEvaluator sets the evaluator used to type-check branch guards.
func WithEvaluator(evaluator rules.Evaluator) Option {
	return func(v *Validator) {
		if evaluator != nil {
			v.evaluator = evaluator
		}
	}
}

// SkipChecks disables the named checks.
func SkipChecks(names ...string) Option {
	return func(v *Validator) {
		for _, name := range names {
			v.skip[name] = true
		}
	}
}

// WithChecks appends custom checks after the built-in ones.
func WithChecks(checks ...Check) Option {
	return func(v *Validator) {
		v.checks = append(v.checks, checks...)
	}
}

// CheckNames lists the built-in checks in run order.
func CheckNames() []string {
	return []string{
		CheckEdgesHaveNodes,
		CheckBranchesHaveEdges,
		CheckUniqueNodeIDs,
		CheckSingleEntry,
		CheckHasTerminal,
		CheckReachability,
		CheckVariablesDeclared,
		CheckVariableTypes,
		CheckBranchGuards,
	}
}

// New creates a Validator with every built-in check enabled.
func New(options ...Option) *Validator {
	v := &Validator{
		skip:      make(map[string]bool),
		evaluator: rules.NewExprEvaluator(),
		logger:    hclog.NewNullLogger(),
	}
	v.checks = []Check{
		{Name: CheckEdgesHaveNodes, Run: EdgesHaveNodes},
		{Name: CheckBranchesHaveEdges, Run: BranchesHaveEdges},
		{Name: CheckUniqueNodeIDs, Run: UniqueNodeIDs},
		{Name: CheckSingleEntry, Run: SingleEntry},
		{Name: CheckHasTerminal, Run: HasTerminal},
		{Name: CheckReachability, Run: Reachability},
		{Name: CheckVariablesDeclared, Run: VariablesDeclared},
		{Name: CheckVariableTypes, Run: VariableTypes},
		{Name: CheckBranchGuards, Run: func(f *types.Flow) []*Violation {
			return BranchGuards(f, v.evaluator)
		}},
	}

	for _, option := range options {
		option(v)
	}
	return v
}

// Validate runs every enabled check against f. It does not stop at the
// first failing check.
func (v *Validator) Validate(f *types.Flow) *Report {
	report := &Report{}
	if f == nil {
		empty := types.NewFlow()
		f = &empty
	}

	for _, check := range v.checks {
		if v.skip[check.Name] {
			continue
		}
		found := check.Run(f)
		if len(found) > 0 {
			v.logger.Debug("check failed", "check", check.Name, "violations", len(found))
		}
		report.Violations = append(report.Violations, found...)
	}
	return report
}

// ValidateDocument checks the document envelope, then validates its flow.
func (v *Validator) ValidateDocument(doc *types.FlowDocument) *Report {
	if doc == nil {
		return &Report{Violations: []*Violation{{
			Kind: KindInvalidDocument,
			Msg:  "document is nil",
		}}}
	}

	envelope := DocumentFields(doc)
	report := v.Validate(&doc.Flow)
	report.Violations = append(envelope, report.Violations...)

	if !report.Valid() {
		v.logger.Debug("document rejected", "id", doc.ID, "violations", len(report.Violations))
	}
	return report
}
