package rules

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"dario.cat/mergo"
	"github.com/songzhibin97/xflow/types"
)

var (
	// ErrInvalidIdentifier is returned when a branch variable name cannot be
	// referenced from a guard expression.
	ErrInvalidIdentifier = errors.New("variable name is not a valid guard identifier")
	// ErrUnboundVariable is returned by SelectBranches when a guard reads a
	// variable that has neither a local value nor a binding.
	ErrUnboundVariable = errors.New("guard variable is not bound")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var reservedWords = map[string]bool{
	"true": true, "false": true, "nil": true,
	"and": true, "or": true, "not": true, "in": true,
	"matches": true, "contains": true, "startsWith": true, "endsWith": true,
	"let": true,
}

// GuardExpression renders the condition a branch variable stands for,
// e.g. `approved == true` or `region == "eu"`.
func GuardExpression(v types.Variable) (string, error) {
	if !identifierPattern.MatchString(v.Name) || reservedWords[v.Name] {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, v.Name)
	}
	return v.Name + " == " + literal(v.Value), nil
}

func literal(v types.Value) string {
	switch v.Type() {
	case types.ValueTypeInteger:
		// The lexer reads -9223372036854775808 as negation of an out-of-range literal.
		if n, _ := v.AsInteger(); n == math.MinInt64 {
			return "(-9223372036854775807 - 1)"
		}
		return v.String()
	case types.ValueTypeBoolean:
		return v.String()
	default:
		return strconv.Quote(v.String())
	}
}

// Env returns a type-only environment for the flow's declared variables:
// each name maps to the zero value of its declared type. Names declared
// with an unknown type are left out.
func Env(f *types.Flow) map[string]interface{} {
	env := make(map[string]interface{})
	for name := range f.AllVariableNames() {
		vt, _ := f.VariableType(name)
		switch vt {
		case types.ValueTypeString:
			env[name] = ""
		case types.ValueTypeInteger:
			env[name] = int64(0)
		case types.ValueTypeBoolean:
			env[name] = false
		}
	}
	return env
}

// Bindings returns the runtime environment of a flow before execution:
// Env with local variables set to their bound values.
func Bindings(f *types.Flow) map[string]interface{} {
	env := Env(f)
	for _, v := range f.Variables.Local {
		if _, ok := env[v.Name]; ok && v.Value.Matches(v.Type) {
			env[v.Name] = v.Value.Interface()
		}
	}
	return env
}

// CheckGuard type-checks the guard of b against the flow's declarations.
func CheckGuard(evaluator Evaluator, f *types.Flow, b *types.Branch) error {
	expression, err := GuardExpression(b.Variable)
	if err != nil {
		return err
	}
	return evaluator.Compile(expression, Env(f))
}

// SelectBranches returns the outgoing branches of nodeID whose guards hold.
// bindings override the flow's own local values. Inputs and outputs are not
// defaulted: a guard on a variable missing from both the locals and bindings
// fails with ErrUnboundVariable.
func SelectBranches(ctx context.Context, evaluator Evaluator, f *types.Flow, nodeID int, bindings map[string]interface{}) ([]*types.Branch, error) {
	env := Bindings(f)
	if len(bindings) > 0 {
		if err := mergo.Merge(&env, bindings, mergo.WithOverride, mergo.WithOverwriteWithEmptyValue); err != nil {
			return nil, fmt.Errorf("failed to merge bindings: %w", err)
		}
	}

	bound := make(map[string]bool, len(f.Variables.Local)+len(bindings))
	for _, v := range f.Variables.Local {
		if v.Value.Matches(v.Type) {
			bound[v.Name] = true
		}
	}
	for name := range bindings {
		bound[name] = true
	}

	var selected []*types.Branch
	for _, b := range f.OutgoingBranches(nodeID) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !bound[b.Variable.Name] {
			return nil, fmt.Errorf("%w: %q on edge %s", ErrUnboundVariable, b.Variable.Name, b.Edge)
		}
		expression, err := GuardExpression(b.Variable)
		if err != nil {
			return nil, err
		}
		ok, err := evaluator.Evaluate(expression, env)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate guard '%s' on edge %s: %w", expression, b.Edge, err)
		}
		if ok {
			selected = append(selected, b)
		}
	}
	return selected, nil
}
