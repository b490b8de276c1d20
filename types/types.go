package types

import (
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Node kinds and actions that carry structural meaning.
const (
	KindFlow    = "flow"
	ActionStart = "start"
	ActionEnd   = "end"
)

// Flow is the workflow graph: nodes, edges, guarded branches and variables.
type Flow struct {
	Requirements []Requirement `json:"requirements" yaml:"requirements" validate:"dive"`
	Variables    Variables     `json:"variables" yaml:"variables"`
	Nodes        []Node        `json:"nodes" yaml:"nodes"`
	Edges        []Edge        `json:"edges" yaml:"edges"`
	Branches     []Branch      `json:"branches" yaml:"branches"`
}

// Node represents a step in the flow.
type Node struct {
	ID         int         `json:"id" yaml:"id"`
	Kind       string      `json:"nodetype" yaml:"nodetype"` // "flow", "call", ...
	Label      string      `json:"label" yaml:"label"`
	Action     string      `json:"action" yaml:"action"` // "start", "end", ...
	Parameters interface{} `json:"parameters" yaml:"parameters"`
}

// Edge is a directed connection between two node ids.
// It is encoded as a two element array: [from, to].
type Edge struct {
	From int
	To   int
}

// Branch attaches a guard variable to an edge.
type Branch struct {
	Edge     Edge     `json:"edge" yaml:"edge"`
	Variable Variable `json:"xvar" yaml:"xvar"`
}

// Requirement declares an external capability the flow depends on.
type Requirement struct {
	Kind    string `json:"xtype" yaml:"xtype" validate:"required"`
	Version int    `json:"version" yaml:"version" validate:"gte=0"`
}

// VariableDefinition declares an input or output parameter.
type VariableDefinition struct {
	Name string    `json:"name" yaml:"name"`
	Type ValueType `json:"vtype" yaml:"vtype"`
}

// Variable is a named, typed and bound value.
type Variable struct {
	Name  string    `json:"name" yaml:"name"`
	Type  ValueType `json:"vtype" yaml:"vtype"`
	Value Value     `json:"value" yaml:"value"`
}

// Variables holds the three variable scopes of a flow.
type Variables struct {
	Input  []VariableDefinition `json:"input" yaml:"input"`
	Local  []Variable           `json:"local" yaml:"local"`
	Output []VariableDefinition `json:"output" yaml:"output"`
}

// NewFlow returns an empty flow with no requirements, variables, nodes, edges or branches.
func NewFlow() Flow {
	return Flow{
		Requirements: []Requirement{},
		Variables: Variables{
			Input:  []VariableDefinition{},
			Local:  []Variable{},
			Output: []VariableDefinition{},
		},
		Nodes:    []Node{},
		Edges:    []Edge{},
		Branches: []Branch{},
	}
}

// String formats e as "(from, to)".
func (e Edge) String() string {
	return fmt.Sprintf("(%d, %d)", e.From, e.To)
}

// MarshalJSON encodes e as a [from, to] array.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{e.From, e.To})
}

// UnmarshalJSON decodes a [from, to] array with exactly two endpoints.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("edge must be a [from, to] array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("edge must have exactly 2 endpoints, got %d", len(pair))
	}
	e.From, e.To = pair[0], pair[1]
	return nil
}

// MarshalYAML encodes e as a [from, to] sequence.
func (e Edge) MarshalYAML() (interface{}, error) {
	return []int{e.From, e.To}, nil
}

// UnmarshalYAML decodes a [from, to] sequence with exactly two endpoints.
func (e *Edge) UnmarshalYAML(node *yaml.Node) error {
	var pair []int
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: edge must be a [from, to] sequence: %w", node.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: edge must have exactly 2 endpoints, got %d", node.Line, len(pair))
	}
	e.From, e.To = pair[0], pair[1]
	return nil
}

type variableJSON struct {
	Name  string          `json:"name"`
	Type  ValueType       `json:"vtype"`
	Value json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes a variable whose value is present and not null.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var raw variableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Value) == 0 {
		return fmt.Errorf("%w: variable %q has no value", ErrInvalidValue, raw.Name)
	}

	var value Value
	if err := value.UnmarshalJSON(raw.Value); err != nil {
		return fmt.Errorf("variable %q: %w", raw.Name, err)
	}
	*v = Variable{Name: raw.Name, Type: raw.Type, Value: value}
	return nil
}

type variableYAML struct {
	Name  string    `yaml:"name"`
	Type  ValueType `yaml:"vtype"`
	Value yaml.Node `yaml:"value"`
}

// UnmarshalYAML decodes a variable whose value is present and not null.
func (v *Variable) UnmarshalYAML(node *yaml.Node) error {
	var raw variableYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Value.Kind == 0:
		return fmt.Errorf("%w: line %d: variable %q has no value", ErrInvalidValue, node.Line, raw.Name)
	case raw.Value.ShortTag() == "!!null":
		return fmt.Errorf("%w: line %d: variable %q has a null value", ErrInvalidValue, raw.Value.Line, raw.Name)
	}

	var value Value
	if err := raw.Value.Decode(&value); err != nil {
		return fmt.Errorf("variable %q: %w", raw.Name, err)
	}
	*v = Variable{Name: raw.Name, Type: raw.Type, Value: value}
	return nil
}

// Clone returns a deep copy of f, including decoded node parameters.
func (f Flow) Clone() Flow {
	c := Flow{
		Requirements: slices.Clone(f.Requirements),
		Variables: Variables{
			Input:  slices.Clone(f.Variables.Input),
			Local:  slices.Clone(f.Variables.Local),
			Output: slices.Clone(f.Variables.Output),
		},
		Nodes:    slices.Clone(f.Nodes),
		Edges:    slices.Clone(f.Edges),
		Branches: slices.Clone(f.Branches),
	}
	for i := range c.Nodes {
		c.Nodes[i].Parameters = cloneParameters(c.Nodes[i].Parameters)
	}
	return c
}

// cloneParameters copies the map and slice shapes produced by the JSON and
// YAML decoders. Other values are returned as is.
func cloneParameters(p interface{}) interface{} {
	switch v := p.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(v))
		for k, x := range v {
			c[k] = cloneParameters(x)
		}
		return c
	case map[interface{}]interface{}:
		c := make(map[interface{}]interface{}, len(v))
		for k, x := range v {
			c[k] = cloneParameters(x)
		}
		return c
	case []interface{}:
		c := make([]interface{}, len(v))
		for i, x := range v {
			c[i] = cloneParameters(x)
		}
		return c
	default:
		return v
	}
}
