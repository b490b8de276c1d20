package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVariableDecoding(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		var v Variable
		require.NoError(t, json.Unmarshal([]byte(`{"name": "n", "vtype": "number", "value": 3}`), &v))
		assert.Equal(t, Variable{Name: "n", Type: ValueTypeInteger, Value: IntegerValue(3)}, v)
	})

	t.Run("YAML", func(t *testing.T) {
		var v Variable
		require.NoError(t, yaml.Unmarshal([]byte("name: s\nvtype: string\nvalue: \"\"\n"), &v))
		assert.Equal(t, Variable{Name: "s", Type: ValueTypeString, Value: StringValue("")}, v)
	})

	tests := []struct {
		name   string
		decode func(v *Variable) error
	}{
		{"json missing value", func(v *Variable) error {
			return json.Unmarshal([]byte(`{"name": "s", "vtype": "string"}`), v)
		}},
		{"json null value", func(v *Variable) error {
			return json.Unmarshal([]byte(`{"name": "s", "vtype": "string", "value": null}`), v)
		}},
		{"yaml missing value", func(v *Variable) error {
			return yaml.Unmarshal([]byte("name: s\nvtype: string\n"), v)
		}},
		{"yaml tilde value", func(v *Variable) error {
			return yaml.Unmarshal([]byte("name: s\nvtype: string\nvalue: ~\n"), v)
		}},
		{"yaml empty value", func(v *Variable) error {
			return yaml.Unmarshal([]byte("name: s\nvtype: string\nvalue:\n"), v)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Variable
			assert.ErrorIs(t, tt.decode(&v), ErrInvalidValue)
		})
	}
}

func TestFlowClone(t *testing.T) {
	f := newTestFlow()
	f.Requirements = []Requirement{{Kind: KindFlow, Version: 1}}
	f.Nodes[1].Parameters = map[string]interface{}{
		"queue": "finance",
		"tags":  []interface{}{"a", map[string]interface{}{"k": "v"}},
	}

	c := f.Clone()
	require.Equal(t, f, c)

	c.Nodes[0].Action = ActionEnd
	c.Edges[0].To = 99
	c.Branches[0].Variable.Value = BooleanValue(false)
	c.Variables.Local[0].Name = "renamed"
	c.Variables.Input[0].Type = ValueTypeString
	c.Variables.Output = append(c.Variables.Output, VariableDefinition{Name: "extra"})
	c.Requirements[0].Version = 2
	params := c.Nodes[1].Parameters.(map[string]interface{})
	params["queue"] = "ops"
	params["tags"].([]interface{})[1].(map[string]interface{})["k"] = "changed"

	original := newTestFlow()
	assert.Equal(t, original.Nodes[0], f.Nodes[0])
	assert.Equal(t, original.Edges, f.Edges)
	assert.Equal(t, original.Branches, f.Branches)
	assert.Equal(t, original.Variables, f.Variables)
	assert.Equal(t, 1, f.Requirements[0].Version)
	assert.Equal(t, map[string]interface{}{
		"queue": "finance",
		"tags":  []interface{}{"a", map[string]interface{}{"k": "v"}},
	}, f.Nodes[1].Parameters)

	var empty Flow
	assert.Equal(t, empty, empty.Clone())
}

func TestFlowDocumentClone(t *testing.T) {
	doc := NewFlowDocument()
	doc.ID = "flow.a"
	doc.Flow = newTestFlow()

	c := doc.Clone()
	require.Equal(t, doc, c)

	c.ID = "flow.b"
	c.Flow.Nodes[0].Label = "changed"
	assert.Equal(t, "flow.a", doc.ID)
	assert.Equal(t, "Start", doc.Flow.Nodes[0].Label)
}
