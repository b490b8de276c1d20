// Package loader decodes XFlow documents from JSON or YAML. Loading never
// validates; pass the result to validation.Validator.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/songzhibin97/xflow/internal/xjson"
	"github.com/songzhibin97/xflow/types"
	"gopkg.in/yaml.v3"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrDecode indicates malformed input.
var ErrDecode = errors.New("decode error")

// DecodeError represents a failure to decode a document.
// Wraps ErrDecode for errors.Is() compatibility.
type DecodeError struct {
	Format string
	Source string // file path, empty for readers
	Err    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Source != "" {
		return fmt.Sprintf("%s: %s %s: %v", ErrDecode.Error(), e.Format, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrDecode.Error(), e.Format, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// FromJSONBytes decodes a JSON document.
func FromJSONBytes(data []byte) (*types.FlowDocument, error) {
	doc := types.NewFlowDocument()
	if err := xjson.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Format: FormatJSON, Err: err}
	}
	return &doc, nil
}

// FromJSON decodes a JSON document from r.
func FromJSON(r io.Reader) (*types.FlowDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return FromJSONBytes(data)
}

// FromYAMLBytes decodes a YAML document.
func FromYAMLBytes(data []byte) (*types.FlowDocument, error) {
	doc := types.NewFlowDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Format: FormatYAML, Err: err}
	}
	return &doc, nil
}

// FromYAML decodes a YAML document from r.
func FromYAML(r io.Reader) (*types.FlowDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return FromYAMLBytes(data)
}

// FormatOf picks a format from a file extension: .yaml and .yml are YAML,
// everything else is JSON.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FromFile reads and decodes the document at path.
func FromFile(path string) (*types.FlowDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc *types.FlowDocument
	if FormatOf(path) == FormatYAML {
		doc, err = FromYAMLBytes(data)
	} else {
		doc, err = FromJSONBytes(data)
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		decodeErr.Source = path
	}
	return doc, err
}

// ToJSON encodes doc as indented JSON.
func ToJSON(doc *types.FlowDocument) ([]byte, error) {
	return xjson.MarshalIndent(doc, "", "  ")
}

// ToYAML encodes doc as YAML.
func ToYAML(doc *types.FlowDocument) ([]byte, error) {
	return yaml.Marshal(doc)
}
