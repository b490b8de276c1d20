package types

// DocumentType is the doctype carried by XFlow documents.
const DocumentType = "xflow"

// FlowDocument wraps a Flow with identity and version metadata.
type FlowDocument struct {
	ID                  string `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	DocumentType        string `json:"doctype" yaml:"doctype" validate:"required"`
	DocumentTypeVersion int    `json:"doctype_version" yaml:"doctype_version" validate:"gte=1"`
	Version             int    `json:"version" yaml:"version" validate:"gte=1"`
	Flow                Flow   `json:"doc" yaml:"doc"`
}

// NewFlowDocument returns a document around an empty flow, at version 1.
func NewFlowDocument() FlowDocument {
	return FlowDocument{
		DocumentType:        DocumentType,
		DocumentTypeVersion: 1,
		Version:             1,
		Flow:                NewFlow(),
	}
}

// Clone returns a deep copy of d.
func (d FlowDocument) Clone() FlowDocument {
	c := d
	c.Flow = d.Flow.Clone()
	return c
}
