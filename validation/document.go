package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/songzhibin97/xflow/types"
)

// validate is a singleton validator instance for envelope struct tags.
var validate = validator.New()

// DocumentFields checks the envelope fields of doc (doctype, versions and
// requirements) using their struct tags.
func DocumentFields(doc *types.FlowDocument) []*Violation {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []*Violation{{Kind: KindInvalidDocument, Msg: err.Error()}}
	}

	violations := make([]*Violation, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		violations = append(violations, &Violation{
			Kind:  KindInvalidDocument,
			Field: e.Namespace(),
			Msg:   formatFieldError(e),
		})
	}
	return violations
}

// formatFieldError converts a validator field error to a readable message.
func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s: field is required", field)
	case "gte":
		return fmt.Sprintf("%s: must be at least %s, got %v", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s: validation failed (%s)", field, e.Tag())
	}
}
