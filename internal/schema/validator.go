package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anchorcred/internal/credential/ports"
	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/sentinel"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks a credential subject against its schema definition.
type Validator struct {
	loader ports.SchemaLoader
}

func NewValidator(loader ports.SchemaLoader) *Validator {
	return &Validator{loader: loader}
}

// Validate returns CodeNotFound for an unknown schema and CodeValidation when
// subject does not conform.
func (v *Validator) Validate(ctx context.Context, schemaID string, subject map[string]any) error {
	s, err := v.loader.Load(ctx, schemaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "schema %s is not registered", schemaID)
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(s.Definition),
		gojsonschema.NewGoLoader(subject),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "credential subject could not be validated")
	}
	if !result.Valid() {
		return dErrors.New(dErrors.CodeValidation, describeErrors(result))
	}
	return nil
}

func describeErrors(result *gojsonschema.Result) string {
	var b strings.Builder
	b.WriteString("credentialSubject is not valid:")
	for _, desc := range result.Errors() {
		fmt.Fprintf(&b, " %s;", desc)
	}
	return strings.TrimSuffix(b.String(), ";")
}
