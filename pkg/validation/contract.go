package validation

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/forgeline/sitesmith/pkg/types"
)

// Kind is the tagged variant of a contract field's expected JSON type
type Kind string

const (
	// KindString matches JSON strings
	KindString Kind = "string"
	// KindNumber matches JSON numbers
	KindNumber Kind = "number"
	// KindBoolean matches JSON booleans
	KindBoolean Kind = "boolean"
	// KindObject matches JSON objects
	KindObject Kind = "object"
	// KindArray matches JSON arrays
	KindArray Kind = "array"
)

// Field declares one named argument in a tool contract
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Enum        []string
	Description string
}

// Contract declares the shape of a tool's input or output. Fields are
// checked structurally; Schema, when present, is additionally validated
// as a JSON schema document.
type Contract struct {
	Fields []Field
	Schema json.RawMessage
}

// Compile verifies the contract itself is well formed. Called once at
// registration time so malformed schemas fail at startup, not per call.
func (c Contract) Compile() error {
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return errors.New("contract field missing name")
		}
		if seen[f.Name] {
			return errors.Errorf("duplicate contract field %q", f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case KindString, KindNumber, KindBoolean, KindObject, KindArray:
		default:
			return errors.Errorf("contract field %q has unknown kind %q", f.Name, f.Kind)
		}
		if len(f.Enum) > 0 && f.Kind != KindString {
			return errors.Errorf("contract field %q: enum only valid for string fields", f.Name)
		}
	}
	if len(c.Schema) > 0 {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(c.Schema)); err != nil {
			return errors.Wrap(err, "invalid contract schema")
		}
	}
	return nil
}

// Validate checks a decoded argument map against the contract. A
// violation is reported with the given error code so input failures
// surface as client errors and output failures as server errors.
func (c Contract) Validate(args map[string]interface{}, code int) error {
	for _, f := range c.Fields {
		v, ok := args[f.Name]
		if !ok || v == nil {
			if f.Required {
				return types.NewError(code, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		if err := checkKind(f, v, code); err != nil {
			return err
		}
	}
	if len(c.Schema) > 0 {
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(c.Schema),
			gojsonschema.NewGoLoader(args),
		)
		if err != nil {
			return types.NewError(code, "schema validation failed: "+err.Error())
		}
		if !result.Valid() {
			return types.NewErrorWithData(code, "schema validation failed", map[string]interface{}{
				"violations": describeViolations(result),
			})
		}
	}
	return nil
}

// Parameters renders the contract in the wire shape used by listTools
func (c Contract) Parameters() *types.Parameters {
	if len(c.Fields) == 0 {
		return nil
	}
	p := &types.Parameters{
		Type:       "object",
		Properties: make(map[string]types.Parameter, len(c.Fields)),
	}
	for _, f := range c.Fields {
		p.Properties[f.Name] = types.Parameter{
			Type:        string(f.Kind),
			Description: f.Description,
			Enum:        f.Enum,
		}
		if f.Required {
			p.Required = append(p.Required, f.Name)
		}
	}
	return p
}

func checkKind(f Field, v interface{}, code int) error {
	ok := false
	switch f.Kind {
	case KindString:
		var s string
		s, ok = v.(string)
		if ok && len(f.Enum) > 0 {
			found := false
			for _, e := range f.Enum {
				if s == e {
					found = true
					break
				}
			}
			if !found {
				return types.NewError(code, fmt.Sprintf("field %q must be one of %v", f.Name, f.Enum))
			}
		}
	case KindNumber:
		switch v.(type) {
		case float64, int, int64:
			ok = true
		}
	case KindBoolean:
		_, ok = v.(bool)
	case KindObject:
		_, ok = v.(map[string]interface{})
	case KindArray:
		_, ok = v.([]interface{})
	}
	if !ok {
		return types.NewError(code, fmt.Sprintf("field %q must be a %s", f.Name, f.Kind))
	}
	return nil
}

func describeViolations(result *gojsonschema.Result) []string {
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return msgs
}
