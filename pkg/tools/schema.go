// Package tools implements the Tool-Call Subprotocol: parsing
// TOOL_REQUEST markers out of participant responses and dispatching
// them to four whitelisted, read-only, sandboxed tools.
package tools

import (
	"encoding/json"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a minimal JSON Schema object description (draft-7 keywords
// only, the dialect gojsonschema validates), used to
// declare each tool's accepted arguments. Validation is delegated to
// gojsonschema rather than hand-rolled field checks.
type Schema struct {
	Type       string             `json:"type"`
	Properties map[string]Schema  `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
}

func objectSchema(required []string, props map[string]Schema) Schema {
	return Schema{Type: "object", Properties: props, Required: required}
}

func stringSchema() Schema { return Schema{Type: "string"} }

// Validate checks args against the schema using gojsonschema.
func (s Schema) Validate(args map[string]interface{}) error {
	schemaBytes, err := json.Marshal(s)
	if err != nil {
		return errs.Tool(err, "marshal schema")
	}
	docBytes, err := json.Marshal(args)
	if err != nil {
		return errs.Tool(err, "marshal arguments")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return errs.Tool(err, "validate arguments")
	}
	if !result.Valid() {
		msg := "invalid arguments"
		if errsList := result.Errors(); len(errsList) > 0 {
			msg = errsList[0].String()
		}
		return errs.Tool(nil, "%s", msg)
	}
	return nil
}
