package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// toolsSchema describes the GET /tools payload. Extra fields are tolerated so
// newer servers keep working.
const toolsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "input_schema": {"type": ["object", "null"]}
    }
  }
}`

var toolsSchemaLoader = gojsonschema.NewStringLoader(toolsSchema)

type schemaValidationError struct {
	issues []string
}

func (e schemaValidationError) Error() string {
	if len(e.issues) == 0 {
		return "payload failed schema validation"
	}
	return strings.Join(e.issues, "; ")
}

func validateTools(raw []byte) error {
	result, err := gojsonschema.Validate(toolsSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return schemaValidationError{issues: issues}
}
