package bank

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// numberOrNull accepts legacy exports that wrote missing parameters as null.
var numberOrNull = map[string]any{"type": []any{"number", "null"}}

// bankSchema describes an item-bank document. IRT parameters may appear
// under current or legacy names; normalization happens after validation.
var bankSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":          map[string]any{"type": "string", "minLength": 1},
					"topic":       map[string]any{"type": "string", "minLength": 1},
					"topic_key":   map[string]any{"type": "string", "minLength": 1},
					"type":        map[string]any{"type": "string", "enum": []any{"choice", "numeric", "multiple_choice"}},
					"prompt":      map[string]any{"type": "string"},
					"answer":      map[string]any{"type": "string"},
					"answer_type": map[string]any{"type": "string", "enum": []any{"integer", "decimal", "fraction", "text"}},
					"choices": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
					"tolerance":      map[string]any{"type": "number", "minimum": 0},
					"explanation":    map[string]any{"type": "string"},
					"active":         map[string]any{"type": "boolean"},
					"a":              numberOrNull,
					"b":              numberOrNull,
					"c":              numberOrNull,
					"discrimination": numberOrNull,
					"difficulty":     numberOrNull,
					"guessing":       numberOrNull,
					"irt_a":          numberOrNull,
					"irt_b":          numberOrNull,
					"irt_c":          numberOrNull,
					"params": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"a": numberOrNull,
							"b": numberOrNull,
							"c": numberOrNull,
						},
					},
				},
				"required": []any{"id", "type", "answer"},
				"anyOf": []any{
					map[string]any{"required": []any{"topic"}},
					map[string]any{"required": []any{"topic_key"}},
				},
			},
		},
	},
	"required": []any{"items"},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// validateDocument checks raw JSON against the item-bank schema.
func validateDocument(raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	compileOnce.Do(func() {
		// The jsonschema library expects a parsed JSON value, not Go maps
		// with typed slices, so round-trip the definition.
		defBytes, err := json.Marshal(bankSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema://item-bank.json", def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile("schema://item-bank.json")
	})
	if compileErr != nil {
		return fmt.Errorf("compile item-bank schema: %w", compileErr)
	}

	if err := compiled.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
