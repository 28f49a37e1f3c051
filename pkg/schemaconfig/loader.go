// pkg/schemaconfig/loader.go
package schemaconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// metaSchema is the JSON Schema every intent schema document must satisfy
// before its semantic rules are checked.
const metaSchema = `{
	"type": "object",
	"required": ["version", "entities", "intents"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"lastUpdated": {"type": "string"},
		"entities": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "object",
				"required": ["type", "question"],
				"properties": {
					"type": {"type": "string", "enum": ["string", "integer"]},
					"question": {"type": "string", "minLength": 1},
					"examples": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"intents": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "requiredEntities"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"description": {"type": "string"},
					"requiredEntities": {"type": "array", "items": {"type": "string"}},
					"optionalEntities": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// Load reads, validates and parses a schema document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates and parses a schema document from raw JSON.
func Parse(data []byte) (*Document, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}

	if err := checkReferences(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// validateDocument runs the document against the meta schema.
func validateDocument(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(metaSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return fmt.Errorf("schema document invalid: %s", strings.Join(messages, "; "))
	}

	return nil
}

// checkReferences verifies every entity an intent names is defined and intent
// names are unique.
func checkReferences(doc *Document) error {
	seen := make(map[string]bool, len(doc.Intents))

	for _, intent := range doc.Intents {
		if seen[intent.Name] {
			return fmt.Errorf("duplicate intent %q", intent.Name)
		}
		seen[intent.Name] = true

		for _, entity := range intent.RequiredEntities {
			if _, defined := doc.Entities[entity]; !defined {
				return fmt.Errorf("intent %q requires undefined entity %q", intent.Name, entity)
			}
		}
		for _, entity := range intent.OptionalEntities {
			if _, defined := doc.Entities[entity]; !defined {
				return fmt.Errorf("intent %q references undefined entity %q", intent.Name, entity)
			}
		}
	}

	return nil
}
