package loader

import (
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/dmn/pkg/schema"
)

// tableSchemaJSON is the JSON Schema for table definition documents.
// Embedded as a constant to avoid filesystem dependencies. It is deliberately
// permissive about the camelCase/snake_case aliases and the
// singular-vs-sequence field shapes the normalizer accepts; it exists to
// reject documents that are structurally hopeless (non-object roots,
// non-object rules) with a pointed message before normalization runs.
const tableSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://rendis.dev/dmn/schemas/table.json",
  "type": "object",
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string" },
    "namespace": { "type": "string" },
    "version": { "type": ["string", "number"] },
    "description": { "type": "string" },
    "metadata": { "type": "object" },
    "decisionTables": { "$ref": "#/$defs/tableList" },
    "decision_tables": { "$ref": "#/$defs/tableList" },
    "tables": { "$ref": "#/$defs/tableList" },
    "rules": { "$ref": "#/$defs/ruleList" }
  },
  "$defs": {
    "tableList": {
      "anyOf": [
        { "type": "object" },
        { "type": "array", "items": { "type": "object" } }
      ]
    },
    "ruleList": {
      "anyOf": [
        { "type": "object" },
        { "type": "array", "items": { "type": "object" } }
      ]
    }
  }
}`

var (
	tableSchemaOnce sync.Once
	tableSchema     *jsonschema.Schema
	tableSchemaErr  error
)

// compiledTableSchema compiles the embedded schema once, on first use.
func compiledTableSchema() (*jsonschema.Schema, error) {
	tableSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(tableSchemaJSON))
		if err != nil {
			tableSchemaErr = err
			return
		}
		if err := c.AddResource("https://rendis.dev/dmn/schemas/table.json", doc); err != nil {
			tableSchemaErr = err
			return
		}
		tableSchema, tableSchemaErr = c.Compile("https://rendis.dev/dmn/schemas/table.json")
	})
	return tableSchema, tableSchemaErr
}

// validateDocument checks a raw JSON document against the embedded schema.
// The jsonschema library wants json.Number values, so the document is decoded
// through its own reader.
func validateDocument(data []byte) error {
	compiled, err := compiledTableSchema()
	if err != nil {
		return schema.NewError(schema.ErrCodeParse, "compile table schema").WithCause(err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeParse,
			"invalid JSON: %s", err.Error()).WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return schema.NewErrorf(schema.ErrCodeParse,
			"table definition rejected by schema: %s", err.Error()).WithCause(err)
	}
	return nil
}
