// Package loader parses decision-table definitions from their three textual
// encodings (JSON, YAML, XML) into the data model. The three formats share
// one logical schema; XML is first converted generically into nested
// mappings so that a single normalization path interprets all of them.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/dmn/pkg/schema"
)

// Format identifies a table definition encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
)

// formatByExtension maps file extensions to formats. ".dmn" files carry the
// XML encoding.
var formatByExtension = map[string]Format{
	".json": FormatJSON,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".xml":  FormatXML,
	".dmn":  FormatXML,
}

// Parse converts a serialized table definition into a DMNTable.
//
// Malformed input and unsupported formats fail with a PARSE_ERROR. Structural
// invariant violations do not: they are returned as a ValidationResult next
// to the parsed table, non-fatal at load time so that callers may inspect,
// repair or reject the table before execution.
func Parse(data []byte, format Format) (*schema.DMNTable, *schema.ValidationResult, error) {
	if len(data) == 0 {
		return nil, nil, schema.NewError(schema.ErrCodeParse, "empty table definition")
	}

	var doc map[string]any
	switch format {
	case FormatJSON:
		if err := validateDocument(data); err != nil {
			return nil, nil, err
		}
		decoded, err := decodeJSON(data)
		if err != nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeParse,
				"invalid JSON: %s", err.Error()).WithCause(err)
		}
		doc = decoded
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, schema.NewErrorf(schema.ErrCodeParse,
				"invalid YAML: %s", err.Error()).WithCause(err)
		}
		m, ok := stringKeyed(raw).(map[string]any)
		if !ok {
			return nil, nil, schema.NewError(schema.ErrCodeParse,
				"YAML document is not a mapping")
		}
		doc = m
	case FormatXML:
		m, err := decodeXML(data)
		if err != nil {
			return nil, nil, err
		}
		doc = m
	default:
		return nil, nil, schema.NewErrorf(schema.ErrCodeParse,
			"unsupported format %q", format)
	}

	table, err := normalizeDMNTable(unwrapRoot(doc))
	if err != nil {
		return nil, nil, err
	}

	return table, table.Validate(), nil
}

// ParseFile reads and parses a table definition, selecting the format by
// file extension.
func ParseFile(path string) (*schema.DMNTable, *schema.ValidationResult, error) {
	format, ok := formatByExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, nil, schema.NewErrorf(schema.ErrCodeParse,
			"unsupported file extension %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeParse,
			"read %s: %s", path, err.Error()).WithCause(err)
	}

	return Parse(data, format)
}

// unwrapRoot strips a single wrapper element (the XML document root, or an
// equivalent envelope in JSON/YAML) when the top-level mapping has exactly
// one key whose value is itself a mapping and none of the schema fields are
// present at the top level.
func unwrapRoot(doc map[string]any) map[string]any {
	if len(doc) != 1 {
		return doc
	}
	for _, known := range []string{"id", "decisionTables", "decision_tables", "tables", "rules"} {
		if _, ok := doc[known]; ok {
			return doc
		}
	}
	for _, v := range doc {
		if inner, ok := v.(map[string]any); ok {
			return inner
		}
	}
	return doc
}

func decodeJSON(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stringKeyed recursively converts YAML's interface-keyed maps into
// string-keyed ones so the normalizer sees one map shape.
func stringKeyed(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = stringKeyed(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = stringKeyed(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = stringKeyed(item)
		}
		return out
	default:
		return v
	}
}
