package loader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rendis/dmn/pkg/schema"
)

// decodeXML converts an XML document generically into nested mappings:
// element tag → attributes merged with child mappings, repeated child tags
// collapsing into a sequence, and text-only elements becoming scalars. The
// result feeds the same normalizer as JSON and YAML, so there is exactly one
// schema-interpretation code path.
func decodeXML(data []byte) (map[string]any, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, schema.NewError(schema.ErrCodeParse, "XML document has no root element")
			}
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"invalid XML: %s", err.Error()).WithCause(err)
		}

		if start, ok := tok.(xml.StartElement); ok {
			content, err := decodeElement(dec, start)
			if err != nil {
				return nil, err
			}
			return map[string]any{start.Name.Local: content}, nil
		}
	}
}

// decodeElement consumes one element and its subtree.
func decodeElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	m := map[string]any{}
	for _, attr := range start.Attr {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		m[attr.Name.Local] = coerceScalar(attr.Value)
	}

	var textBuf strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeParse,
				"invalid XML inside <%s>: %s", start.Name.Local, err.Error()).WithCause(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			child, err := decodeElement(dec, t)
			if err != nil {
				return nil, err
			}
			addChild(m, t.Name.Local, child)
		case xml.CharData:
			textBuf.Write(t)
		case xml.EndElement:
			text := strings.TrimSpace(textBuf.String())
			if len(m) == 0 {
				if text == "" {
					return map[string]any{}, nil
				}
				return coerceScalar(text), nil
			}
			if text != "" {
				m["#text"] = coerceScalar(text)
			}
			return m, nil
		}
	}
}

// addChild merges a child element into its parent, collapsing repeated tags
// into a sequence.
func addChild(m map[string]any, tag string, child any) {
	existing, ok := m[tag]
	if !ok {
		m[tag] = child
		return
	}
	if seq, isSeq := existing.([]any); isSeq {
		m[tag] = append(seq, child)
		return
	}
	m[tag] = []any{existing, child}
}

// coerceScalar types XML text like YAML would: booleans and numbers become
// typed scalars, everything else stays a string. Quoted expression literals
// keep their quotes and remain strings.
func coerceScalar(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
