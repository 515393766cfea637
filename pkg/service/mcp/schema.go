package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// maxSchemaDepth guards the recursive conversion against self-referencing
// schemas a remote server might declare.
const maxSchemaDepth = 16

// parseSchema converts a raw JSON Schema document into the genai schema
// shape used by function declarations.
func parseSchema(raw []byte) (*genai.Schema, error) {
	var js jsonschema.Schema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, goerr.Wrap(err, "failed to parse input schema")
	}
	return toGenaiSchema(&js, 0)
}

func toGenaiSchema(js *jsonschema.Schema, depth int) (*genai.Schema, error) {
	if js == nil {
		return nil, nil
	}
	if depth > maxSchemaDepth {
		return nil, goerr.New("schema nesting too deep", goerr.V("maxDepth", maxSchemaDepth))
	}

	out := &genai.Schema{Description: js.Description}

	if js.Type != "" {
		t, err := genaiType(js.Type)
		if err != nil {
			return nil, err
		}
		out.Type = t
	}

	for _, v := range js.Enum {
		// Gemini enums are strings; non-string values are stringified.
		out.Enum = append(out.Enum, fmt.Sprint(v))
	}

	if len(js.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(js.Properties))
		for name, prop := range js.Properties {
			converted, err := toGenaiSchema(prop, depth+1)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
		out.Required = js.Required
	}

	if js.Items != nil {
		items, err := toGenaiSchema(js.Items, depth+1)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert array items")
		}
		out.Items = items
	}

	return out, nil
}

func genaiType(jsonType string) (genai.Type, error) {
	switch jsonType {
	case "object":
		return genai.TypeObject, nil
	case "string":
		return genai.TypeString, nil
	case "integer":
		return genai.TypeInteger, nil
	case "number":
		return genai.TypeNumber, nil
	case "boolean":
		return genai.TypeBoolean, nil
	case "array":
		return genai.TypeArray, nil
	}
	return genai.TypeUnspecified, goerr.New("unsupported schema type", goerr.V("type", jsonType))
}
