package suggest

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

// ResponseSchema is the JSON schema the model's answer must satisfy.
var ResponseSchema = `{
	"type": "object",
	"properties": {
		"genres": {
			"type": "array",
			"items": {"type": "string", "minLength": 1, "maxLength": 50},
			"minItems": 0,
			"maxItems": 10
		}
	},
	"required": ["genres"],
	"additionalProperties": false
}`

var schemaLoader = gojsonschema.NewStringLoader(ResponseSchema)

// Response is the decoded model answer.
type Response struct {
	Genres []string `json:"genres"`
}

// ValidateResponse checks data against ResponseSchema.
func ValidateResponse(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate JSON schema: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("JSON validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// ParseResponse validates and decodes a model answer.
func ParseResponse(data []byte) (*Response, error) {
	if err := ValidateResponse(data); err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return &resp, nil
}

// Sanitize trims names and drops blanks and case-insensitive repeats.
func (r *Response) Sanitize() {
	seen := map[string]bool{}
	clean := make([]string, 0, len(r.Genres))
	for _, g := range r.Genres {
		g = strings.TrimSpace(g)
		key := strings.ToLower(g)
		if g == "" || seen[key] {
			continue
		}
		seen[key] = true
		clean = append(clean, g)
	}
	r.Genres = clean
}
