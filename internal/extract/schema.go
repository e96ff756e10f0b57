package extract

// BuildEnvelopeJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map for the extraction response envelope. The endpoint promises
// this shape; we still validate locally before accepting a result.
func BuildEnvelopeJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"raw_text":          map[string]any{"type": "string"},
			"structured_output": map[string]any{"type": "string", "minLength": 1},
			"confidence":        map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"raw_text", "structured_output"},
	}
}
