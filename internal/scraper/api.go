package scraper

import (
	"encoding/json"
	"fmt"

	"elevator-status-monitor/internal/parse"
)

// decodeFeatures extracts the raw "features" array from an equipment API response body.
// Malformed JSON is a decode error; well-formed JSON without a top-level "features" key
// is reported with the full body for diagnostics.
func decodeFeatures(body []byte) (json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		if !json.Valid(body) {
			return nil, fmt.Errorf("failed to decode equipment response: %w", err)
		}
		return nil, &parse.MissingValueError{Field: "", JSON: string(body)}
	}

	features, ok := top["features"]
	if !ok {
		return nil, &parse.MissingValueError{Field: "", JSON: string(body)}
	}
	return features, nil
}
