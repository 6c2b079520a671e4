package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MissingValueError reports a JSON field that was expected but absent.
type MissingValueError struct {
	Field string
	JSON  string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("Missing value: %s in JSON: %s", e.Field, e.JSON)
}

// InvalidTypeError reports a JSON value of the wrong shape.
type InvalidTypeError struct {
	ExpectedType string
	JSON         string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("Expected JSON: %s to be of type: %s", e.JSON, e.ExpectedType)
}

// HTTPRequestError reports a non-success response from the equipment API.
type HTTPRequestError struct {
	StatusCode int
	Body       string
}

func (e *HTTPRequestError) Error() string {
	return fmt.Sprintf("HTTP request failed, error code: %d\n%s", e.StatusCode, e.Body)
}

// EquipmentNotFoundError reports a search label with no matching elevator.
type EquipmentNotFoundError struct {
	Query string
}

func (e *EquipmentNotFoundError) Error() string {
	return fmt.Sprintf("Could not find elevator: %s", e.Query)
}

// FeatureErrors collects the per-feature failures of a feature list that produced no elevators.
type FeatureErrors []error

func (fe FeatureErrors) Error() string {
	var b strings.Builder
	b.WriteString("Errors encountered when sourcing equipments:\n")
	for _, err := range fe {
		b.WriteString("\n")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (fe FeatureErrors) Unwrap() []error {
	return fe
}

// compactJSON renders raw JSON on a single line for diagnostics.
func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
