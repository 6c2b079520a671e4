package parse

import (
	"bytes"
	"encoding/json"
	"strings"

	"elevator-status-monitor/internal/model"
)

// ParseFeature converts a single feature object from the equipment API into an Equipment.
// Only a missing "properties" object is an error; every other field falls back to a default.
func ParseFeature(raw json.RawMessage) (model.Equipment, error) {
	var feature map[string]json.RawMessage
	if err := json.Unmarshal(raw, &feature); err != nil {
		return model.Equipment{}, &MissingValueError{Field: "properties", JSON: compactJSON(raw)}
	}

	rawProps, ok := feature["properties"]
	if !ok {
		return model.Equipment{}, &MissingValueError{Field: "properties", JSON: compactJSON(raw)}
	}

	// A properties value that is not an object behaves like an empty one.
	var props map[string]json.RawMessage
	_ = json.Unmarshal(rawProps, &props)

	equipment := model.Equipment{
		Name:     model.PlaceholderName,
		Category: model.CategoryElevator,
	}

	var working bool
	if v, ok := props["isWorking"]; ok && json.Unmarshal(v, &working) == nil && isBool(v) {
		equipment.Working = &working
	}

	if name, ok := descriptionText(props["description"]); ok {
		equipment.Name = name
	}

	if category, ok := stringValue(props["category"]); ok {
		equipment.Category = category
	}

	if place, ok := stringValue(props["placeInfoName"]); ok {
		equipment.Place = &place
	}

	return equipment, nil
}

// ParseFeatureList parses every element of a features array and keeps only elevators.
// It fails when no elevator remains, returning the per-feature errors collected on the way.
func ParseFeatureList(raw json.RawMessage) ([]model.Equipment, error) {
	var elements []json.RawMessage
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' || json.Unmarshal(trimmed, &elements) != nil {
		return nil, FeatureErrors{&InvalidTypeError{ExpectedType: "Array", JSON: compactJSON(raw)}}
	}

	var (
		equipments []model.Equipment
		errs       FeatureErrors
	)
	for _, element := range elements {
		equipment, err := ParseFeature(element)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// Escalators and other equipment may share an elevator's name.
		if !strings.EqualFold(equipment.Category, model.CategoryElevator) {
			continue
		}
		equipments = append(equipments, equipment)
	}

	if len(equipments) == 0 {
		if errs == nil {
			errs = FeatureErrors{}
		}
		return nil, errs
	}
	return equipments, nil
}

// descriptionText prefers the German translation of a localized description and falls
// back to a plain string description.
func descriptionText(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var localized map[string]json.RawMessage
	if json.Unmarshal(raw, &localized) == nil && localized != nil {
		if de, ok := localized["de"]; ok {
			return stringValue(de)
		}
		return "", false
	}
	return stringValue(raw)
}

func stringValue(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || !isString(raw) {
		return "", false
	}
	return s, true
}

// isString and isBool guard against json.Unmarshal accepting null into a Go value.
func isString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

func isBool(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return bytes.Equal(trimmed, []byte("true")) || bytes.Equal(trimmed, []byte("false"))
}
