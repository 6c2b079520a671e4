package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"elevator-status-monitor/internal/model"
)

// FileSource replays equipment records from a JSON file instead of querying the API.
type FileSource struct {
	equipments []model.Equipment
}

// LoadFileSource reads a JSON array of equipment records.
func LoadFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var equipments []model.Equipment
	if err := json.Unmarshal(data, &equipments); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &FileSource{equipments: equipments}, nil
}

// ResolveAll returns the recorded equipments regardless of groups.
func (f *FileSource) ResolveAll(_ context.Context, _ []model.SearchGroup) Result {
	out := make([]model.Equipment, len(f.equipments))
	copy(out, f.equipments)
	return Result{Equipments: out}
}
