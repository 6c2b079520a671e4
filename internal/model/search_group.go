package model

import "fmt"

// SearchGroup is a set of equipment search labels resolved against a single API query
// around one coordinate.
type SearchGroup struct {
	Name              string   `yaml:"name" json:"name"`
	Latitude          float64  `yaml:"latitude" json:"latitude"`
	Longitude         float64  `yaml:"longitude" json:"longitude"`
	EquipmentSearches []string `yaml:"equipment_searches" json:"equipment_searches"`
}

// Label returns a human readable identifier for logs.
func (g SearchGroup) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("%.6f,%.6f", g.Latitude, g.Longitude)
}
