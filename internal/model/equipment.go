package model

// PlaceholderName is used when a feature carries no usable description.
const PlaceholderName = "Cannot find description!"

// CategoryElevator is the only equipment category the monitor reports on.
const CategoryElevator = "elevator"

// Equipment is one physical accessibility unit as reported by the upstream API.
type Equipment struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Working  *bool   `json:"working"` // nil when the API did not report a status
	Place    *string `json:"place"`
}

// IsWorking reports whether the equipment is known to be operational.
func (e Equipment) IsWorking() bool {
	return e.Working != nil && *e.Working
}

// IsBroken reports whether the equipment is known to be out of service.
// Unknown status is not broken.
func (e Equipment) IsBroken() bool {
	return e.Working != nil && !*e.Working
}

// IsUnknown reports whether the API gave no status for the equipment.
func (e Equipment) IsUnknown() bool {
	return e.Working == nil
}

// PlaceName returns the place qualifier, or "" when absent.
func (e Equipment) PlaceName() string {
	if e.Place == nil {
		return ""
	}
	return *e.Place
}

// Key identifies an equipment across runs.
func (e Equipment) Key() string {
	return e.Name + "|" + e.PlaceName()
}

// CountStatus tallies equipments by broken, working and unknown status.
func CountStatus(equipments []Equipment) (broken, working, unknown int) {
	for _, e := range equipments {
		switch {
		case e.IsBroken():
			broken++
		case e.IsWorking():
			working++
		default:
			unknown++
		}
	}
	return broken, working, unknown
}
