package actuator

import "fmt"

// Range bounds a target, e.g. the pitch or yaw excursion of a turret.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Clamp returns v limited to [r.Min, r.Max].
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Validate checks that the range is not inverted.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("range min %v exceeds max %v", r.Min, r.Max)
	}
	return nil
}
