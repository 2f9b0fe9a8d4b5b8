package servo

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// MotorCalibration holds calibration data for a single servo.
type MotorCalibration struct {
	ID           int `json:"id" yaml:"id"`
	DriveMode    int `json:"drive_mode" yaml:"drive_mode,omitempty"`
	HomingOffset int `json:"homing_offset" yaml:"homing_offset,omitempty"`
	RangeMin     int `json:"range_min" yaml:"range_min"`
	RangeMax     int `json:"range_max" yaml:"range_max"`
}

// Calibration holds calibration data for all servos, keyed by actuator id.
type Calibration map[string]MotorCalibration

// LoadCalibration loads calibration data from a LeRobot style JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var cal Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}
	return cal, nil
}

// Normalize converts a raw servo position to a normalized value in the range [-100, 100].
func (c MotorCalibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*200 - 100
}

// Denormalize converts a normalized value [-100, 100] to a raw servo position.
func (c MotorCalibration) Denormalize(norm float64) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((norm+100)/200*rangeSize) + c.RangeMin
}

// MotorIDs returns the servo IDs of the calibration in ascending order.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	for _, mc := range c {
		ids = append(ids, mc.ID)
	}
	sort.Ints(ids)
	return ids
}

// ByID returns the actuator id and calibration for a given servo ID.
func (c Calibration) ByID(id int) (string, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}

// Validate checks that servo IDs are unique and ranges are not empty.
func (c Calibration) Validate() error {
	seen := make(map[int]string, len(c))
	for name, mc := range c {
		if other, ok := seen[mc.ID]; ok {
			return fmt.Errorf("servo %d used by %q and %q", mc.ID, other, name)
		}
		seen[mc.ID] = name
		if mc.RangeMax <= mc.RangeMin {
			return fmt.Errorf("%q: range_max %d must exceed range_min %d", name, mc.RangeMax, mc.RangeMin)
		}
	}
	return nil
}
