// Package cleaner runs the build-cache cleanup loop: prune, measure, compare
// the disk's used fraction against two thresholds, alert, sleep, repeat.
package cleaner

import (
	"errors"
	"fmt"

	"github.com/jamesainslie/docktool/pkg/docktool/usage"
)

// Default used-space fractions.
const (
	DefaultWarning   = 0.95
	DefaultEmergency = 0.999
)

// ErrInvalidThresholds is returned for thresholds outside 0 < warning <= emergency <= 1.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Level is the outcome of a threshold evaluation.
type Level int

// Evaluation levels in order of severity.
const (
	LevelNone Level = iota
	LevelWarning
	LevelEmergency
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelWarning:
		return "warning"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Thresholds are used-space fractions of the watched filesystem.
type Thresholds struct {
	Warning   float64
	Emergency float64
}

// DefaultThresholds returns warning 0.95 and emergency 0.999.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: DefaultWarning, Emergency: DefaultEmergency}
}

// Validate checks 0 < warning <= emergency <= 1.
func (t Thresholds) Validate() error {
	if t.Warning <= 0 || t.Warning > t.Emergency || t.Emergency > 1 {
		return fmt.Errorf("%w: warning=%g emergency=%g", ErrInvalidThresholds, t.Warning, t.Emergency)
	}
	return nil
}

// Evaluate compares the used fraction of disk with t. Emergency is checked
// first, so a disk past both thresholds is an emergency.
func Evaluate(disk usage.DiskReport, t Thresholds) Level {
	used := disk.UsedFraction()
	switch {
	case used >= t.Emergency:
		return LevelEmergency
	case used >= t.Warning:
		return LevelWarning
	default:
		return LevelNone
	}
}
