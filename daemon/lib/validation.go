package lib

import (
	"fmt"
	"strings"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// ClampFloat clamps v to [min, max].
func ClampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampInt clamps v to [min, max].
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampTSet clamps a step's chamber setpoint to the allowed range.
func ClampTSet(v float64) float64 {
	return ClampFloat(v, constants.TChamberMin, constants.TChamberMax)
}

// ClampTMeatTarget clamps a step's meat target temperature.
func ClampTMeatTarget(v float64) float64 {
	return ClampFloat(v, constants.TMeatMin, constants.TMeatMax)
}

// ClampPowerMode clamps powerMode to {1,2,3}.
func ClampPowerMode(v int) int {
	return ClampInt(v, 1, 3)
}

// ClampFanMode clamps fanMode to {0,1,2}.
func ClampFanMode(v int) int {
	return ClampInt(v, 0, 2)
}

// ClampCycleMs clamps a cyclic fan on/off duration to the configured floor.
func ClampCycleMs(v int) int {
	if v < constants.FanCycleMinMs {
		return constants.FanCycleMinMs
	}
	return v
}

// ClampSmokePwm clamps a smoke PWM byte to [0,255].
func ClampSmokePwm(v int) uint8 {
	return uint8(ClampInt(v, 0, 255))
}

// IsGitHubPath reports whether a profile path is meant to be fetched over
// HTTPS from the external collaborator rather than read from FlashFS.
func IsGitHubPath(path string) bool {
	return strings.HasPrefix(path, "github:")
}

// GitHubSubPath strips the "github:" prefix, yielding the path to append to
// the fixed base URL.
func GitHubSubPath(path string) string {
	return strings.TrimPrefix(path, "github:")
}

// ValidateNonEmpty validates that a string is not empty or whitespace-only.
func ValidateNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateMaxLength validates that a string does not exceed maximum length.
func ValidateMaxLength(value, fieldName string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%s too long: maximum %d characters, got %d", fieldName, maxLength, len(value))
	}
	return nil
}
