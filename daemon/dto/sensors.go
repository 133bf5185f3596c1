package dto

import "time"

// ChamberReading is published by the Sensors task after each acquisition
// cycle: the two raw digital-probe values (if present) plus the averaged
// value actually fed to the PID loop.
type ChamberReading struct {
	Probe1    *float64  `json:"probe1,omitempty"`
	Probe2    *float64  `json:"probe2,omitempty"`
	Average   float64   `json:"average"`
	FromCache bool      `json:"fromCache"`
	Timestamp time.Time `json:"timestamp"`
}

// MeatReading is published by the Sensors task after each NTC conversion.
type MeatReading struct {
	Value     float64   `json:"value"`
	Filtered  float64   `json:"filtered"`
	FromCache bool      `json:"fromCache"`
	Timestamp time.Time `json:"timestamp"`
}
