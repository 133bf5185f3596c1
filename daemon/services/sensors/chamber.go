package sensors

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// ChamberAggregator combines up to two digital probe readings into the
// single averaged chamber temperature fed to the PID loop, tracking
// consecutive-invalid-cycle state for the sensor-fault transition.
type ChamberAggregator struct {
	cache           dto.CachedReading
	invalidStreak   int
	errorSensorFlag bool
}

// NewChamberAggregator creates an aggregator with no cached reading yet.
func NewChamberAggregator() *ChamberAggregator {
	return &ChamberAggregator{}
}

// Combine folds this cycle's two probe results (nil = absent/invalid) into
// an averaged chamber reading. With both valid, it averages; with one, it
// uses it; with none, it falls back to the cached last-good value. Returns
// the reading; whether the sensor-fault flag is now raised is reported by
// ErrorSensor.
func (c *ChamberAggregator) Combine(v1, v2 *float64) dto.ChamberReading {
	now := time.Now()

	var valid []float64
	if v1 != nil {
		valid = append(valid, *v1)
	}
	if v2 != nil {
		valid = append(valid, *v2)
	}

	if len(valid) > 0 {
		c.invalidStreak = 0
		c.errorSensorFlag = false

		sum := 0.0
		for _, v := range valid {
			sum += v
		}
		avg := sum / float64(len(valid))

		c.cache = dto.CachedReading{Value: avg, Timestamp: now, Valid: true}
		return dto.ChamberReading{Probe1: v1, Probe2: v2, Average: avg, FromCache: false, Timestamp: now}
	}

	c.invalidStreak++
	if c.invalidStreak >= constants.ChamberInvalidCyclesToFault {
		c.errorSensorFlag = true
	}

	return dto.ChamberReading{Average: c.cache.Value, FromCache: true, Timestamp: now}
}

// ErrorSensor reports whether three or more consecutive cycles have had no
// valid chamber reading.
func (c *ChamberAggregator) ErrorSensor() bool {
	return c.errorSensorFlag
}
