// Package sensors acquires chamber temperature from up to two digital
// one-wire probes and meat temperature from an analog NTC thermistor, plus
// door and overheat detection. The physical bus transport (one-wire
// timing, ADC sampling) is out of scope; a pinned Bus interface stands in
// for it.
package sensors

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// DigitalBus is the pinned one-wire transport. A real implementation talks
// to the DS18B20 probes; tests supply a fake.
type DigitalBus interface {
	// RequestConversion starts a non-blocking temperature conversion on
	// probe index (0 or 1).
	RequestConversion(probe int)
	// ReadTemperature returns the probe's last conversion result in
	// degrees C.
	ReadTemperature(probe int) float64
}

// digitalProbe paces one one-wire probe's request/read cycle.
type digitalProbe struct {
	lastRequest time.Time
	readDue     time.Time
	requested   bool
}

// DigitalPacer drives the 1200ms-conversion/850ms-read cadence for up to
// two digital probes, including the 85.0°C re-read-once artifact handling.
type DigitalPacer struct {
	bus    DigitalBus
	probes [2]digitalProbe
}

// NewDigitalPacer creates a pacer for up to two probes.
func NewDigitalPacer(bus DigitalBus) *DigitalPacer {
	return &DigitalPacer{bus: bus}
}

// Tick advances pacing for a probe and returns (value, valid, hasReading).
// hasReading is false when the cycle is still waiting on conversion or
// read-delay timers; valid is only meaningful when hasReading is true.
func (d *DigitalPacer) Tick(probe int) (value float64, valid bool, hasReading bool) {
	p := &d.probes[probe]
	now := time.Now()

	if !p.requested && now.Sub(p.lastRequest) >= constants.DigitalConversionPeriod {
		d.bus.RequestConversion(probe)
		p.lastRequest = now
		p.readDue = now.Add(constants.DigitalConversionDelay)
		p.requested = true
		return 0, false, false
	}

	if !p.requested || now.Before(p.readDue) {
		return 0, false, false
	}

	v := d.bus.ReadTemperature(probe)
	if v == constants.DigitalSensorArtifact {
		time.Sleep(constants.DigitalRereadDelay)
		v = d.bus.ReadTemperature(probe)
	}
	p.requested = false

	return v, isValidDigitalReading(v), true
}

// isValidDigitalReading reports whether v is a plausible probe reading: not
// the disconnected sentinel, not the 85.0 reset artifact, not the 127.0
// power-on-reset value, and within the absolute sensor range.
func isValidDigitalReading(v float64) bool {
	if v == constants.DigitalSensorDisconnect {
		return false
	}
	if v == constants.DigitalSensorArtifact {
		return false
	}
	if v == constants.DigitalSensorPowerOnRst {
		return false
	}
	return v >= constants.DigitalSensorMin && v <= constants.DigitalSensorMax
}
