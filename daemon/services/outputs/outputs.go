package outputs

import (
	"math"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// Outputs owns outputMutex and heaterMutex plus every piece of actuator
// state protected by them: heater soft-enable staging, the cyclic fan
// phase, and the non-blocking buzzer.
type Outputs struct {
	driver Driver

	heaterMutex domain.BoundedMutex
	he          dto.HeaterEnable

	outputMutex domain.BoundedMutex
	fanOn       bool
	fanPhaseTs  time.Time

	buzzer buzzerState
}

type buzzerState struct {
	active           bool
	beepsRemaining   uint8
	onMs, offMs      time.Duration
	phaseOn          bool
	phaseEnd         time.Time
}

// New creates an Outputs bound to driver. driver must not be nil; pass
// LoggingDriver{} when no real hardware is wired.
func New(driver Driver) *Outputs {
	return &Outputs{driver: driver}
}

// InitHeaterEnable resets the soft-enable stagger. Called on every
// start/resume.
func (o *Outputs) InitHeaterEnable() {
	if !o.heaterMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: InitHeaterEnable: heaterMutex timeout")
		return
	}
	defer o.heaterMutex.Unlock()

	now := time.Now()
	o.he = dto.HeaterEnable{T1: now, T2: now, T3: now}
}

// ApplySoftEnable promotes heaters to enabled once their stagger delay has
// elapsed since the last InitHeaterEnable.
func (o *Outputs) ApplySoftEnable() {
	if !o.heaterMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: ApplySoftEnable: heaterMutex timeout")
		return
	}
	defer o.heaterMutex.Unlock()

	now := time.Now()
	if !o.he.H1 && now.Sub(o.he.T1) > constants.Heater1EnableDelay {
		o.he.H1 = true
	}
	if !o.he.H2 && now.Sub(o.he.T2) > constants.Heater2EnableDelay {
		o.he.H2 = true
	}
	if !o.he.H3 && now.Sub(o.he.T3) > constants.Heater3EnableDelay {
		o.he.H3 = true
	}
}

// AreHeatersReady reports whether all three heaters have completed their
// soft-enable stagger.
func (o *Outputs) AreHeatersReady() bool {
	if !o.heaterMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: AreHeatersReady: heaterMutex timeout")
		return false
	}
	defer o.heaterMutex.Unlock()
	return o.he.Ready()
}

// MapPowerToHeaters maps a PID output percentage and power mode onto the
// three SSR channel duties, clamping any not-yet-soft-enabled channel to 0,
// then writes the 8-bit PWM registers.
func (o *Outputs) MapPowerToHeaters(pidOutput float64, powerMode int) {
	p := clamp(pidOutput, constants.PIDOutputMin, constants.PIDOutputMax)

	var p1, p2, p3 float64
	switch powerMode {
	case 1:
		p1 = p
	case 2:
		if p <= 50 {
			p1 = p * 2
		} else {
			p1 = 100
			p2 = (p - 50) * 2
		}
	case 3:
		switch {
		case p <= 33:
			p1 = p * 3
		case p <= 66:
			p1 = 100
			p2 = (p - 33) * 3
		default:
			p1 = 100
			p2 = 100
			p3 = (p - 66) * 3
		}
	}

	if !o.heaterMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: MapPowerToHeaters: heaterMutex timeout")
		return
	}
	he := o.he
	o.heaterMutex.Unlock()

	if !he.H1 {
		p1 = 0
	}
	if !he.H2 {
		p2 = 0
	}
	if !he.H3 {
		p3 = 0
	}

	if !o.outputMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: MapPowerToHeaters: outputMutex timeout")
		return
	}
	defer o.outputMutex.Unlock()

	o.driver.WriteSSR(1, pwmByte(p1))
	o.driver.WriteSSR(2, pwmByte(p2))
	o.driver.WriteSSR(3, pwmByte(p3))
}

// pwmByte converts a 0..100 percentage to the 8-bit PWM register value.
func pwmByte(p float64) uint8 {
	return uint8(math.Round(clamp(p, 0, 100) * 255 / 100))
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// HandleFanLogic applies the fan policy for the current tick. fanMode=Off
// turns the fan off; On turns it on continuously; Cyclic alternates
// on/off according to onTime/offTime, tracking phase state internally.
func (o *Outputs) HandleFanLogic(fanMode dto.FanMode, onTime, offTime time.Duration) {
	switch fanMode {
	case dto.FanOff:
		o.writeFan(false)
	case dto.FanOn:
		o.writeFan(true)
	case dto.FanCyclic:
		now := time.Now()
		if o.fanPhaseTs.IsZero() {
			o.fanOn = true
			o.fanPhaseTs = now
			o.writeFan(true)
			return
		}
		if o.fanOn {
			if now.Sub(o.fanPhaseTs) >= onTime {
				o.fanOn = false
				o.fanPhaseTs = now
				o.writeFan(false)
			}
		} else {
			if now.Sub(o.fanPhaseTs) >= offTime {
				o.fanOn = true
				o.fanPhaseTs = now
				o.writeFan(true)
			}
		}
	}
}

func (o *Outputs) writeFan(on bool) {
	if !o.outputMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: writeFan: outputMutex timeout")
		return
	}
	defer o.outputMutex.Unlock()
	o.driver.WriteFan(on)
}

// WriteSmokeFan writes the smoke generator's PWM channel.
func (o *Outputs) WriteSmokeFan(duty uint8) {
	if !o.outputMutex.Lock(constants.MutexTimeout) {
		logger.Error("outputs: WriteSmokeFan: outputMutex timeout")
		return
	}
	defer o.outputMutex.Unlock()
	o.driver.WriteSmokeFan(duty)
}

// AllOutputsOff turns off every heater channel, the fan, and the smoke fan.
// Safety-critical: it executes even if outputMutex cannot be acquired
// within the bounded timeout, logging the failure rather than skipping
// the writes.
func (o *Outputs) AllOutputsOff() {
	locked := o.outputMutex.Lock(constants.MutexTimeout)
	if !locked {
		logger.Error("outputs: AllOutputsOff: outputMutex timeout, writing anyway")
	}

	o.driver.WriteSSR(1, 0)
	o.driver.WriteSSR(2, 0)
	o.driver.WriteSSR(3, 0)
	o.driver.WriteFan(false)
	o.driver.WriteSmokeFan(0)
	o.fanOn = false
	o.fanPhaseTs = time.Time{}

	if locked {
		o.outputMutex.Unlock()
	}
}
