package process

import (
	"math"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// adaptivePid is a discrete PID controller with an adaptive-gain overlay.
// It is touched only from the Control task's own goroutine (never shared
// across tasks), so unlike Controller.st it carries no lock of its own.
type adaptivePid struct {
	kp, ki, kd             float64
	baseKp, baseKi, baseKd float64

	integral  float64
	prevError float64

	errorHistory   [10]float64
	historyIdx     int
	lastAdaptation time.Time
}

func newAdaptivePid() *adaptivePid {
	p := &adaptivePid{}
	p.resetGains()
	return p
}

func (p *adaptivePid) resetGains() {
	p.kp, p.ki, p.kd = constants.PIDBaseKp, constants.PIDBaseKi, constants.PIDBaseKd
	p.baseKp, p.baseKi, p.baseKd = constants.PIDBaseKp, constants.PIDBaseKi, constants.PIDBaseKd
}

// reset clears all PID state, called on every start/resume.
func (p *adaptivePid) reset() {
	p.integral = 0
	p.prevError = 0
	p.errorHistory = [10]float64{}
	p.historyIdx = 0
	p.lastAdaptation = time.Time{}
	p.resetGains()
}

// compute advances the PID by one control tick and returns the clamped
// output, direct action (positive error, i.e. setpoint above input,
// drives output up).
func (p *adaptivePid) compute(input, setpoint float64, dt time.Duration) float64 {
	errVal := setpoint - input
	dtSec := dt.Seconds()

	p.integral += errVal * dtSec
	var derivative float64
	if dtSec > 0 {
		derivative = (errVal - p.prevError) / dtSec
	}
	p.prevError = errVal

	out := p.kp*errVal + p.ki*p.integral + p.kd*derivative
	return clampF(out, constants.PIDOutputMin, constants.PIDOutputMax)
}

// tick runs the once-a-minute adaptive-gain re-evaluation. A no-op unless
// a full minute has elapsed since the last adaptation (the first call
// only seeds the timer).
func (p *adaptivePid) tick(now time.Time) {
	if p.lastAdaptation.IsZero() {
		p.lastAdaptation = now
		return
	}
	if now.Sub(p.lastAdaptation) < time.Minute {
		return
	}
	p.lastAdaptation = now

	p.errorHistory[p.historyIdx%10] = p.prevError
	p.historyIdx++

	mean, variance := p.errorStats()
	_ = mean

	switch {
	case variance > 5.0:
		p.kp = p.baseKp * 0.8
		p.ki = p.baseKi * 0.5
		p.kd = p.baseKd * 1.2
	case variance < 0.5 && math.Abs(p.prevError) < 2.0:
		p.kp = p.baseKp * 1.2
		p.ki = p.baseKi * 0.8
		p.kd = p.baseKd * 0.8
	default:
		p.kp = p.baseKp
		p.ki = p.baseKi
		p.kd = p.baseKd
	}
}

// errorStats returns mean and population variance over history samples
// with |e| < 50.
func (p *adaptivePid) errorStats() (mean, variance float64) {
	sum := 0.0
	n := 0
	for _, e := range p.errorHistory {
		if math.Abs(e) < 50 {
			sum += e
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)

	sqSum := 0.0
	for _, e := range p.errorHistory {
		if math.Abs(e) < 50 {
			sqSum += (e - mean) * (e - mean)
		}
	}
	variance = sqSum / float64(n)
	return mean, variance
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
