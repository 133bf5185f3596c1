package process

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// heaterFaultMonitor watches for heaters that are commanded hard but
// failing to raise chamber temperature. Control-task-private, like
// adaptivePid.
type heaterFaultMonitor struct {
	monitoring  bool
	tempAtStart float64
	windowStart time.Time
}

func (m *heaterFaultMonitor) reset() {
	*m = heaterFaultMonitor{}
}

// tick evaluates one control tick and reports whether a heater fault
// should now be raised. The three activation conditions (running, gap
// from setpoint, PID output) are re-checked every tick; when any ceases
// to hold, monitoring clears silently.
func (m *heaterFaultMonitor) tick(now time.Time, running bool, tSet, tChamber, pidOutput float64) bool {
	active := running &&
		(tSet-tChamber) > constants.HeaterFaultDeltaT &&
		pidOutput > constants.HeaterFaultPIDThreshold

	if !active {
		if m.monitoring {
			m.reset()
		}
		return false
	}

	if !m.monitoring {
		m.monitoring = true
		m.tempAtStart = tChamber
		m.windowStart = now
		return false
	}

	if now.Sub(m.windowStart) < constants.HeaterFaultWindow {
		return false
	}

	if tChamber-m.tempAtStart < constants.HeaterFaultMinRise {
		return true
	}

	// Sufficient rise: slide the window forward instead of tripping.
	m.tempAtStart = tChamber
	m.windowStart = now
	return false
}
