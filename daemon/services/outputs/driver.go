// Package outputs owns every physical actuator of the smokehouse: the
// three SSR heater channels, the fan GPIO, the smoke-fan PWM channel, and
// the buzzer. The byte-level PWM/GPIO driver is out of scope (the
// original firmware's ledcWrite/digitalWrite calls); a pinned Driver
// interface stands in for it so this package stays testable without real
// hardware.
package outputs

import "github.com/kdys14/smokehouse-controller/daemon/logger"

// Driver is the pinned hardware abstraction outputs writes through. A real
// deployment supplies a GPIO/PWM implementation; tests and the default
// build use LoggingDriver.
type Driver interface {
	WriteSSR(channel int, duty uint8)
	WriteFan(on bool)
	WriteSmokeFan(duty uint8)
	WriteBuzzer(on bool)
}

// LoggingDriver is a Driver that only logs, standing in for real hardware
// the way flashfs.NoopTFTDrawer stands in for a real display.
type LoggingDriver struct{}

func (LoggingDriver) WriteSSR(channel int, duty uint8) {
	logger.Debug("outputs: SSR%d duty=%d", channel, duty)
}

func (LoggingDriver) WriteFan(on bool) {
	logger.Debug("outputs: fan=%v", on)
}

func (LoggingDriver) WriteSmokeFan(duty uint8) {
	logger.Debug("outputs: smoke-fan duty=%d", duty)
}

func (LoggingDriver) WriteBuzzer(on bool) {
	logger.Debug("outputs: buzzer=%v", on)
}
