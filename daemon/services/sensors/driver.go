package sensors

import "github.com/kdys14/smokehouse-controller/daemon/logger"

// LoggingDigitalBus is a DigitalBus that only logs, standing in for the
// one-wire transport the way outputs.LoggingDriver stands in for the
// physical SSR/fan/buzzer GPIO.
type LoggingDigitalBus struct{}

func (LoggingDigitalBus) RequestConversion(probe int) {
	logger.Debug("sensors: digital probe %d conversion requested", probe)
}

func (LoggingDigitalBus) ReadTemperature(probe int) float64 {
	return 0
}

// LoggingADC is a stand-in ADC reporting a fixed mid-scale sample; it does
// not log.
type LoggingADC struct{}

func (LoggingADC) Sample() int {
	return 2048
}

func (LoggingADC) Max() int {
	return 4095
}

// LoggingDoorSwitch is a stand-in DoorSwitch that always reports closed; it
// does not log.
type LoggingDoorSwitch struct{}

func (LoggingDoorSwitch) IsOpen() bool {
	return false
}
