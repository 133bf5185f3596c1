// Package constants provides the compiled-in engineering constants of the
// smokehouse controller: PID baseline gains, temperature limits, timing
// windows, and the static flash partition layout.
package constants

import "time"

const (
	// MaxSteps is the maximum number of steps a profile may contain.
	MaxSteps = 10

	// TChamberMin and TChamberMax bound a step's chamber setpoint, degrees C.
	TChamberMin = 20.0
	TChamberMax = 120.0

	// TMeatMin and TMeatMax bound a step's meat target temperature, degrees C.
	TMeatMin = 0.0
	TMeatMax = 100.0

	// FanCycleMinMs is the minimum allowed cyclic fan on/off duration.
	FanCycleMinMs = 1000

	// PID baseline gains (direct action), seeded but adaptively retuned.
	PIDBaseKp = 5.0
	PIDBaseKi = 0.3
	PIDBaseKd = 20.0

	// PIDOutputMin and PIDOutputMax clamp the PID controller output.
	PIDOutputMin = 0.0
	PIDOutputMax = 100.0

	// ControlTickInterval is the period of the Control task's loop.
	ControlTickInterval = 100 * time.Millisecond
	// SensorsTickInterval is the period of the Sensors task's loop.
	SensorsTickInterval = 100 * time.Millisecond
	// UITickInterval is the period of the UI task's loop.
	UITickInterval = 50 * time.Millisecond
	// WebTickInterval is the period of the Web task's internal poll loop.
	WebTickInterval = 20 * time.Millisecond
	// WiFiTickInterval is the period of the WiFi-link-maintenance task.
	WiFiTickInterval = 5 * time.Second
	// MonitorTickInterval is the period of the Monitor task's loop.
	MonitorTickInterval = 5 * time.Second

	// MaxProcessTime is the hard cap on a single run's total duration.
	MaxProcessTime = 24 * time.Hour

	// TMaxSoft is the chamber overheat threshold that forces PauseOverheat.
	TMaxSoft = 130.0

	// HeaterFaultWindow is the observation window for the heater-efficiency
	// supervisor.
	HeaterFaultWindow = 20 * time.Minute
	// HeaterFaultMinRise is the minimum chamber temperature rise required
	// over HeaterFaultWindow to avoid a heater-fault trip.
	HeaterFaultMinRise = 2.0
	// HeaterFaultDeltaT is the minimum (setpoint - chamber) gap that arms
	// the heater-efficiency supervisor.
	HeaterFaultDeltaT = 10.0
	// HeaterFaultPIDThreshold is the minimum PID output percentage that
	// arms the heater-efficiency supervisor.
	HeaterFaultPIDThreshold = 50.0

	// Heater soft-enable stagger delays after a start/resume.
	Heater1EnableDelay = 1 * time.Second
	Heater2EnableDelay = 2 * time.Second
	Heater3EnableDelay = 3 * time.Second

	// Fan cyclic defaults.
	FanDefaultOnTime  = 10 * time.Second
	FanDefaultOffTime = 60 * time.Second

	// NTC filter and model parameters.
	NTCFilterAlpha = 0.91
	NTCBeta        = 4350.0
	NTCMin         = -20.0
	NTCMax         = 250.0

	// Digital (one-wire) chamber probe pacing.
	DigitalConversionPeriod = 1200 * time.Millisecond
	DigitalConversionDelay  = 850 * time.Millisecond
	DigitalRereadDelay      = 10 * time.Millisecond
	DigitalSensorMin        = -20.0
	DigitalSensorMax        = 200.0
	DigitalSensorDisconnect = -127.0
	DigitalSensorArtifact   = 85.0
	DigitalSensorPowerOnRst = 127.0

	// ChamberInvalidCyclesToFault is the number of consecutive cycles with
	// no valid chamber reading that raises errorSensor.
	ChamberInvalidCyclesToFault = 3

	// MutexTimeout is the default bounded-wait for all named mutexes.
	MutexTimeout = 1 * time.Second

	// HardwareWatchdogTimeout is the coarse hardware-watchdog timeout.
	HardwareWatchdogTimeout = 10 * time.Second
	// HardwareWatchdogUploadTimeout is the widened timeout during firmware upload.
	HardwareWatchdogUploadTimeout = 60 * time.Second
	// TaskWatchdogTimeout is the per-task liveness staleness threshold.
	TaskWatchdogTimeout = 10 * time.Second

	// Flash filesystem geometry.
	FlashSectorSize  = 4096
	FlashTotalSizeMB = 16
	FlashTotalBytes  = FlashTotalSizeMB * 1024 * 1024
	FlashTotalSectors = FlashTotalBytes / FlashSectorSize

	FatPrimarySector = 0
	FatShadowSector  = 1
	FatMagic         = 0x46415432 // "FAT2" little-endian
	MaxFlashFiles    = 64
	FileEntrySize    = 60
	FilenameMaxLen   = 48

	ProfilePartitionStart = 2
	ProfilePartitionEnd   = 101
	BackupPartitionStart  = 102
	BackupPartitionEnd    = 121
	LogPartitionStart     = 122
	LogPartitionEnd       = 201

	// MaxFileSectors bounds a single file's contiguous sector run.
	MaxFileSectors = 10

	// AppendMaxBytes is the cap for the append-then-truncate-from-head policy.
	AppendMaxBytes     = 8192
	AppendTruncateKeep = AppendMaxBytes / 2

	// WSBufferSize is the per-client WebSocket send buffer.
	WSBufferSize = 256
	// EventBusBufferSize is the per-subscriber pubsub channel buffer.
	EventBusBufferSize = 64

	// HTTPAuthRealm is the HTTP Basic authentication realm for mutating endpoints.
	HTTPAuthRealm = "Wedzarnia"

	// ButtonDebounce is the local UI button debounce window.
	ButtonDebounce = 200 * time.Millisecond
	// AuthResetHold is how long Enter must be held on the Idle screen to
	// trigger a credential reset.
	AuthResetHold = 5 * time.Second

	// RemediationCooldown bounds how often the same fault may re-trigger
	// its logged remediation action.
	RemediationCooldown = 5 * time.Minute
)
