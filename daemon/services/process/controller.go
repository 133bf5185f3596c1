// Package process implements the Control task: the PID loop, adaptive
// gain tuning, three-heater power mapping dispatch, step sequencer,
// heater-efficiency supervisor, and predictive fan policy, all folded into
// a single owned Controller record per the re-architecture in the design
// notes (a handful of lock-protected regions instead of process-wide
// globals).
package process

import (
	"time"

	"github.com/cskr/pubsub"
	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/outputs"
	"github.com/kdys14/smokehouse-controller/daemon/services/sensors"
)

// TopicControllerState is the event-bus topic Controller publishes a fresh
// ControllerStateSnapshot to after every tick.
var TopicControllerState = domain.NewTopic[dto.ControllerStateSnapshot]("process.state")

// TopicAlert is the event-bus topic fault notifications are published to.
var TopicAlert = domain.NewTopic[dto.Alert]("process.alert")

// procState is the single lock-protected region shared with the Sensors,
// Web, and UI tasks. Every other field on Controller (the PID, heater-fault
// monitor, fan-trend buffer) is private to the Control task's own goroutine
// and needs no lock, mirroring how the original firmware's single Process
// task owned those statics outright.
type procState struct {
	state       dto.ProcessState
	mode        dto.RunMode
	lastRunMode dto.RunMode

	profile           dto.Profile
	activeProfileName string
	currentStep       int

	tChamber, tChamber1, tChamber2 float64
	tMeat                          float64
	tSet                           float64

	powerMode            int
	manualSmokePwm       uint8
	fanMode              dto.FanMode
	fanOnTimeMs          int
	fanOffTimeMs         int
	effectiveFanOnTimeMs int
	effectiveFanOffTimeMs int

	doorOpen      bool
	errorSensor   bool
	errorOverheat bool
	errorProfile  bool

	processStartTime time.Time
	stepStartTime    time.Time

	stats dto.ProcessStats

	// pidKp/pidKi/pidKd mirror the Control-task-private adaptivePid's
	// current gains, copied in under stateMutex once per tick so
	// PIDParams can be read safely from any task.
	pidKp, pidKi, pidKd float64
}

// Controller owns the Process control loop. Create one with New and call
// Tick once per Control-task tick (100ms); UpdateChamber/UpdateMeat/
// UpdateDoor are called by the Sensors task to feed it fresh readings.
type Controller struct {
	out *outputs.Outputs
	hub *pubsub.PubSub

	stateMutex domain.BoundedMutex
	st         procState

	// Control-task-private: touched only inside Tick, never guarded by
	// stateMutex.
	pid             *adaptivePid
	heaterFault     heaterFaultMonitor
	fanTrend        fanTrendBuffer
	lastSeenDoorOpen bool
	runtimeAccumMs  int64
	heatingAccumMs  int64

	cmds chan Command
}

// New creates a Controller in Idle, driving out for every actuator write.
// hub may be nil if no event-bus publication is wanted (e.g. in tests).
func New(out *outputs.Outputs, hub *pubsub.PubSub) *Controller {
	return &Controller{
		out:  out,
		hub:  hub,
		pid:  newAdaptivePid(),
		cmds: make(chan Command, 16),
		st: procState{
			state: dto.Idle,
			mode:  dto.ModeAuto,
		},
	}
}

// UpdateChamber folds a fresh chamber reading and sensor-fault flag into
// shared state. Called by the Sensors task.
func (c *Controller) UpdateChamber(reading dto.ChamberReading, errorSensor bool) {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: UpdateChamber: stateMutex timeout")
		return
	}
	defer c.stateMutex.Unlock()

	c.st.tChamber = reading.Average
	if reading.Probe1 != nil {
		c.st.tChamber1 = *reading.Probe1
	}
	if reading.Probe2 != nil {
		c.st.tChamber2 = *reading.Probe2
	}
	c.st.errorSensor = errorSensor
}

// UpdateMeat folds a fresh meat-probe reading into shared state.
func (c *Controller) UpdateMeat(reading dto.MeatReading) {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: UpdateMeat: stateMutex timeout")
		return
	}
	defer c.stateMutex.Unlock()
	c.st.tMeat = reading.Filtered
}

// UpdateDoor folds the current door-open level into shared state. Edge
// detection against the previous tick happens inside Tick itself, since
// it must be evaluated relative to the Running* gate, not independently.
func (c *Controller) UpdateDoor(open bool) {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: UpdateDoor: stateMutex timeout")
		return
	}
	defer c.stateMutex.Unlock()
	c.st.doorOpen = open
}

// Snapshot returns a point-in-time copy of controller state, safe to read
// concurrently from any task.
func (c *Controller) Snapshot() dto.ControllerStateSnapshot {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: Snapshot: stateMutex timeout")
		return dto.ControllerStateSnapshot{}
	}
	defer c.stateMutex.Unlock()
	return c.buildSnapshotLocked(time.Now())
}

// PIDParams returns the adaptive PID's current gains, the Go stand-in for
// the original firmware's getPidParameters() debug string.
func (c *Controller) PIDParams() (kp, ki, kd float64) {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: PIDParams: stateMutex timeout")
		return 0, 0, 0
	}
	defer c.stateMutex.Unlock()
	return c.st.pidKp, c.st.pidKi, c.st.pidKd
}

func (c *Controller) buildSnapshotLocked(now time.Time) dto.ControllerStateSnapshot {
	var elapsed int64
	if !c.st.processStartTime.IsZero() {
		elapsed = int64(now.Sub(c.st.processStartTime).Seconds())
	}

	var stepName string
	var stepTotalTime int
	if c.st.currentStep >= 0 && c.st.currentStep < len(c.st.profile.Steps) {
		step := c.st.profile.Steps[c.st.currentStep]
		stepName = step.Name
		stepTotalTime = step.MinTime
	}

	return dto.ControllerStateSnapshot{
		State: c.st.state,
		Mode:  c.st.mode,

		TChamber:  c.st.tChamber,
		TChamber1: c.st.tChamber1,
		TChamber2: c.st.tChamber2,
		TMeat:     c.st.tMeat,
		TSet:      c.st.tSet,

		PowerMode:      c.st.powerMode,
		ManualSmokePwm: c.st.manualSmokePwm,
		FanMode:        c.st.fanMode,
		FanOnTimeMs:    c.st.effectiveFanOnTimeMs,
		FanOffTimeMs:   c.st.effectiveFanOffTimeMs,

		DoorOpen:      c.st.doorOpen,
		ErrorSensor:   c.st.errorSensor,
		ErrorOverheat: c.st.errorOverheat,
		ErrorProfile:  c.st.errorProfile,

		ActiveProfile:    c.st.activeProfileName,
		StepName:         stepName,
		StepCount:        len(c.st.profile.Steps),
		CurrentStep:      c.st.currentStep,
		StepTotalTimeSec: stepTotalTime,

		ProcessStartTime: c.st.processStartTime,
		StepStartTime:    c.st.stepStartTime,

		ElapsedTimeSec:          elapsed,
		RemainingProcessTimeSec: int64(c.st.stats.RemainingSec),

		Stats: c.st.stats,
	}
}

// Tick runs one 100ms Control-task cycle: drains queued commands,
// evaluates the door/sensor/overheat/runtime-cap pause transitions,
// dispatches the per-state control logic, updates stats, and publishes a
// fresh snapshot.
func (c *Controller) Tick(now time.Time) {
	if !c.stateMutex.Lock(constants.MutexTimeout) {
		logger.Error("process: Tick: stateMutex acquisition timed out")
		return
	}
	defer c.stateMutex.Unlock()

	c.drainCommandsLocked(now)

	running := c.st.state == dto.RunningAuto || c.st.state == dto.RunningManual

	doorEdgeOpened := c.st.doorOpen && !c.lastSeenDoorOpen
	c.lastSeenDoorOpen = c.st.doorOpen

	if running {
		if !c.st.processStartTime.IsZero() && now.Sub(c.st.processStartTime) > constants.MaxProcessTime {
			c.st.lastRunMode = c.st.mode
			c.pauseLocked(dto.PauseUser, now)
			c.out.Beep(1, 200*time.Millisecond, 200*time.Millisecond)
			c.publishAlertLocked(dto.AlertTaskHang, "process time exceeded 24h cap", false, now)
			c.updateStatsLocked(now, 0)
			c.publishLocked(now)
			return
		}
		if doorEdgeOpened {
			c.st.lastRunMode = c.st.mode
			c.pauseLocked(dto.PauseDoor, now)
			c.st.stats.PauseCount++
			c.out.Beep(1, 200*time.Millisecond, 200*time.Millisecond)
			c.publishAlertLocked(dto.AlertDoor, "door opened during run", false, now)
			c.updateStatsLocked(now, 0)
			c.publishLocked(now)
			return
		}
		if c.st.errorSensor {
			c.st.lastRunMode = c.st.mode
			c.pauseLocked(dto.PauseSensor, now)
			c.st.stats.PauseCount++
			c.publishAlertLocked(dto.AlertChamberSensorFail, "chamber sensor fault", false, now)
			c.updateStatsLocked(now, 0)
			c.publishLocked(now)
			return
		}
		if sensors.IsOverheat(c.st.tChamber) {
			c.st.lastRunMode = c.st.mode
			c.st.errorOverheat = true
			c.pauseLocked(dto.PauseOverheat, now)
			c.st.stats.PauseCount++
			c.publishAlertLocked(dto.AlertOverheat, "chamber overheat", true, now)
			c.updateStatsLocked(now, 0)
			c.publishLocked(now)
			return
		}
		c.st.errorOverheat = false
	}

	var output float64
	switch c.st.state {
	case dto.RunningAuto:
		output = c.runControlLoopLocked(now)
		c.runSequencerLocked(now)
		c.checkHeaterEfficiencyLocked(now, output)
	case dto.RunningManual:
		output = c.runControlLoopLocked(now)
		c.checkHeaterEfficiencyLocked(now, output)
	case dto.SoftResume:
		output = c.runControlLoopLocked(now)
		if c.out.AreHeatersReady() {
			c.heaterFault.reset()
			if c.st.lastRunMode == dto.ModeManual {
				c.st.state = dto.RunningManual
			} else {
				c.st.state = dto.RunningAuto
			}
		}
	case dto.PauseDoor:
		c.out.AllOutputsOff()
		if !c.st.doorOpen {
			c.st.state = dto.SoftResume
			c.out.InitHeaterEnable()
		}
	case dto.PauseSensor:
		c.out.AllOutputsOff()
		if !c.st.errorSensor {
			c.st.state = dto.SoftResume
			c.out.InitHeaterEnable()
		}
	case dto.Idle, dto.PauseOverheat, dto.PauseUser, dto.PauseHeaterFault, dto.ErrorProfile:
		c.out.AllOutputsOff()
	}

	// checkHeaterEfficiencyLocked may have just tripped PauseHeaterFault;
	// surface it on the bus the same tick.
	if c.st.state == dto.PauseHeaterFault {
		c.publishAlertLocked(dto.AlertHeaterFault, "heater efficiency fault", true, now)
	}

	c.updateStatsLocked(now, output)
	c.publishLocked(now)
}

// runControlLoopLocked runs the PID/soft-enable/mapping/fan/buzzer chain
// shared by RunningAuto, RunningManual, and SoftResume, and returns the
// PID output percentage for the caller's stats/heater-fault bookkeeping.
func (c *Controller) runControlLoopLocked(now time.Time) float64 {
	output := c.pid.compute(c.st.tChamber, c.st.tSet, constants.ControlTickInterval)
	c.pid.tick(now)
	c.st.pidKp, c.st.pidKi, c.st.pidKd = c.pid.kp, c.pid.ki, c.pid.kd

	c.out.ApplySoftEnable()
	c.out.MapPowerToHeaters(output, c.st.powerMode)
	c.out.WriteSmokeFan(c.st.manualSmokePwm)

	c.fanTrend.add(c.st.tChamber)
	c.applyFanPolicyLocked()
	c.out.HandleFanLogic(
		c.st.fanMode,
		time.Duration(c.st.effectiveFanOnTimeMs)*time.Millisecond,
		time.Duration(c.st.effectiveFanOffTimeMs)*time.Millisecond,
	)
	c.out.HandleBuzzer()

	return output
}

// applyFanPolicyLocked adjusts the "effective" cyclic fan durations from
// the trend buffer, leaving the profile/manual "configured" durations
// untouched (resolves the design notes' open question about the original
// firmware silently mutating fanOnTime/fanOffTime in place).
func (c *Controller) applyFanPolicyLocked() {
	if c.st.fanMode != dto.FanCyclic {
		c.st.effectiveFanOnTimeMs = c.st.fanOnTimeMs
		c.st.effectiveFanOffTimeMs = c.st.fanOffTimeMs
		return
	}

	on := time.Duration(c.st.effectiveFanOnTimeMs) * time.Millisecond
	off := time.Duration(c.st.effectiveFanOffTimeMs) * time.Millisecond
	if on <= 0 {
		on = time.Duration(c.st.fanOnTimeMs) * time.Millisecond
	}
	if off <= 0 {
		off = time.Duration(c.st.fanOffTimeMs) * time.Millisecond
	}

	trend := c.fanTrend.trend()
	switch {
	case trend > 0.5:
		on = minDuration(scaleDuration(on, 1.5), 30*time.Second)
		off = maxDuration(scaleDuration(off, 0.7), 10*time.Second)
	case trend < -0.2:
		on = maxDuration(scaleDuration(on, 0.7), 10*time.Second)
		off = minDuration(scaleDuration(off, 1.5), 90*time.Second)
	case abs(trend) < 0.1 && abs(c.st.tChamber-c.st.tSet) < 3.0:
		on = 10 * time.Second
		off = 60 * time.Second
	}

	c.st.effectiveFanOnTimeMs = int(on.Milliseconds())
	c.st.effectiveFanOffTimeMs = int(off.Milliseconds())
}

// checkHeaterEfficiencyLocked evaluates the heater-efficiency supervisor
// and trips PauseHeaterFault on a stalled rise.
func (c *Controller) checkHeaterEfficiencyLocked(now time.Time, pidOutput float64) {
	running := c.st.state == dto.RunningAuto || c.st.state == dto.RunningManual
	if c.heaterFault.tick(now, running, c.st.tSet, c.st.tChamber, pidOutput) {
		c.st.state = dto.PauseHeaterFault
		c.st.stats.PauseCount++
		c.out.AllOutputsOff()
		c.out.Beep(5, 400*time.Millisecond, 200*time.Millisecond)
		logger.Warning("process: heater-efficiency fault, tChamber stalled at %.1f", c.st.tChamber)
	}
}

func (c *Controller) updateStatsLocked(now time.Time, pidOutput float64) {
	runningLike := c.st.state == dto.RunningAuto || c.st.state == dto.RunningManual || c.st.state == dto.SoftResume
	tickMs := int64(constants.ControlTickInterval.Milliseconds())

	if runningLike {
		c.runtimeAccumMs += tickMs
		if pidOutput > 0 {
			c.heatingAccumMs += tickMs
		}
	}

	c.st.stats.TotalRuntimeSec = c.runtimeAccumMs / 1000
	c.st.stats.ActiveHeatingSec = c.heatingAccumMs / 1000
	c.st.stats.LastUpdate = now
	c.st.stats.TotalPlannedSec = c.st.profile.TotalPlannedSeconds()

	if runningLike && !c.st.processStartTime.IsZero() {
		elapsed := int64(now.Sub(c.st.processStartTime).Seconds())
		remaining := int64(c.st.stats.TotalPlannedSec) - elapsed
		if remaining < 0 {
			remaining = 0
		}
		c.st.stats.RemainingSec = int(remaining)
	}

	const emaAlpha = 0.1
	if c.st.stats.AvgTemperatureEMA == 0 {
		c.st.stats.AvgTemperatureEMA = c.st.tChamber
	} else {
		c.st.stats.AvgTemperatureEMA = emaAlpha*c.st.tChamber + (1-emaAlpha)*c.st.stats.AvgTemperatureEMA
	}
}

func (c *Controller) publishLocked(now time.Time) {
	if c.hub == nil {
		return
	}
	domain.Publish(c.hub, TopicControllerState, c.buildSnapshotLocked(now))
}

func (c *Controller) publishAlertLocked(kind dto.AlertKind, message string, fatal bool, now time.Time) {
	if c.hub == nil {
		return
	}
	domain.Publish(c.hub, TopicAlert, dto.Alert{Kind: kind, Message: message, Fatal: fatal, Timestamp: now})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
