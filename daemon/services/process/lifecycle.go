package process

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/lib"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// applyCommandLocked applies one boundary-task command. Must be called
// with stateMutex held.
func (c *Controller) applyCommandLocked(cmd Command, now time.Time) {
	switch cmd.Kind {
	case CmdStartAuto:
		c.startAutoLocked(cmd.Profile, now)
	case CmdStartManual:
		c.startManualLocked(now)
	case CmdStop:
		c.stopLocked(now)
	case CmdSetManual:
		c.setManualLocked(cmd, now)
	case CmdNextStep:
		c.forceNextStepLocked(now)
	case CmdResetTimer:
		c.resetStepTimerLocked(now)
	}
}

// forceNextStepLocked advances the Auto-mode sequencer past its current
// step immediately, ignoring the time and meat gates runSequencerLocked
// would otherwise enforce. No-op outside RunningAuto.
func (c *Controller) forceNextStepLocked(now time.Time) {
	if c.st.state != dto.RunningAuto {
		return
	}
	if c.st.currentStep >= len(c.st.profile.Steps) {
		return
	}

	c.st.currentStep++
	c.st.stats.StepChanges++

	if c.st.currentStep >= len(c.st.profile.Steps) {
		c.st.state = dto.PauseUser
		c.out.AllOutputsOff()
		c.out.Beep(3, 200*time.Millisecond, 200*time.Millisecond)
		return
	}

	c.applyCurrentStepLocked(now)
	c.heaterFault.reset()
	logger.Info("process: forced next_step -> %d/%d", c.st.currentStep+1, len(c.st.profile.Steps))
}

// resetStepTimerLocked restarts the current Auto-mode step's elapsed-time
// clock without otherwise disturbing its setpoints. No-op outside
// RunningAuto.
func (c *Controller) resetStepTimerLocked(now time.Time) {
	if c.st.state != dto.RunningAuto {
		return
	}
	c.st.stepStartTime = now
	logger.Info("process: timer reset for step %d/%d", c.st.currentStep+1, len(c.st.profile.Steps))
}

func (c *Controller) startAutoLocked(profile dto.Profile, now time.Time) {
	if len(profile.Steps) == 0 {
		c.st.errorProfile = true
		c.st.state = dto.ErrorProfile
		logger.Error("process: start_auto with zero-step profile %q, entering ErrorProfile", profile.Name)
		return
	}

	c.st.errorProfile = false
	c.st.profile = profile
	c.st.activeProfileName = profile.Name
	c.st.currentStep = 0
	c.applyCurrentStepLocked(now)

	c.resetStatsLocked()
	c.pid.reset()
	c.heaterFault.reset()
	c.fanTrend = fanTrendBuffer{}
	c.out.InitHeaterEnable()

	c.st.mode = dto.ModeAuto
	c.st.processStartTime = now
	c.lastSeenDoorOpen = c.st.doorOpen
	c.st.state = dto.RunningAuto

	logger.Info("process: start_auto profile=%q steps=%d", profile.Name, len(profile.Steps))
}

func (c *Controller) startManualLocked(now time.Time) {
	c.st.tSet = 70
	c.st.powerMode = 2
	c.st.manualSmokePwm = 0
	c.st.fanMode = dto.FanOn
	c.st.fanOnTimeMs = int(constants.FanDefaultOnTime.Milliseconds())
	c.st.fanOffTimeMs = int(constants.FanDefaultOffTime.Milliseconds())
	c.st.effectiveFanOnTimeMs = c.st.fanOnTimeMs
	c.st.effectiveFanOffTimeMs = c.st.fanOffTimeMs

	c.resetStatsLocked()
	c.pid.reset()
	c.heaterFault.reset()
	c.fanTrend = fanTrendBuffer{}
	c.out.InitHeaterEnable()

	c.st.mode = dto.ModeManual
	c.st.processStartTime = now
	c.lastSeenDoorOpen = c.st.doorOpen
	c.st.state = dto.RunningManual

	logger.Info("process: start_manual tSet=%.1f power=%d", c.st.tSet, c.st.powerMode)
}

func (c *Controller) stopLocked(now time.Time) {
	c.st.state = dto.Idle
	c.st.errorOverheat = false
	c.st.errorProfile = false
	c.heaterFault.reset()
	c.out.AllOutputsOff()
	logger.Info("process: user stop, returning to Idle")
}

func (c *Controller) setManualLocked(cmd Command, now time.Time) {
	if cmd.ManualTSet != nil {
		c.st.tSet = lib.ClampTSet(*cmd.ManualTSet)
	}
	if cmd.ManualPower != nil {
		c.st.powerMode = lib.ClampPowerMode(*cmd.ManualPower)
	}
	if cmd.ManualSmokePwm != nil {
		c.st.manualSmokePwm = *cmd.ManualSmokePwm
	}
	if cmd.ManualFanMode != nil {
		c.st.fanMode = *cmd.ManualFanMode
	}
	if cmd.ManualFanOnMs != nil {
		c.st.fanOnTimeMs = lib.ClampCycleMs(*cmd.ManualFanOnMs)
		c.st.effectiveFanOnTimeMs = c.st.fanOnTimeMs
	}
	if cmd.ManualFanOffMs != nil {
		c.st.fanOffTimeMs = lib.ClampCycleMs(*cmd.ManualFanOffMs)
		c.st.effectiveFanOffTimeMs = c.st.fanOffTimeMs
	}
}

// applyCurrentStepLocked copies the now-current profile step's setpoint,
// power, smoke, and fan parameters into state, matching the original
// firmware's applyCurrentStep().
func (c *Controller) applyCurrentStepLocked(now time.Time) {
	step := c.st.profile.Steps[c.st.currentStep]
	c.st.tSet = step.TSet
	c.st.powerMode = step.PowerMode
	c.st.manualSmokePwm = step.SmokePwm
	c.st.fanMode = step.FanModeVal
	c.st.fanOnTimeMs = step.FanOnTimeMs
	c.st.fanOffTimeMs = step.FanOffTimeMs
	c.st.effectiveFanOnTimeMs = step.FanOnTimeMs
	c.st.effectiveFanOffTimeMs = step.FanOffTimeMs
	c.st.stepStartTime = now
}

func (c *Controller) resetStatsLocked() {
	c.st.stats = dto.ProcessStats{}
	c.runtimeAccumMs = 0
	c.heatingAccumMs = 0
}

// pauseLocked transitions into newState and immediately cuts every
// output, matching the safety framing of allOutputsOff as a trump card
// that runs on every pause entry.
func (c *Controller) pauseLocked(newState dto.ProcessState, now time.Time) {
	c.st.state = newState
	c.out.AllOutputsOff()
}
