package process

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// CommandKind discriminates the mutations the Web and UI tasks may request
// of the Control task. Boundary tasks never mutate Controller state
// directly; they enqueue a Command instead, breaking the Process<->Web/UI
// cycle the design notes call out.
type CommandKind int

const (
	CmdStartAuto CommandKind = iota
	CmdStartManual
	CmdStop
	CmdSetManual
	CmdNextStep
	CmdResetTimer
)

// Command is one boundary-task request, applied by the Control task at
// the start of its next tick.
type Command struct {
	Kind    CommandKind
	Profile dto.Profile

	ManualTSet     *float64
	ManualPower    *int
	ManualSmokePwm *uint8
	ManualFanMode  *dto.FanMode
	ManualFanOnMs  *int
	ManualFanOffMs *int
}

// StartAutoCommand requests a transition into RunningAuto with profile loaded.
func StartAutoCommand(profile dto.Profile) Command {
	return Command{Kind: CmdStartAuto, Profile: profile}
}

// StartManualCommand requests a transition into RunningManual with the
// compiled-in manual defaults.
func StartManualCommand() Command {
	return Command{Kind: CmdStartManual}
}

// StopCommand requests an immediate return to Idle from any state.
func StopCommand() Command {
	return Command{Kind: CmdStop}
}

// SetManualCommand requests a partial update of the manual setpoints; nil
// fields are left unchanged.
func SetManualCommand(tSet *float64, power *int, smoke *uint8, fanMode *dto.FanMode, fanOnMs, fanOffMs *int) Command {
	return Command{
		Kind:           CmdSetManual,
		ManualTSet:     tSet,
		ManualPower:    power,
		ManualSmokePwm: smoke,
		ManualFanMode:  fanMode,
		ManualFanOnMs:  fanOnMs,
		ManualFanOffMs: fanOffMs,
	}
}

// NextStepCommand requests an immediate, forced advance past the current
// Auto-mode step, bypassing its time/meat gates.
func NextStepCommand() Command {
	return Command{Kind: CmdNextStep}
}

// ResetTimerCommand requests the current Auto-mode step's elapsed timer be
// restarted from now, without changing the step itself.
func ResetTimerCommand() Command {
	return Command{Kind: CmdResetTimer}
}

// Enqueue submits cmd for processing on the next Control tick. Returns
// false if the command queue is full, matching the bounded,
// never-block discipline used throughout the shared-state protocol.
func (c *Controller) Enqueue(cmd Command) bool {
	select {
	case c.cmds <- cmd:
		return true
	default:
		return false
	}
}

// drainCommandsLocked applies every currently queued command. Must be
// called with stateMutex held.
func (c *Controller) drainCommandsLocked(now time.Time) {
	for {
		select {
		case cmd := <-c.cmds:
			c.applyCommandLocked(cmd, now)
		default:
			return
		}
	}
}
