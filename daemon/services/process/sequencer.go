package process

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// runSequencerLocked advances the Auto-mode step sequencer. A step
// completes when its time gate elapses AND, if it opts in, its meat-target
// gate is satisfied. Must be called with stateMutex held, only while in
// RunningAuto.
func (c *Controller) runSequencerLocked(now time.Time) {
	if c.st.currentStep >= len(c.st.profile.Steps) {
		return
	}
	step := c.st.profile.Steps[c.st.currentStep]

	elapsed := now.Sub(c.st.stepStartTime)
	timeGate := elapsed >= time.Duration(step.MinTime)*time.Second
	meatGate := !step.UseMeatTemp || c.st.tMeat >= step.TMeatTarget

	if !(timeGate && meatGate) {
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
}
