package outputs

import "time"

// Beep starts a non-blocking beep pattern: count on/off cycles of onMs/offMs
// each. A call while a pattern is already active is ignored, matching the
// original firmware's "buzzerActive guard" behavior — callers that need a
// fresh pattern must wait for the current one to finish.
func (o *Outputs) Beep(count uint8, onMs, offMs time.Duration) {
	if o.buzzer.active {
		return
	}
	o.buzzer = buzzerState{
		active:         true,
		beepsRemaining: count,
		onMs:           onMs,
		offMs:          offMs,
		phaseOn:        true,
		phaseEnd:       time.Now().Add(onMs),
	}
	o.driver.WriteBuzzer(true)
}

// HandleBuzzer advances the buzzer state machine by one tick. Must be
// called periodically from the owning task's loop (Control); it never
// blocks.
func (o *Outputs) HandleBuzzer() {
	if !o.buzzer.active {
		return
	}
	now := time.Now()
	if now.Before(o.buzzer.phaseEnd) {
		return
	}

	if o.buzzer.phaseOn {
		o.driver.WriteBuzzer(false)
		o.buzzer.beepsRemaining--
		if o.buzzer.beepsRemaining > 0 {
			o.buzzer.phaseOn = false
			o.buzzer.phaseEnd = now.Add(o.buzzer.offMs)
		} else {
			o.buzzer.active = false
		}
	} else {
		o.buzzer.phaseOn = true
		o.buzzer.phaseEnd = now.Add(o.buzzer.onMs)
		o.driver.WriteBuzzer(true)
	}
}

// BuzzerActive reports whether a beep pattern is currently playing.
func (o *Outputs) BuzzerActive() bool {
	return o.buzzer.active
}
