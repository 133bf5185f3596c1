// Package ui implements the UI task: a finite-state local menu driven by
// four debounced buttons, drawn to the shared-SPI-bus TFT display.
package ui

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// Button identifies one of the four physical buttons.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonEnter
	ButtonExit
)

// ButtonPad is the pinned four-button GPIO transport. A real implementation
// polls four input pins; tests supply a fake.
type ButtonPad interface {
	// Pressed reports whether btn currently reads as pressed.
	Pressed(btn Button) bool
}

// LoggingButtonPad is a stand-in ButtonPad that always reports no buttons
// pressed, used when no physical pad is wired in; it does not log.
type LoggingButtonPad struct{}

func (LoggingButtonPad) Pressed(btn Button) bool {
	return false
}

// buttonDebouncer tracks one button's debounce and edge state.
type buttonDebouncer struct {
	lastChange time.Time
	stable     bool
	prevStable bool
}

// debouncePoll samples raw, applying constants.ButtonDebounce, and reports
// whether the debounced state represents a fresh press edge (false->true).
func (d *buttonDebouncer) debouncePoll(raw bool, now time.Time) (pressed bool, justPressed bool) {
	if raw != d.stable {
		if d.lastChange.IsZero() {
			d.lastChange = now
		} else if now.Sub(d.lastChange) >= constants.ButtonDebounce {
			d.prevStable = d.stable
			d.stable = raw
			d.lastChange = time.Time{}
		}
	} else {
		d.lastChange = time.Time{}
	}
	return d.stable, d.stable && !d.prevStable
}

// buttonState holds one debouncer per physical button plus the Enter-hold
// timer used for the Idle-screen auth reset gesture.
type buttonState struct {
	debouncers  [4]buttonDebouncer
	enterHeldAt time.Time
}

// poll samples every button through pad and returns which buttons were
// freshly pressed this tick, plus how long Enter has now been continuously
// held (zero if not held).
func (s *buttonState) poll(pad ButtonPad, now time.Time) (pressed [4]bool, justPressed [4]bool, enterHoldDuration time.Duration) {
	for b := ButtonUp; b <= ButtonExit; b++ {
		raw := pad.Pressed(b)
		p, jp := s.debouncers[b].debouncePoll(raw, now)
		pressed[b] = p
		justPressed[b] = jp
	}

	if pressed[ButtonEnter] {
		if s.enterHeldAt.IsZero() {
			s.enterHeldAt = now
		}
		enterHoldDuration = now.Sub(s.enterHeldAt)
	} else {
		s.enterHeldAt = time.Time{}
	}

	return pressed, justPressed, enterHoldDuration
}

func logButtonEdge(b Button) {
	logger.Debug("ui: button %d pressed", b)
}
