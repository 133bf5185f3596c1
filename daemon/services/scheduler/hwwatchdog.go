package scheduler

import (
	"sync"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
)

// HardwareWatchdog simulates the coarse hardware watchdog timer: a single
// global pet deadline that, if missed, would reset the whole device on
// real hardware. Its timeout widens during a firmware upload, the one
// policy difference the real WDT configuration has per task.
type HardwareWatchdog struct {
	mu        sync.Mutex
	lastPet   time.Time
	uploading bool
}

// NewHardwareWatchdog creates a watchdog pre-petted at creation time.
func NewHardwareWatchdog() *HardwareWatchdog {
	return &HardwareWatchdog{lastPet: time.Now()}
}

// Pet resets the watchdog deadline.
func (h *HardwareWatchdog) Pet(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPet = now
}

// SetUploading widens (true) or restores (false) the watchdog timeout for
// the duration of a firmware upload in progress.
func (h *HardwareWatchdog) SetUploading(active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploading = active
}

// timeout returns the currently active timeout given upload state.
func (h *HardwareWatchdog) timeout() time.Duration {
	if h.uploading {
		return constants.HardwareWatchdogUploadTimeout
	}
	return constants.HardwareWatchdogTimeout
}

// Expired reports whether now is past the pet deadline.
func (h *HardwareWatchdog) Expired(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return now.Sub(h.lastPet) > h.timeout()
}
