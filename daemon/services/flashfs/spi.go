package flashfs

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/domain"
)

// TFTDrawer is the pinned display-driver peer that shares the SPI bus with
// flashfs. Out of scope beyond this interface (no local LCD pixel
// drawing). The orchestrator and services/ui wire in NoopTFTDrawer below.
// FlashFS stores the drawer it is given but does not call it, and
// services/ui calls Draw without taking the SPI mutex.
type TFTDrawer interface {
	Draw(op string)
}

// NoopTFTDrawer is a TFTDrawer that does nothing, used when no display is
// attached.
type NoopTFTDrawer struct{}

func (NoopTFTDrawer) Draw(string) {}

// spiToken / flashSPIOwner identify flashfs as a distinct owner token for
// the shared recursive SPI mutex.
type spiToken struct{}

var flashSPIOwner = spiToken{}

// withSPI runs fn while holding the SPI mutex, bounded by MutexTimeout.
// Returns false if the mutex could not be acquired in time.
func withSPI(mu *domain.RecursiveMutex, timeout time.Duration, fn func()) bool {
	if !mu.Lock(flashSPIOwner, timeout) {
		return false
	}
	defer mu.Unlock(flashSPIOwner)
	fn()
	return true
}
