package sensors

import "github.com/kdys14/smokehouse-controller/daemon/constants"

// DoorSwitch is the pinned door GPIO transport.
type DoorSwitch interface {
	IsOpen() bool
}

// DoorMonitor edge-detects the door switch across ticks.
type DoorMonitor struct {
	sw       DoorSwitch
	lastOpen bool
}

// NewDoorMonitor creates a door monitor over sw, initially assuming closed.
func NewDoorMonitor(sw DoorSwitch) *DoorMonitor {
	return &DoorMonitor{sw: sw}
}

// DoorEdge is the result of one door-monitor tick.
type DoorEdge int

const (
	DoorNoChange DoorEdge = iota
	DoorOpened
	DoorClosed
)

// Tick polls the door switch and reports an edge if the state changed
// since the last tick.
func (d *DoorMonitor) Tick() (open bool, edge DoorEdge) {
	open = d.sw.IsOpen()
	switch {
	case open && !d.lastOpen:
		edge = DoorOpened
	case !open && d.lastOpen:
		edge = DoorClosed
	default:
		edge = DoorNoChange
	}
	d.lastOpen = open
	return open, edge
}

// IsOverheat reports whether tChamber exceeds the overheat threshold,
// independent of sensor validity state.
func IsOverheat(tChamber float64) bool {
	return tChamber > constants.TMaxSoft
}
