package watchdog

import "github.com/kdys14/smokehouse-controller/daemon/dto"

// LinkMonitor is the pinned WiFi station/AP link stats source. Bring-up of
// the link itself is out of scope here (an external collaborator's
// concern); a real deployment supplies uptime/downtime/disconnect counters
// from whatever network stack it runs.
type LinkMonitor interface {
	Stats() dto.LinkStats
}

// NoopLinkMonitor is a LinkMonitor reporting an always-connected link with
// no history, used when no WiFi stack is wired in.
type NoopLinkMonitor struct{}

func (NoopLinkMonitor) Stats() dto.LinkStats {
	return dto.LinkStats{Connected: true}
}
