package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/cskr/pubsub"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// TopicResourceStats is the event-bus topic Monitor publishes its periodic
// resource snapshot to.
var TopicResourceStats = domain.NewTopic[dto.ResourceStats]("monitor.resources")

// ResourceLogInterval is how often Monitor logs/publishes goroutine count
// and heap stats, the Go stand-in for the original firmware's free-heap
// telemetry.
const ResourceLogInterval = 60 * time.Second

// StatsLogInterval is how often Monitor logs the process stats roll-up,
// matching the original firmware's 300s periodic summary.
const StatsLogInterval = 300 * time.Second

// StatsProvider supplies the running process stats Monitor rolls up into
// its periodic log line.
type StatsProvider interface {
	Snapshot() dto.ControllerStateSnapshot
}

// Monitor is the Monitor task: low-power/heap-style telemetry plus a
// periodic stats roll-up, both ported from the original firmware's
// taskMonitor.
type Monitor struct {
	hub                    *pubsub.PubSub
	stats                  StatsProvider
	lastRes                time.Time
	lastLog                time.Time
	GoroutineWarnThreshold int
}

// NewMonitor creates a Monitor publishing to hub (may be nil) and rolling
// up stats from provider.
func NewMonitor(hub *pubsub.PubSub, provider StatsProvider) *Monitor {
	return &Monitor{hub: hub, stats: provider, GoroutineWarnThreshold: 500}
}

// Tick is the Monitor task's tick body, registered with the scheduler at
// constants.MonitorTickInterval.
func (m *Monitor) Tick(ctx context.Context, now time.Time) {
	if m.lastRes.IsZero() || now.Sub(m.lastRes) >= ResourceLogInterval {
		m.lastRes = now
		m.logResources(now)
	}
	if m.lastLog.IsZero() || now.Sub(m.lastLog) >= StatsLogInterval {
		m.lastLog = now
		m.logStats(now)
	}
}

func (m *Monitor) logResources(now time.Time) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	n := runtime.NumGoroutine()

	stats := dto.ResourceStats{
		Goroutines:     n,
		HeapAllocBytes: mem.HeapAlloc,
		Timestamp:      now,
	}

	if n > m.GoroutineWarnThreshold {
		logger.Warning("monitor: goroutine count %d exceeds warn threshold %d", n, m.GoroutineWarnThreshold)
	} else {
		logger.Debug("monitor: goroutines=%d heapAlloc=%d bytes", n, mem.HeapAlloc)
	}

	if m.hub != nil {
		domain.Publish(m.hub, TopicResourceStats, stats)
	}
}

func (m *Monitor) logStats(now time.Time) {
	if m.stats == nil {
		return
	}
	snap := m.stats.Snapshot()
	logger.Info(
		"monitor: runtime=%ds heating=%ds steps=%d pauses=%d state=%s step=%d/%d",
		snap.Stats.TotalRuntimeSec, snap.Stats.ActiveHeatingSec, snap.Stats.StepChanges,
		snap.Stats.PauseCount, snap.State, snap.CurrentStep, snap.StepCount,
	)
}
