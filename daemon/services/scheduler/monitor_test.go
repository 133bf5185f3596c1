package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

type fakeStatsProvider struct {
	snap dto.ControllerStateSnapshot
}

func (f fakeStatsProvider) Snapshot() dto.ControllerStateSnapshot {
	return f.snap
}

func TestMonitorLogsResourcesOnFirstTick(t *testing.T) {
	m := NewMonitor(nil, fakeStatsProvider{})
	now := time.Now()
	m.Tick(context.Background(), now)

	if m.lastRes != now {
		t.Fatalf("expected lastRes updated on first tick, got %v", m.lastRes)
	}
	if m.lastLog != now {
		t.Fatalf("expected lastLog updated on first tick, got %v", m.lastLog)
	}
}

func TestMonitorRespectsIntervals(t *testing.T) {
	m := NewMonitor(nil, fakeStatsProvider{})
	base := time.Now()
	m.Tick(context.Background(), base)

	mid := base.Add(30 * time.Second)
	m.Tick(context.Background(), mid)
	if m.lastRes != base {
		t.Fatalf("expected lastRes unchanged before ResourceLogInterval elapses, got %v", m.lastRes)
	}

	later := base.Add(ResourceLogInterval + time.Second)
	m.Tick(context.Background(), later)
	if m.lastRes != later {
		t.Fatalf("expected lastRes advanced after ResourceLogInterval elapsed, got %v", m.lastRes)
	}
	if m.lastLog != base {
		t.Fatalf("expected lastLog still unchanged (StatsLogInterval not elapsed), got %v", m.lastLog)
	}
}

func TestMonitorHandlesNilStatsProvider(t *testing.T) {
	m := NewMonitor(nil, nil)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Tick with nil provider should not panic: %v", r)
		}
	}()
	m.Tick(context.Background(), time.Now())
}
