package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// mockSnapshotProvider implements SnapshotProvider for testing.
type mockSnapshotProvider struct {
	snap dto.ControllerStateSnapshot
}

func (m *mockSnapshotProvider) Snapshot() dto.ControllerStateSnapshot {
	return m.snap
}

func newMockProvider() *mockSnapshotProvider {
	return &mockSnapshotProvider{
		snap: dto.ControllerStateSnapshot{
			State:    dto.RunningAuto,
			Mode:     dto.ModeAuto,
			TChamber: 65.0,
			TMeat:    40.0,
			TSet:     70.0,
		},
	}
}

func newTestEngine(t *testing.T, provider SnapshotProvider) *Engine {
	t.Helper()
	store := NewStore(t.TempDir())
	dispatcher := NewDispatcher(nil)
	return NewEngine(store, provider, dispatcher)
}

func TestEngineBuildEnvReflectsSnapshot(t *testing.T) {
	provider := newMockProvider()
	engine := newTestEngine(t, provider)

	env := engine.buildEnv()
	if env.TChamber != 65.0 {
		t.Errorf("expected TChamber 65.0, got %v", env.TChamber)
	}
	if env.TMeat != 40.0 {
		t.Errorf("expected TMeat 40.0, got %v", env.TMeat)
	}
	if env.State != "RunningAuto" {
		t.Errorf("expected State RunningAuto, got %v", env.State)
	}
}

func TestEngineBuildEnvNilProvider(t *testing.T) {
	engine := newTestEngine(t, nil)
	env := engine.buildEnv()
	if env.TChamber != 0 {
		t.Errorf("expected zero-value env with nil provider, got %v", env)
	}
}

func TestEngineEvaluateFiresAndDispatches(t *testing.T) {
	provider := newMockProvider()
	engine := newTestEngine(t, provider)

	if err := engine.store.CreateRule(dto.AlertRule{
		ID:         "chamber-high",
		Name:       "Chamber Too Hot",
		Expression: "TChamber > 60",
		Severity:   "warning",
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}
	engine.RecompileRules()
	engine.evaluate()

	history := engine.GetHistory()
	if len(history) != 1 {
		t.Fatalf("expected 1 history event, got %d", len(history))
	}
	if history[0].State != "firing" {
		t.Errorf("expected firing event, got %s", history[0].State)
	}
}

func TestEngineCooldownSuppressesRefire(t *testing.T) {
	provider := newMockProvider()
	engine := newTestEngine(t, provider)

	if err := engine.store.CreateRule(dto.AlertRule{
		ID:              "chamber-high",
		Name:            "Chamber Too Hot",
		Expression:      "TChamber > 60",
		Severity:        "warning",
		Enabled:         true,
		CooldownMinutes: 10,
	}); err != nil {
		t.Fatal(err)
	}
	engine.RecompileRules()

	engine.addHistory(dto.AlertEvent{RuleID: "chamber-high", State: "firing", FiredAt: time.Now()})

	rule, _ := engine.store.GetRule("chamber-high")
	if !engine.isCoolingDown(*rule) {
		t.Error("expected rule to be in cooldown right after firing")
	}
}

func TestEngineGetFiringAlerts(t *testing.T) {
	provider := newMockProvider()
	engine := newTestEngine(t, provider)

	if err := engine.store.CreateRule(dto.AlertRule{
		ID:         "chamber-high",
		Name:       "Chamber Too Hot",
		Expression: "TChamber > 60",
		Severity:   "warning",
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}
	engine.RecompileRules()
	engine.evaluate()

	firing := engine.GetFiringAlerts()
	if len(firing) != 1 {
		t.Fatalf("expected 1 firing alert, got %d", len(firing))
	}
}

func TestEngineTickRunsEvaluateOnce(t *testing.T) {
	provider := newMockProvider()
	engine := newTestEngine(t, provider)
	if err := engine.store.CreateRule(dto.AlertRule{
		ID:         "chamber-high",
		Expression: "TChamber > 60",
		Severity:   "warning",
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}
	engine.RecompileRules()

	engine.Tick(context.Background(), time.Now())

	if len(engine.GetHistory()) != 1 {
		t.Fatalf("expected Tick to run one evaluation cycle")
	}
}
