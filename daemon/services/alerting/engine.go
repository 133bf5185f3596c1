package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

const (
	// EvalInterval is the frequency at which alert rules are evaluated.
	EvalInterval = 15 * time.Second

	// MaxHistoryEvents is the maximum number of alert events kept in memory.
	MaxHistoryEvents = 100
)

// SnapshotProvider supplies the live process snapshot the engine flattens
// into an AlertEnv every evaluation cycle. Implemented by process.Controller.
type SnapshotProvider interface {
	Snapshot() dto.ControllerStateSnapshot
}

// Engine orchestrates alert rule evaluation and notification dispatch.
// It periodically builds an AlertEnv from the live process snapshot,
// evaluates all enabled rules via the Evaluator, and dispatches
// notifications via the Dispatcher.
type Engine struct {
	store      *Store
	evaluator  *Evaluator
	dispatcher *Dispatcher
	provider   SnapshotProvider

	mu      sync.RWMutex
	history []dto.AlertEvent
}

// NewEngine creates and initializes the alerting engine.
func NewEngine(store *Store, provider SnapshotProvider, dispatcher *Dispatcher) *Engine {
	return &Engine{
		store:      store,
		evaluator:  NewEvaluator(),
		dispatcher: dispatcher,
		provider:   provider,
		history:    make([]dto.AlertEvent, 0, MaxHistoryEvents),
	}
}

// Start begins the alert evaluation loop. It blocks until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	if err := e.store.Load(); err != nil {
		logger.Error("Alerting: Failed to load rules: %v", err)
	}

	e.compileEnabledRules()

	logger.Info("Alerting: Engine started (eval interval: %s)", EvalInterval)

	ticker := time.NewTicker(EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Alerting: Engine stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Alerting: PANIC during evaluation: %v", r)
					}
				}()
				e.evaluate()
			}()
		}
	}
}

// Tick runs one evaluation cycle. Exposed directly so the scheduler can
// drive the engine on its own task interval instead of the internal ticker
// loop Start uses when run standalone.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.evaluate()
}

// evaluate runs one evaluation cycle for all enabled rules.
func (e *Engine) evaluate() {
	env := e.buildEnv()
	rules := e.store.GetEnabledRules()

	results := e.evaluator.Evaluate(env, rules)
	for _, result := range results {
		if !result.Transitioned {
			continue
		}

		event := e.resultToEvent(result)

		if event.State == "firing" && e.isCoolingDown(result.Rule) {
			logger.Debug("Alerting: Rule %s is in cooldown, skipping dispatch", result.Rule.ID)
			continue
		}

		e.addHistory(event)
		e.dispatcher.Dispatch(result.Rule, event)
	}
}

// resultToEvent converts an EvaluateResult into an AlertEvent for history/dispatch.
func (e *Engine) resultToEvent(result EvaluateResult) dto.AlertEvent {
	now := time.Now()
	event := dto.AlertEvent{
		RuleID:   result.Rule.ID,
		RuleName: result.Rule.Name,
		Severity: result.Rule.Severity,
		FiredAt:  now,
	}

	if result.NewState == "firing" {
		event.State = "firing"
		event.Message = fmt.Sprintf("Alert rule '%s' triggered (expression: %s)", result.Rule.Name, result.Rule.Expression)
	} else if result.PrevState == "firing" && result.NewState == "ok" {
		event.State = "resolved"
		event.ResolvedAt = now
		event.Message = fmt.Sprintf("Alert rule '%s' resolved", result.Rule.Name)
	}

	return event
}

// isCoolingDown checks if the rule is within its cooldown period since the last fire.
func (e *Engine) isCoolingDown(rule dto.AlertRule) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	if cooldown == 0 {
		cooldown = 5 * time.Minute
	}

	for i := len(e.history) - 1; i >= 0; i-- {
		ev := e.history[i]
		if ev.RuleID == rule.ID && ev.State == "firing" {
			return time.Since(ev.FiredAt) < cooldown
		}
	}
	return false
}

// addHistory appends an event to the history ring buffer.
func (e *Engine) addHistory(event dto.AlertEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) >= MaxHistoryEvents {
		e.history = e.history[1:]
	}
	e.history = append(e.history, event)
}

// GetHistory returns a copy of recent alert events.
func (e *Engine) GetHistory() []dto.AlertEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := make([]dto.AlertEvent, len(e.history))
	copy(events, e.history)
	return events
}

// GetStatuses returns the current status of all enabled rules.
func (e *Engine) GetStatuses() []dto.AlertStatus {
	rules := e.store.GetEnabledRules()
	return e.evaluator.GetStatuses(rules)
}

// GetFiringAlerts returns only rules currently in the "firing" state.
func (e *Engine) GetFiringAlerts() []dto.AlertStatus {
	rules := e.store.GetEnabledRules()
	return e.evaluator.GetFiringAlerts(rules)
}

// RecompileRules recompiles all enabled rules. Call after rule CRUD operations.
func (e *Engine) RecompileRules() {
	e.compileEnabledRules()
}

// compileEnabledRules compiles all enabled rules from the store.
func (e *Engine) compileEnabledRules() {
	rules := e.store.GetEnabledRules()
	errs := e.evaluator.CompileRules(rules)
	logger.Info("Alerting: Compiled %d enabled rules (%d errors)", len(rules), len(errs))
}

// buildEnv flattens the live process snapshot into an AlertEnv.
func (e *Engine) buildEnv() dto.AlertEnv {
	if e.provider == nil {
		return dto.AlertEnv{}
	}
	snap := e.provider.Snapshot()

	return dto.AlertEnv{
		State:    snap.State.String(),
		Mode:     snap.Mode.String(),
		TChamber: snap.TChamber,
		TChamber1: snap.TChamber1,
		TChamber2: snap.TChamber2,
		TMeat:    snap.TMeat,
		TSet:     snap.TSet,

		PowerMode:      snap.PowerMode,
		ManualSmokePwm: int(snap.ManualSmokePwm),
		FanOnTimeMs:    snap.FanOnTimeMs,
		FanOffTimeMs:   snap.FanOffTimeMs,

		DoorOpen:      snap.DoorOpen,
		ErrorSensor:   snap.ErrorSensor,
		ErrorOverheat: snap.ErrorOverheat,
		ErrorProfile:  snap.ErrorProfile,

		CurrentStep:      snap.CurrentStep,
		StepCount:        snap.StepCount,
		StepTotalTimeSec: snap.StepTotalTimeSec,

		ElapsedTimeSec:          snap.ElapsedTimeSec,
		RemainingProcessTimeSec: snap.RemainingProcessTimeSec,

		TotalRuntimeSec:  snap.Stats.TotalRuntimeSec,
		ActiveHeatingSec: snap.Stats.ActiveHeatingSec,
		PauseCount:       snap.Stats.PauseCount,
	}
}
