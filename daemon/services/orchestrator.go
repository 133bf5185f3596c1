// Package services wires every task's concrete collaborators together.
// Control (process.Controller), Sensors, UI, and Monitor run under one
// scheduler.Scheduler; the Web API (api.Server) runs its own goroutines
// beside it. No separate WiFi-link task is registered.
package services

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/alerting"
	"github.com/kdys14/smokehouse-controller/daemon/services/api"
	"github.com/kdys14/smokehouse-controller/daemon/services/flashfs"
	"github.com/kdys14/smokehouse-controller/daemon/services/mqtt"
	"github.com/kdys14/smokehouse-controller/daemon/services/outputs"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
	"github.com/kdys14/smokehouse-controller/daemon/services/scheduler"
	"github.com/kdys14/smokehouse-controller/daemon/services/sensors"
	"github.com/kdys14/smokehouse-controller/daemon/services/storage"
	"github.com/kdys14/smokehouse-controller/daemon/services/ui"
	"github.com/kdys14/smokehouse-controller/daemon/services/watchdog"
)

// Orchestrator owns every wired subsystem and the Scheduler running them.
type Orchestrator struct {
	ctx *domain.Context

	ctrl       *process.Controller
	flash      *flashfs.FlashFS
	nvs        *storage.NVS
	watcher    *storage.FileWatcher
	alertEng   *alerting.Engine
	wdRunner   *watchdog.Runner
	monitor    *scheduler.Monitor
	menu       *ui.Menu
	server     *api.Server
	mqttClient *mqtt.Client

	sched      *scheduler.Scheduler
	supervisor *scheduler.Supervisor
	hwWatchdog *scheduler.HardwareWatchdog
}

const configDir = "/etc/smokehouse"

// CreateOrchestrator builds every task's collaborators, wires them under a
// single scheduler, and returns an Orchestrator ready to Run.
func CreateOrchestrator(ctx *domain.Context) *Orchestrator {
	hub := ctx.Hub

	driver := outputs.LoggingDriver{}
	out := outputs.New(driver)
	ctrl := process.New(out, hub)

	backing, err := openFlashBacking(ctx.FlashImagePath)
	if err != nil {
		logger.Error("orchestrator: opening flash image: %v", err)
	}
	spiMutex := &domain.RecursiveMutex{}
	flash := flashfs.New(backing, spiMutex, flashfs.NoopTFTDrawer{})
	if err := flash.Load(); err != nil {
		logger.Error("orchestrator: loading flash FAT: %v", err)
	}

	nvs, err := storage.Open(ctx.NVSPath)
	if err != nil {
		logger.Error("orchestrator: opening NVS store: %v", err)
	}

	profiles := storage.NewProfileLoader(flash, nil)
	github := storage.NewGitHubFetcher()
	profilesWithGitHub := storage.NewProfileLoader(flash, github)

	watcher, err := storage.NewFileWatcher(200 * time.Millisecond)
	if err != nil {
		logger.Error("orchestrator: creating NVS file watcher: %v", err)
	}

	alertStore := alerting.NewStore(configDir)
	_ = alertStore.Load()
	alertDispatcher := alerting.NewDispatcher(nil)
	alertEng := alerting.NewEngine(alertStore, ctrl, alertDispatcher)

	wdStore := watchdog.NewStore(configDir)
	_ = wdStore.Load()
	wdRunner := watchdog.NewRunner(wdStore, hub)

	hwWatchdog := scheduler.NewHardwareWatchdog()
	supervisor := scheduler.DefaultSupervisor(func(task string) {
		logger.Error("orchestrator: task %q hung, forcing Idle", task)
		ctrl.Enqueue(process.StopCommand())
	})
	monitor := scheduler.NewMonitor(hub, ctrl)

	menu := ui.NewMenu(ui.Deps{
		Controller: ctrl,
		Flash:      flash,
		NVS:        nvs,
		Profiles:   profilesWithGitHub,
		Drawer:     flashfs.NoopTFTDrawer{},
	})

	server := api.NewServer(api.Deps{
		Hub:            hub,
		Port:           ctx.Port,
		CORSOrigin:     ctx.CORSOrigin,
		Controller:     ctrl,
		Flash:          flash,
		NVS:            nvs,
		Profiles:       profilesWithGitHub,
		GitHub:         github,
		AlertEngine:    alertEng,
		AlertStore:     alertStore,
		WatchdogRunner: wdRunner,
		WatchdogStore:  wdStore,
		Supervisor:     supervisor,
		HWWatchdog:     hwWatchdog,
	})

	var mqttClient *mqtt.Client
	if ctx.MQTT.Enabled {
		mqttClient = mqtt.NewClient(ctx.MQTT, hub, ctrl)
		mqttClient.SetProfileLoader(profilesWithGitHub)
	}

	o := &Orchestrator{
		ctx:        ctx,
		ctrl:       ctrl,
		flash:      flash,
		nvs:        nvs,
		watcher:    watcher,
		alertEng:   alertEng,
		wdRunner:   wdRunner,
		monitor:    monitor,
		menu:       menu,
		server:     server,
		mqttClient: mqttClient,
		supervisor: supervisor,
		hwWatchdog: hwWatchdog,
	}
	o.sched = o.buildScheduler(profiles)
	return o
}

func openFlashBacking(path string) (*os.File, error) {
	if path == "" {
		path = "/var/lib/smokehouse/flash.img"
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < constants.FlashTotalBytes {
		if err := f.Truncate(constants.FlashTotalBytes); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// buildScheduler registers the Control, Sensors, UI, and Monitor tasks; the
// Monitor task also runs the alert-engine and connectivity-check sweeps.
// The Web task runs its own goroutines via api.Server.Start and is not part
// of this scheduler (nor of the software watchdog), so a firmware upload in
// flight cannot trip a forced reset.
func (o *Orchestrator) buildScheduler(profiles *storage.ProfileLoader) *scheduler.Scheduler {
	sched := scheduler.New(o.supervisor)

	chamberAgg := sensors.NewChamberAggregator()
	digitalPacer := sensors.NewDigitalPacer(sensors.LoggingDigitalBus{})
	doorMonitor := sensors.NewDoorMonitor(sensors.LoggingDoorSwitch{})
	meatProbe := sensors.NewMeatProbe(sensors.LoggingADC{}, sensors.DefaultNTCParams())

	sched.Register(scheduler.TaskSpec{
		Name:     "control",
		Interval: constants.ControlTickInterval,
		Fn: func(ctx context.Context, now time.Time) {
			o.ctrl.Tick(now)
			o.hwWatchdog.Pet(now)
		},
	})

	sched.Register(scheduler.TaskSpec{
		Name:     "sensors",
		Interval: constants.SensorsTickInterval,
		Fn: func(ctx context.Context, now time.Time) {
			var v1, v2 *float64
			if val, valid, has := digitalPacer.Tick(0); has && valid {
				v1 = &val
			}
			if val, valid, has := digitalPacer.Tick(1); has && valid {
				v2 = &val
			}
			reading := chamberAgg.Combine(v1, v2)
			o.ctrl.UpdateChamber(reading, chamberAgg.ErrorSensor())
			o.ctrl.UpdateMeat(meatProbe.Read())
			open, _ := doorMonitor.Tick()
			o.ctrl.UpdateDoor(open)
		},
	})

	sched.Register(scheduler.TaskSpec{
		Name:     "ui",
		Interval: constants.UITickInterval,
		Fn: func(ctx context.Context, now time.Time) {
			o.menu.Tick(now)
		},
	})

	sched.Register(scheduler.TaskSpec{
		Name:     "monitor",
		Interval: constants.MonitorTickInterval,
		Fn: func(ctx context.Context, now time.Time) {
			o.monitor.Tick(ctx, now)
			o.alertEng.Tick(ctx, now)
			o.wdRunner.Tick(ctx, now)
			if o.hwWatchdog.Expired(now) {
				logger.Error("orchestrator: hardware watchdog expired, forcing Idle")
				o.ctrl.Enqueue(process.StopCommand())
			}
		},
	})

	return sched
}

// Run starts every task and blocks until SIGINT/SIGTERM, then shuts down
// gracefully.
func (o *Orchestrator) Run() error {
	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if o.watcher != nil && o.ctx.NVSPath != "" {
		if err := o.watcher.WatchFile(o.ctx.NVSPath); err != nil {
			logger.Error("orchestrator: watching NVS path: %v", err)
		}
		go o.watcher.Run(runCtx, []string{o.ctx.NVSPath}, func() {
			if err := o.nvs.Reload(); err != nil {
				logger.Error("orchestrator: reloading NVS after change: %v", err)
			}
		})
	}

	o.alertEng.Start(runCtx)
	o.wdRunner.Start(runCtx)

	if o.mqttClient != nil {
		if err := o.mqttClient.Connect(); err != nil {
			logger.Error("orchestrator: MQTT connect failed: %v", err)
		} else {
			defer o.mqttClient.Disconnect()
		}
	}

	go func() {
		<-o.server.Ready()
		logger.Info("orchestrator: Web API ready")
	}()
	go func() {
		if err := o.server.Start(); err != nil {
			logger.Error("orchestrator: Web API stopped: %v", err)
		}
	}()

	go o.sched.Run(runCtx)

	<-runCtx.Done()
	logger.Info("orchestrator: shutting down")

	o.sched.Stop()
	o.server.Stop()
	if o.watcher != nil {
		_ = o.watcher.Close()
	}

	return nil
}
