package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

// Prometheus metric definitions, populated from the cached latest
// ControllerStateSnapshot on every scrape.
var (
	chamberTemp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smokehouse_chamber_temperature_celsius",
		Help: "Chamber temperature by probe (combined, probe1, probe2)",
	}, []string{"probe"})

	meatTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_meat_temperature_celsius",
		Help: "Meat probe temperature in Celsius",
	})

	chamberSetpoint = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_chamber_setpoint_celsius",
		Help: "Current chamber setpoint in Celsius",
	})

	powerMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_power_mode_heaters",
		Help: "Number of heaters eligible under the current power mode (0-3)",
	})

	smokePwm = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_smoke_generator_pwm",
		Help: "Smoke generator PWM duty cycle (0-255)",
	})

	fanMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_fan_mode",
		Help: "Fan mode (0=off, 1=on, 2=cyclic)",
	})

	pidOutput = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smokehouse_pid_gain",
		Help: "Adaptive PID gains currently in effect",
	}, []string{"term"})

	doorOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_door_open",
		Help: "Door switch state (1=open, 0=closed)",
	})

	errorSensor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_error_sensor",
		Help: "Chamber/meat sensor fault latched (1=fault)",
	})

	errorOverheat = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_error_overheat",
		Help: "Overheat fault latched (1=fault)",
	})

	errorProfile = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_error_profile",
		Help: "Profile validation fault latched (1=fault)",
	})

	processState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smokehouse_process_state",
		Help: "Current controller state (always 1, labeled by state name)",
	}, []string{"state", "mode"})

	currentStep = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_current_step",
		Help: "Zero-based index of the active profile step",
	})

	stepCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_step_count",
		Help: "Total steps in the active profile",
	})

	elapsedTimeSec = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_elapsed_time_seconds",
		Help: "Elapsed time of the current run in seconds",
	})

	remainingTimeSec = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_remaining_time_seconds",
		Help: "Estimated remaining time of the current run in seconds",
	})

	heaterActiveSec = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_active_heating_seconds_total",
		Help: "Cumulative active-heating time for the current run in seconds",
	})

	stepChanges = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_step_changes_total",
		Help: "Number of step transitions in the current run",
	})

	pauseCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_pause_count_total",
		Help: "Number of pauses in the current run",
	})

	flashFreeSectors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_flash_free_sectors",
		Help: "Free sectors on the flash filesystem",
	})

	flashLiveFiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_flash_live_files",
		Help: "Live (non-tombstoned) file count on the flash filesystem",
	})

	flashShadowFATUsed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_flash_shadow_fat_used",
		Help: "1 if the last FAT load fell back to the shadow copy",
	})

	alertsFiring = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_alerts_firing",
		Help: "Number of currently firing alert rules",
	})

	connChecksUnhealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_conn_checks_unhealthy",
		Help: "Number of connectivity checks currently unhealthy",
	})

	linkUptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_link_uptime_seconds",
		Help: "WiFi link uptime in seconds",
	})

	linkDisconnects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smokehouse_link_disconnect_total",
		Help: "WiFi link disconnect count",
	})
)

var metricsRegistry = prometheus.NewRegistry()

func init() {
	metricsRegistry.MustRegister(
		chamberTemp,
		meatTemp,
		chamberSetpoint,
		powerMode,
		smokePwm,
		fanMode,
		pidOutput,
		doorOpen,
		errorSensor,
		errorOverheat,
		errorProfile,
		processState,
		currentStep,
		stepCount,
		elapsedTimeSec,
		remainingTimeSec,
		heaterActiveSec,
		stepChanges,
		pauseCount,
		flashFreeSectors,
		flashLiveFiles,
		flashShadowFATUsed,
		alertsFiring,
		connChecksUnhealthy,
		linkUptime,
		linkDisconnects,
	)
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// updateMetrics refreshes every gauge from the current cached snapshot and
// the live subsystem queries (flash info, alert/watchdog stores, link
// monitor). Called once per /metrics scrape rather than on a ticker, since
// collecting it is cheap and scrape intervals are unpredictable.
func (s *Server) updateMetrics() {
	snap := s.latestSnapshot()

	chamberTemp.WithLabelValues("combined").Set(snap.TChamber)
	chamberTemp.WithLabelValues("probe1").Set(snap.TChamber1)
	chamberTemp.WithLabelValues("probe2").Set(snap.TChamber2)
	meatTemp.Set(snap.TMeat)
	chamberSetpoint.Set(snap.TSet)
	powerMode.Set(float64(snap.PowerMode))
	smokePwm.Set(float64(snap.ManualSmokePwm))
	fanMode.Set(float64(snap.FanMode))

	kp, ki, kd := s.Controller.PIDParams()
	pidOutput.WithLabelValues("kp").Set(kp)
	pidOutput.WithLabelValues("ki").Set(ki)
	pidOutput.WithLabelValues("kd").Set(kd)

	doorOpen.Set(boolGauge(snap.DoorOpen))
	errorSensor.Set(boolGauge(snap.ErrorSensor))
	errorOverheat.Set(boolGauge(snap.ErrorOverheat))
	errorProfile.Set(boolGauge(snap.ErrorProfile))

	processState.Reset()
	processState.WithLabelValues(snap.State.String(), snap.Mode.String()).Set(1)

	currentStep.Set(float64(snap.CurrentStep))
	stepCount.Set(float64(snap.StepCount))
	elapsedTimeSec.Set(float64(snap.ElapsedTimeSec))
	remainingTimeSec.Set(float64(snap.RemainingProcessTimeSec))
	heaterActiveSec.Set(float64(snap.Stats.ActiveHeatingSec))
	stepChanges.Set(float64(snap.Stats.StepChanges))
	pauseCount.Set(float64(snap.Stats.PauseCount))

	info := s.Flash.Info()
	flashFreeSectors.Set(float64(info.FreeSectors))
	flashLiveFiles.Set(float64(info.LiveEntryCount))
	flashShadowFATUsed.Set(boolGauge(info.UsedShadowFAT))

	alertsFiring.Set(float64(len(s.AlertEngine.GetFiringAlerts())))
	connChecksUnhealthy.Set(float64(len(s.WatchdogRunner.GetUnhealthyChecks())))

	var link dto.LinkStats
	if s.LinkMonitor != nil {
		link = s.LinkMonitor.Stats()
	}
	linkUptime.Set(float64(link.UptimeSec))
	linkDisconnects.Set(float64(link.DisconnectCount))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.updateMetrics()
	promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{
		Registry: metricsRegistry,
	}).ServeHTTP(w, r)
}
