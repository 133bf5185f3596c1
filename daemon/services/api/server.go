// Package api is the Web task (M2): a gorilla/mux HTTP router exposing the
// controller's Web API (status, profiles, run control, flash/file manager,
// alert/conn-check CRUD, OTA upload) plus a WebSocket push hub and a
// Prometheus /metrics endpoint. Boundary tasks never mutate process state
// directly; run-control handlers enqueue a process.Command instead.
package api

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/kdys14/smokehouse-controller/daemon/docs" // registers the swagger document
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/alerting"
	"github.com/kdys14/smokehouse-controller/daemon/services/flashfs"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
	"github.com/kdys14/smokehouse-controller/daemon/services/scheduler"
	"github.com/kdys14/smokehouse-controller/daemon/services/storage"
	"github.com/kdys14/smokehouse-controller/daemon/services/watchdog"
)

// OTAUpdater is the pinned firmware-upload applier. The byte-level
// transport/flashing mechanics are out of scope; a real deployment wires
// in something that streams the image to the bootloader partition and
// pets scheduler.HardwareWatchdog between chunks.
type OTAUpdater interface {
	ApplyUpdate(data []byte) error
}

// LoggingOTAUpdater is an OTAUpdater that only logs, accepting every
// upload without writing it anywhere, for deployments with no real OTA
// mechanism wired in.
type LoggingOTAUpdater struct{}

func (LoggingOTAUpdater) ApplyUpdate(data []byte) error {
	logger.Info("api: OTA update received, %d bytes (no-op applier)", len(data))
	return nil
}

// Deps bundles every collaborator Server routes requests to. Boundary
// tasks reach the rest of the system only through these, never directly.
type Deps struct {
	Hub        *pubsub.PubSub
	Port       int
	CORSOrigin string

	Controller     *process.Controller
	Flash          *flashfs.FlashFS
	NVS            *storage.NVS
	Profiles       *storage.ProfileLoader
	GitHub         *storage.GitHubFetcher
	AlertEngine    *alerting.Engine
	AlertStore     *alerting.Store
	WatchdogRunner *watchdog.Runner
	WatchdogStore  *watchdog.Store
	Supervisor     *scheduler.Supervisor
	HWWatchdog     *scheduler.HardwareWatchdog
	LinkMonitor    watchdog.LinkMonitor
	OTA            OTAUpdater
}

// Server is the Web task: the HTTP router plus the WebSocket push hub and
// the cached latest ControllerStateSnapshot read by /status and /metrics.
type Server struct {
	Deps

	router     *mux.Router
	httpServer *http.Server
	wsHub      *WSHub
	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	ready      chan struct{}

	snapMu sync.RWMutex
	latest dto.ControllerStateSnapshot
}

// NewServer creates a Server wired to deps and sets up its route table.
func NewServer(deps Deps) *Server {
	if deps.OTA == nil {
		deps.OTA = LoggingOTAUpdater{}
	}
	if deps.LinkMonitor == nil {
		deps.LinkMonitor = watchdog.NoopLinkMonitor{}
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s := &Server{
		Deps:       deps,
		router:     mux.NewRouter(),
		wsHub:      NewWSHub(),
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
		ready:      make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(corsMiddleware(s.CORSOrigin))
	s.router.Use(loggingMiddleware)
	s.router.Use(recoveryMiddleware)

	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Public, read-only.
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/profiles", s.handleListProfiles).Methods("GET")
	s.router.HandleFunc("/api/github_profiles", s.handleListGitHubProfiles).Methods("GET")
	s.router.HandleFunc("/profile/get", s.handleProfileGet).Methods("GET")
	s.router.HandleFunc("/flash/info", s.handleFlashInfo).Methods("GET")
	s.router.HandleFunc("/files/list", s.handleFilesList).Methods("GET")
	s.router.HandleFunc("/files/read", s.handleFilesRead).Methods("GET")
	s.router.HandleFunc("/api/v1/watchdog", s.handleWatchdogStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/process/pid", s.handleProcessPID).Methods("GET")
	s.router.HandleFunc("/alerts/status", s.handleAlertStatus).Methods("GET")
	s.router.HandleFunc("/alerts/history", s.handleAlertHistory).Methods("GET")
	s.router.HandleFunc("/alerts/firing", s.handleFiringAlerts).Methods("GET")
	s.router.HandleFunc("/alerts/rules", s.handleListAlertRules).Methods("GET")
	s.router.HandleFunc("/alerts/rules/{id}", s.handleGetAlertRule).Methods("GET")
	s.router.HandleFunc("/conn_checks", s.handleListConnChecks).Methods("GET")
	s.router.HandleFunc("/conn_checks/{id}", s.handleGetConnCheck).Methods("GET")

	// Mutating, HTTP Basic auth required under constants.HTTPAuthRealm.
	auth := basicAuthMiddleware(s.NVS)

	s.router.Handle("/profile/select", auth(http.HandlerFunc(s.handleProfileSelect))).Methods("GET")
	s.router.Handle("/auto/start", auth(http.HandlerFunc(s.handleAutoStart))).Methods("GET")
	s.router.Handle("/auto/stop", auth(http.HandlerFunc(s.handleAutoStop))).Methods("GET")
	s.router.Handle("/auto/next_step", auth(http.HandlerFunc(s.handleAutoNextStep))).Methods("GET")
	s.router.Handle("/mode/manual", auth(http.HandlerFunc(s.handleModeManual))).Methods("GET")
	s.router.Handle("/timer/reset", auth(http.HandlerFunc(s.handleTimerReset))).Methods("GET")
	s.router.Handle("/manual/set", auth(http.HandlerFunc(s.handleManualSet))).Methods("GET")
	s.router.Handle("/manual/power", auth(http.HandlerFunc(s.handleManualPower))).Methods("GET")
	s.router.Handle("/manual/smoke", auth(http.HandlerFunc(s.handleManualSmoke))).Methods("GET")
	s.router.Handle("/manual/fan", auth(http.HandlerFunc(s.handleManualFan))).Methods("GET")

	s.router.Handle("/flash/format", auth(http.HandlerFunc(s.handleFlashFormat))).Methods("POST")
	s.router.Handle("/files/write", auth(http.HandlerFunc(s.handleFilesWrite))).Methods("POST")
	s.router.Handle("/files/delete", auth(http.HandlerFunc(s.handleFilesDelete))).Methods("POST")
	s.router.Handle("/update", auth(http.HandlerFunc(s.handleUpdate))).Methods("POST")
	s.router.Handle("/wifi/save", auth(http.HandlerFunc(s.handleWiFiSave))).Methods("POST")
	s.router.Handle("/auth/save", auth(http.HandlerFunc(s.handleAuthSave))).Methods("POST")

	s.router.Handle("/alerts/rules", auth(http.HandlerFunc(s.handleCreateAlertRule))).Methods("POST")
	s.router.Handle("/alerts/rules/{id}", auth(http.HandlerFunc(s.handleUpdateAlertRule))).Methods("PUT")
	s.router.Handle("/alerts/rules/{id}", auth(http.HandlerFunc(s.handleDeleteAlertRule))).Methods("DELETE")
	s.router.Handle("/conn_checks", auth(http.HandlerFunc(s.handleCreateConnCheck))).Methods("POST")
	s.router.Handle("/conn_checks/{id}", auth(http.HandlerFunc(s.handleUpdateConnCheck))).Methods("PUT")
	s.router.Handle("/conn_checks/{id}", auth(http.HandlerFunc(s.handleDeleteConnCheck))).Methods("DELETE")
}

// StartSubscriptions wires the event-bus subscriptions feeding the cached
// snapshot and the WebSocket broadcast hub. Call before StartHTTP; use
// <-s.Ready() to block until wiring is complete.
func (s *Server) StartSubscriptions() {
	logger.Info("api: starting subscriptions")

	var wg sync.WaitGroup
	wg.Add(2)

	go s.wsHub.Run(s.cancelCtx)
	go s.subscribeSnapshot(s.cancelCtx, &wg)
	go s.broadcastEvents(s.cancelCtx, &wg)

	go func() {
		wg.Wait()
		close(s.ready)
		logger.Info("api: subscriptions ready")
	}()
}

// Ready returns a channel closed once subscriptions are fully wired.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// StartHTTP starts the HTTP listener; blocks until it stops or errors.
func (s *Server) StartHTTP() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logger.Info("api: HTTP listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Start runs StartSubscriptions then StartHTTP.
func (s *Server) Start() error {
	s.StartSubscriptions()
	return s.StartHTTP()
}

// Stop cancels subscriptions and shuts down the HTTP server with a 5s
// deadline.
func (s *Server) Stop() {
	s.cancelFunc()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logger.Error("api: shutdown error: %v", err)
		}
	}
}

// subscribeSnapshot keeps s.latest current from process.TopicControllerState,
// the source GET /status and /metrics both read.
func (s *Server) subscribeSnapshot(ctx context.Context, wg *sync.WaitGroup) {
	ch := s.Hub.Sub(process.TopicControllerState.Name)
	wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.Hub.Unsub(ch)
			return
		case msg := <-ch:
			if snap, ok := msg.(dto.ControllerStateSnapshot); ok {
				s.snapMu.Lock()
				s.latest = snap
				s.snapMu.Unlock()
			}
		}
	}
}

// latestSnapshot returns the most recently published ControllerStateSnapshot.
func (s *Server) latestSnapshot() dto.ControllerStateSnapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.latest
}

// broadcastEvents forwards process/alert/conn-check events to every
// connected WebSocket client.
func (s *Server) broadcastEvents(ctx context.Context, wg *sync.WaitGroup) {
	ch := s.Hub.Sub(process.TopicControllerState.Name, process.TopicAlert.Name, watchdogConnCheckTopic)
	wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.Hub.Unsub(ch)
			return
		case msg := <-ch:
			topic := eventName(msg)
			s.wsHub.Broadcast(topic, msg)
		}
	}
}

// watchdogConnCheckTopic is the event-bus topic name conn-check state
// transitions are published to (wired by the orchestrator's watchdog
// remediator, which reuses process.TopicAlert's publish mechanics under
// its own topic name).
const watchdogConnCheckTopic = "watchdog.conn"

func eventName(msg any) string {
	switch msg.(type) {
	case dto.ControllerStateSnapshot:
		return "state_update"
	case dto.Alert:
		return "alert"
	case dto.ConnCheckEvent:
		return "conn_check_update"
	default:
		return reflect.TypeOf(msg).String()
	}
}
