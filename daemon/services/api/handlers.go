package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/lib"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("api: encoding response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, dto.Response{Success: true, Data: data, Timestamp: time.Now()})
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, dto.Response{Success: false, Error: err.Error(), Timestamp: time.Now()})
}

// handleStatus serves GET /status: the cached latest ControllerStateSnapshot
// plus the derived text fields the local display and dashboards expect.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.latestSnapshot()

	writeOK(w, map[string]interface{}{
		"tChamber":                snap.TChamber,
		"tChamber1":               snap.TChamber1,
		"tChamber2":               snap.TChamber2,
		"tMeat":                   snap.TMeat,
		"tSet":                    snap.TSet,
		"powerMode":               snap.PowerMode,
		"powerModeText":           snap.PowerModeText(),
		"fanMode":                 snap.FanMode,
		"fanModeText":             snap.FanModeText(),
		"smokePwm":                snap.ManualSmokePwm,
		"mode":                    snap.Mode.String(),
		"state":                   int(snap.State),
		"stateText":               snap.State.String(),
		"doorOpen":                snap.DoorOpen,
		"errorSensor":             snap.ErrorSensor,
		"errorOverheat":           snap.ErrorOverheat,
		"errorProfile":            snap.ErrorProfile,
		"activeProfile":           snap.ActiveProfile,
		"stepName":                snap.StepName,
		"stepCount":               snap.StepCount,
		"currentStep":             snap.CurrentStep,
		"stepTotalTimeSec":        snap.StepTotalTimeSec,
		"elapsedTimeSec":          snap.ElapsedTimeSec,
		"remainingProcessTimeSec": snap.RemainingProcessTimeSec,
		"stats":                   snap.Stats,
	})
}

// handleProcessPID serves GET /api/v1/process/pid, the Go stand-in for the
// original firmware's getPidParameters() debug output.
func (s *Server) handleProcessPID(w http.ResponseWriter, r *http.Request) {
	kp, ki, kd := s.Controller.PIDParams()
	writeOK(w, dto.PIDParameters{Kp: kp, Ki: ki, Kd: kd})
}

// handleWatchdogStatus serves GET /api/v1/watchdog: the task-liveness report
// scheduler.Supervisor already maintains.
func (s *Server) handleWatchdogStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]string{"report": s.Supervisor.StatusReport()})
}

const profilesDir = "profiles/"

// handleListProfiles serves GET /api/profiles: every live flash file under
// profiles/.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.Flash.List(profilesDir))
}

// githubProfileIndex is the conventional manifest GET /api/github_profiles
// fetches, listing the profile names published at the fixed GitHub source.
const githubProfileIndex = "index.json"

// handleListGitHubProfiles serves GET /api/github_profiles by fetching a
// conventional index.json manifest from the pinned GitHub source.
// GitHubFetcher has no directory-listing API of its own; the manifest file
// is the one concession a static-file HTTPS GET can still support.
func (s *Server) handleListGitHubProfiles(w http.ResponseWriter, r *http.Request) {
	if s.GitHub == nil {
		writeOK(w, []string{})
		return
	}
	data, err := s.GitHub.Fetch(githubProfileIndex)
	if err != nil {
		logger.Error("api: fetching github profile index: %v", err)
		writeOK(w, []string{})
		return
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		logger.Error("api: parsing github profile index: %v", err)
		writeOK(w, []string{})
		return
	}
	writeOK(w, names)
}

func profilePath(r *http.Request) string {
	q := r.URL.Query()
	name := q.Get("name")
	if q.Get("source") == "github" {
		return "github:" + name
	}
	return profilesDir + name
}

// handleProfileGet serves GET /profile/get?name=&source=: the raw profile
// text, not a parsed Profile, matching what the local UI's edit screen
// round-trips through POST /files/write.
func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	path := profilePath(r)
	data, err := s.Flash.ReadFile(path, 0)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, map[string]string{"name": r.URL.Query().Get("name"), "contents": string(data)})
}

// handleProfileSelect serves GET /profile/select?name=&source=: loads and
// validates the named profile, then enqueues StartAutoCommand.
func (s *Server) handleProfileSelect(w http.ResponseWriter, r *http.Request) {
	path := profilePath(r)
	profile, err := s.Profiles.Load(path)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if !s.Controller.Enqueue(process.StartAutoCommand(profile)) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, map[string]string{"profile": profile.Name})
}

func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	s.handleProfileSelect(w, r)
}

func (s *Server) handleAutoStop(w http.ResponseWriter, r *http.Request) {
	if !s.Controller.Enqueue(process.StopCommand()) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleAutoNextStep(w http.ResponseWriter, r *http.Request) {
	if !s.Controller.Enqueue(process.NextStepCommand()) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleModeManual(w http.ResponseWriter, r *http.Request) {
	if !s.Controller.Enqueue(process.StartManualCommand()) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleTimerReset(w http.ResponseWriter, r *http.Request) {
	if !s.Controller.Enqueue(process.ResetTimerCommand()) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func queryInt(r *http.Request, key string) (*int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// handleManualSet serves GET /manual/set?tSet=&power=&fanMode=&fanOnMs=&fanOffMs=,
// a partial update of the manual setpoints.
func (s *Server) handleManualSet(w http.ResponseWriter, r *http.Request) {
	tSet, err := queryFloat(r, "tSet")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	power, err := queryInt(r, "power")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fanOnMs, err := queryInt(r, "fanOnMs")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fanOffMs, err := queryInt(r, "fanOffMs")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	var fanMode *dto.FanMode
	if raw, err := queryInt(r, "fanMode"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	} else if raw != nil {
		fm := dto.FanMode(*raw)
		fanMode = &fm
	}

	if !s.Controller.Enqueue(process.SetManualCommand(tSet, power, nil, fanMode, fanOnMs, fanOffMs)) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleManualPower(w http.ResponseWriter, r *http.Request) {
	power, err := queryInt(r, "power")
	if err != nil || power == nil {
		writeErr(w, http.StatusBadRequest, errMissingParam("power"))
		return
	}
	if !s.Controller.Enqueue(process.SetManualCommand(nil, power, nil, nil, nil, nil)) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleManualSmoke(w http.ResponseWriter, r *http.Request) {
	raw, err := queryInt(r, "smoke")
	if err != nil || raw == nil {
		writeErr(w, http.StatusBadRequest, errMissingParam("smoke"))
		return
	}
	pwm := lib.ClampSmokePwm(*raw)
	if !s.Controller.Enqueue(process.SetManualCommand(nil, nil, &pwm, nil, nil, nil)) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleManualFan(w http.ResponseWriter, r *http.Request) {
	raw, err := queryInt(r, "fanMode")
	if err != nil || raw == nil {
		writeErr(w, http.StatusBadRequest, errMissingParam("fanMode"))
		return
	}
	fanOnMs, err := queryInt(r, "fanOnMs")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fanOffMs, err := queryInt(r, "fanOffMs")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	fm := dto.FanMode(*raw)
	if !s.Controller.Enqueue(process.SetManualCommand(nil, nil, nil, &fm, fanOnMs, fanOffMs)) {
		writeErr(w, http.StatusServiceUnavailable, errQueueFull)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleFlashInfo(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.Flash.Info())
}

func (s *Server) handleFlashFormat(w http.ResponseWriter, r *http.Request) {
	if err := s.Flash.Format(); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	writeOK(w, s.Flash.List(prefix))
}

func (s *Server) handleFilesRead(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeErr(w, http.StatusBadRequest, errMissingParam("path"))
		return
	}
	data, err := s.Flash.ReadFile(path, 0)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, map[string]string{"path": path, "contents": string(data)})
}

type filesWriteRequest struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

func (s *Server) handleFilesWrite(w http.ResponseWriter, r *http.Request) {
	var req filesWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Flash.WriteFile(req.Path, []byte(req.Contents)); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

type filesDeleteRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleFilesDelete(w http.ResponseWriter, r *http.Request) {
	var req filesDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Flash.Delete(req.Path); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

// handleUpdate serves POST /update: a raw firmware image body handed to
// the pinned OTAUpdater.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	s.HWWatchdog.SetUploading(true)
	defer s.HWWatchdog.SetUploading(false)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.OTA.ApplyUpdate(data); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

type wifiSaveRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// handleWiFiSave serves POST /wifi/save, persisting WiFi credentials to NVS.
// Applying them to a live station/AP driver is out of scope (no such driver
// wired in this deployment); the value is simply stored for the next boot.
func (s *Server) handleWiFiSave(w http.ResponseWriter, r *http.Request) {
	var req wifiSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.NVS.Set("wifi_ssid", req.SSID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.NVS.Set("wifi_pass", req.Password); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

type authSaveRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAuthSave(w http.ResponseWriter, r *http.Request) {
	var req authSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := lib.ValidateNonEmpty(req.Username, "username"); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.NVS.Set("auth_user", req.Username); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.NVS.Set("auth_pass", req.Password); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleAlertStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.AlertEngine.GetStatuses())
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.AlertEngine.GetHistory())
}

func (s *Server) handleFiringAlerts(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.AlertEngine.GetFiringAlerts())
}

func (s *Server) handleListAlertRules(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.AlertStore.GetRules())
}

func (s *Server) handleGetAlertRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.AlertStore.GetRule(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, rule)
}

func (s *Server) handleCreateAlertRule(w http.ResponseWriter, r *http.Request) {
	var rule dto.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.AlertStore.CreateRule(rule); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	s.AlertEngine.RecompileRules()
	writeOK(w, rule)
}

func (s *Server) handleUpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	var rule dto.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	rule.ID = mux.Vars(r)["id"]
	if err := s.AlertStore.UpdateRule(rule); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	s.AlertEngine.RecompileRules()
	writeOK(w, rule)
}

func (s *Server) handleDeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.AlertStore.DeleteRule(id); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	s.AlertEngine.RecompileRules()
	writeOK(w, nil)
}

func (s *Server) handleListConnChecks(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.WatchdogStore.GetChecks())
}

func (s *Server) handleGetConnCheck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	check, err := s.WatchdogStore.GetCheck(id)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, check)
}

func (s *Server) handleCreateConnCheck(w http.ResponseWriter, r *http.Request) {
	var check dto.ConnCheck
	if err := json.NewDecoder(r.Body).Decode(&check); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.WatchdogStore.CreateCheck(check); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w, check)
}

func (s *Server) handleUpdateConnCheck(w http.ResponseWriter, r *http.Request) {
	var check dto.ConnCheck
	if err := json.NewDecoder(r.Body).Decode(&check); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	check.ID = mux.Vars(r)["id"]
	if err := s.WatchdogStore.UpdateCheck(check); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeOK(w, check)
}

func (s *Server) handleDeleteConnCheck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.WatchdogStore.DeleteCheck(id); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeOK(w, nil)
}

var errQueueFull = errMissingParam("command queue full")

func errMissingParam(name string) error {
	return &paramError{name: name}
}

type paramError struct{ name string }

func (e *paramError) Error() string { return "api: " + e.name }
