package dto

import "time"

// ProcessState is the controller's discriminated run-state enum.
type ProcessState int

const (
	Idle ProcessState = iota
	RunningAuto
	RunningManual
	PauseDoor
	PauseSensor
	PauseOverheat
	PauseUser
	PauseHeaterFault
	ErrorProfile
	SoftResume
)

// String renders a ProcessState the way /status's "stateText" field
// expects.
func (s ProcessState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case RunningAuto:
		return "RunningAuto"
	case RunningManual:
		return "RunningManual"
	case PauseDoor:
		return "PauseDoor"
	case PauseSensor:
		return "PauseSensor"
	case PauseOverheat:
		return "PauseOverheat"
	case PauseUser:
		return "PauseUser"
	case PauseHeaterFault:
		return "PauseHeaterFault"
	case ErrorProfile:
		return "ErrorProfile"
	case SoftResume:
		return "SoftResume"
	default:
		return "Unknown"
	}
}

// RunMode distinguishes the two ways a run can be driven: a loaded Profile's
// step sequence, or directly via manual setpoints.
type RunMode int

const (
	ModeAuto RunMode = iota
	ModeManual
)

func (m RunMode) String() string {
	if m == ModeManual {
		return "Manual"
	}
	return "Auto"
}

// HeaterEnable tracks the staged soft-enable of the three heater channels.
// Reset on every start/resume; mutated only by the Control task.
type HeaterEnable struct {
	H1 bool `json:"h1"`
	H2 bool `json:"h2"`
	H3 bool `json:"h3"`
	T1 time.Time `json:"-"`
	T2 time.Time `json:"-"`
	T3 time.Time `json:"-"`
}

// Ready reports whether all three heaters have completed their soft-enable
// stagger.
func (h HeaterEnable) Ready() bool {
	return h.H1 && h.H2 && h.H3
}

// CachedReading is a sensor's last-good value, used to fall back when the
// current acquisition cycle produces nothing usable.
type CachedReading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
	Attempts  int       `json:"attempts"`
}

// ProcessStats is the running aggregate reported alongside ControllerState.
type ProcessStats struct {
	TotalRuntimeSec    int64     `json:"totalRuntimeSec"`
	ActiveHeatingSec   int64     `json:"activeHeatingSec"`
	StepChanges        int       `json:"stepChanges"`
	PauseCount         int       `json:"pauseCount"`
	AvgTemperatureEMA  float64   `json:"avgTemperatureEMA"`
	LastUpdate         time.Time `json:"lastUpdate"`
	TotalPlannedSec    int       `json:"totalPlannedSec"`
	RemainingSec       int       `json:"remainingSec"`
}

// ControllerStateSnapshot is the point-in-time, lock-free copy of
// ControllerState published over the event bus, the WebSocket push hub, and
// GET /status. Never mutated after construction — each control tick builds
// a fresh one under stateMutex and hands it off by value.
type ControllerStateSnapshot struct {
	State    ProcessState `json:"state"`
	Mode     RunMode      `json:"mode"`

	TChamber  float64 `json:"tChamber"`
	TChamber1 float64 `json:"tChamber1"`
	TChamber2 float64 `json:"tChamber2"`
	TMeat     float64 `json:"tMeat"`
	TSet      float64 `json:"tSet"`

	PowerMode      int     `json:"powerMode"`
	ManualSmokePwm uint8   `json:"manualSmokePwm"`
	FanMode        FanMode `json:"fanMode"`
	FanOnTimeMs    int     `json:"fanOnTimeMs"`
	FanOffTimeMs   int     `json:"fanOffTimeMs"`

	DoorOpen        bool `json:"doorOpen"`
	ErrorSensor     bool `json:"errorSensor"`
	ErrorOverheat   bool `json:"errorOverheat"`
	ErrorProfile    bool `json:"errorProfile"`

	ActiveProfile    string `json:"activeProfile"`
	StepName         string `json:"stepName"`
	StepCount        int    `json:"stepCount"`
	CurrentStep      int    `json:"currentStep"`
	StepTotalTimeSec int    `json:"stepTotalTimeSec"`

	ProcessStartTime time.Time `json:"processStartTime"`
	StepStartTime    time.Time `json:"stepStartTime"`

	ElapsedTimeSec          int64 `json:"elapsedTimeSec"`
	RemainingProcessTimeSec int64 `json:"remainingProcessTimeSec"`

	Stats ProcessStats `json:"stats"`
}

// PowerModeText renders PowerMode the way /status's powerModeText field expects.
func (s ControllerStateSnapshot) PowerModeText() string {
	switch s.PowerMode {
	case 1:
		return "1 heater"
	case 2:
		return "2 heaters"
	case 3:
		return "3 heaters"
	default:
		return "off"
	}
}

// FanModeText renders FanMode the way /status's fanModeText field expects.
func (s ControllerStateSnapshot) FanModeText() string {
	switch s.FanMode {
	case FanOn:
		return "On"
	case FanCyclic:
		return "Cyclic"
	default:
		return "Off"
	}
}
