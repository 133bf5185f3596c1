package ui

import (
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/flashfs"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
	"github.com/kdys14/smokehouse-controller/daemon/services/storage"
)

// State is one screen of the local menu's finite-state machine.
type State int

const (
	Idle State = iota
	MainMenu
	SourceMenu
	ProfileList
	EditManual
	ConfirmAction
	ConfirmNextStep
	SystemSettings
	WiFiSettings
	Diagnostics
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case MainMenu:
		return "MainMenu"
	case SourceMenu:
		return "SourceMenu"
	case ProfileList:
		return "ProfileList"
	case EditManual:
		return "EditManual"
	case ConfirmAction:
		return "ConfirmAction"
	case ConfirmNextStep:
		return "ConfirmNextStep"
	case SystemSettings:
		return "SystemSettings"
	case WiFiSettings:
		return "WiFiSettings"
	case Diagnostics:
		return "Diagnostics"
	default:
		return "Unknown"
	}
}

const profilesDir = "profiles/"

// Deps bundles the Menu's collaborators.
type Deps struct {
	Controller *process.Controller
	Flash      *flashfs.FlashFS
	NVS        *storage.NVS
	Profiles   *storage.ProfileLoader
	Pad        ButtonPad
	Drawer     flashfs.TFTDrawer
}

// Menu is the UI task: a finite-state local menu driven by four debounced
// buttons, drawn to the shared TFT display.
type Menu struct {
	Deps

	state    State
	cursor   int
	profiles []string
	selected string

	manualTSet  float64
	manualPower int

	buttons buttonState
}

// NewMenu creates a Menu starting on Idle.
func NewMenu(deps Deps) *Menu {
	if deps.Pad == nil {
		deps.Pad = LoggingButtonPad{}
	}
	if deps.Drawer == nil {
		deps.Drawer = flashfs.NoopTFTDrawer{}
	}
	return &Menu{Deps: deps, state: Idle}
}

// Tick polls the buttons, advances the state machine, and redraws.
func (m *Menu) Tick(now time.Time) {
	_, justPressed, enterHold := m.buttons.poll(m.Pad, now)

	if m.state == Idle && enterHold >= constants.AuthResetHold {
		logger.Info("ui: Enter held %s on Idle, resetting web auth", constants.AuthResetHold)
		if err := m.NVS.ResetAuth(); err != nil {
			logger.Error("ui: auth reset failed: %v", err)
		}
		m.buttons.enterHeldAt = time.Time{}
	}

	for b := ButtonUp; b <= ButtonExit; b++ {
		if justPressed[b] {
			logButtonEdge(b)
			m.handle(b)
		}
	}

	m.Drawer.Draw("ui:" + m.state.String())
}

func (m *Menu) handle(b Button) {
	switch m.state {
	case Idle:
		if b == ButtonEnter {
			m.state = MainMenu
			m.cursor = 0
		}

	case MainMenu:
		switch b {
		case ButtonUp, ButtonDown:
			m.cursor = (m.cursor + 1) % 4
		case ButtonEnter:
			switch m.cursor {
			case 0:
				m.state = SourceMenu
			case 1:
				m.state = EditManual
			case 2:
				m.state = SystemSettings
			case 3:
				m.state = Diagnostics
			}
			m.cursor = 0
		case ButtonExit:
			m.state = Idle
		}

	case SourceMenu:
		switch b {
		case ButtonUp, ButtonDown:
			m.refreshProfiles()
			if len(m.profiles) > 0 {
				m.cursor = (m.cursor + 1) % len(m.profiles)
			}
		case ButtonEnter:
			m.refreshProfiles()
			if m.cursor < len(m.profiles) {
				m.selected = m.profiles[m.cursor]
				m.state = ConfirmAction
			}
		case ButtonExit:
			m.state = MainMenu
		}

	case ProfileList:
		if b == ButtonExit {
			m.state = SourceMenu
		}

	case EditManual:
		switch b {
		case ButtonUp:
			m.manualTSet++
		case ButtonDown:
			m.manualTSet--
		case ButtonEnter:
			m.state = ConfirmAction
		case ButtonExit:
			m.state = MainMenu
		}

	case ConfirmAction:
		switch b {
		case ButtonEnter:
			m.confirmStart()
			m.state = Idle
		case ButtonExit:
			m.state = MainMenu
		}

	case ConfirmNextStep:
		switch b {
		case ButtonEnter:
			m.Controller.Enqueue(process.NextStepCommand())
			m.state = Idle
		case ButtonExit:
			m.state = Idle
		}

	case SystemSettings:
		if b == ButtonExit {
			m.state = MainMenu
		}
		if b == ButtonEnter {
			m.state = WiFiSettings
		}

	case WiFiSettings:
		if b == ButtonExit {
			m.state = SystemSettings
		}

	case Diagnostics:
		switch b {
		case ButtonExit:
			m.state = MainMenu
		case ButtonEnter:
			snap := m.Controller.Snapshot()
			if snap.State == dto.RunningAuto {
				m.state = ConfirmNextStep
			}
		}
	}
}

func (m *Menu) refreshProfiles() {
	m.profiles = m.Flash.List(profilesDir)
}

func (m *Menu) confirmStart() {
	if m.selected == "" {
		profile := dto.Profile{
			Name: "manual",
			Steps: []dto.Step{{
				Name:    "manual",
				TSet:    m.manualTSet,
				MinTime: 0,
			}},
		}
		_ = profile
		m.Controller.Enqueue(process.StartManualCommand())
		return
	}

	profile, err := m.Profiles.Load(profilesDir + m.selected)
	if err != nil {
		logger.Error("ui: loading profile %q: %v", m.selected, err)
		return
	}
	m.Controller.Enqueue(process.StartAutoCommand(profile))
}
