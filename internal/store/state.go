package store

// Flash modes cycled by the camera overlay.
const (
	FlashAuto = "auto"
	FlashOn   = "on"
	FlashOff  = "off"
)

var flashCycle = []string{FlashAuto, FlashOn, FlashOff}

// State is the application state shared by every component under a Provider.
type State struct {
	Settings Settings
	Session  Session
}

type Settings struct {
	GridOverlay bool
	Flash       string
	Theme       string
}

type Session struct {
	Captures      int
	LastCaptureID string
	Mode          string
}

// DefaultState returns the state a fresh session starts from.
func DefaultState() State {
	return State{
		Settings: Settings{
			Flash: FlashAuto,
			Theme: "dark",
		},
		Session: Session{
			Mode: "photo",
		},
	}
}

// Action is a state transition request handled by Reduce.
type Action interface {
	ActionName() string
}

type ToggleGrid struct{}

type SetFlash struct {
	Mode string
}

// CycleFlash advances the flash mode auto -> on -> off -> auto.
type CycleFlash struct{}

type SetMode struct {
	Mode string
}

type CapturePhoto struct {
	ID string
}

func (ToggleGrid) ActionName() string   { return "ToggleGrid" }
func (SetFlash) ActionName() string     { return "SetFlash" }
func (CycleFlash) ActionName() string   { return "CycleFlash" }
func (SetMode) ActionName() string      { return "SetMode" }
func (CapturePhoto) ActionName() string { return "CapturePhoto" }

// Reduce applies a to s. Unknown actions and invalid payloads leave s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ToggleGrid:
		s.Settings.GridOverlay = !s.Settings.GridOverlay
	case SetFlash:
		if validFlash(a.Mode) {
			s.Settings.Flash = a.Mode
		}
	case CycleFlash:
		s.Settings.Flash = nextFlash(s.Settings.Flash)
	case SetMode:
		if a.Mode != "" {
			s.Session.Mode = a.Mode
		}
	case CapturePhoto:
		s.Session.Captures++
		s.Session.LastCaptureID = a.ID
	}
	return s
}

func validFlash(mode string) bool {
	for _, m := range flashCycle {
		if m == mode {
			return true
		}
	}
	return false
}

func nextFlash(mode string) string {
	for i, m := range flashCycle {
		if m == mode {
			return flashCycle[(i+1)%len(flashCycle)]
		}
	}
	return FlashAuto
}
