// Package camera implements the camera overlay shown over the live preview.
//
// The overlay probes the device before it renders any controls. Until the
// probe resolves it renders only a progress placeholder with test ID
// LoadingTestID; afterwards it renders the controls, or an alert when no
// camera is usable. The overlay never returns to the placeholder within one
// mount, and the probe runs once per mount: new props do not re-run it.
package camera

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub006/internal/capability"
	"github.com/jeffreymoya/photoeditor-sub006/internal/store"
	"github.com/jeffreymoya/photoeditor-sub006/internal/ui"
)

const TypeName = "camera.Overlay"

// Test IDs of the nodes the overlay renders.
const (
	LoadingTestID     = "camera-overlay-loading"
	OverlayTestID     = "camera-overlay"
	UnavailableTestID = "camera-unavailable"
	GridTestID        = "camera-grid"
	ModeTestID        = "camera-mode"
	FlashTestID       = "camera-flash"
	CapturesTestID    = "camera-captures"
)

type Props struct {
	// Mode overrides the session mode shown in the header.
	Mode  string
	Label string
}

// Element returns an overlay element. It must be rendered under a
// store.Provider.
func Element(props Props) ui.Element {
	return ui.NewElement(TypeName, New, props)
}

type phase int

const (
	phasePending phase = iota
	phaseResolved
)

type resolvedMsg struct {
	mountID string
	flags   capability.Flags
	err     error
}

type Overlay struct {
	ctx     context.Context
	mountID string
	store   *store.Store
	probe   capability.Probe
	logger  *zap.Logger

	props    Props
	phase    phase
	flags    capability.Flags
	probeErr error
	spinner  spinner.Model
}

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

// New builds an overlay. It fails with store.ErrMissingContext outside a
// store.Provider.
func New(ctx context.Context, props Props) (ui.Component, error) {
	s, err := store.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return &Overlay{
		ctx:     ctx,
		mountID: ui.MountID(ctx),
		store:   s,
		probe:   capability.FromContext(ctx),
		logger:  ui.Logger(ctx).Named("camera"),
		props:   props,
		spinner: sp,
	}, nil
}

func (o *Overlay) Init() tea.Cmd {
	return tea.Batch(o.spinner.Tick, o.runProbe())
}

func (o *Overlay) runProbe() tea.Cmd {
	ctx, id, probe := o.ctx, o.mountID, o.probe
	return func() tea.Msg {
		flags, err := probe(ctx)
		if ctx.Err() != nil {
			// Unmounted while probing
			return nil
		}
		return resolvedMsg{mountID: id, flags: flags, err: err}
	}
}

func (o *Overlay) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resolvedMsg:
		o.resolve(msg)
		return o, nil

	case spinner.TickMsg:
		if o.phase != phasePending {
			// Dropping the tick stops the animation
			return o, nil
		}
		var cmd tea.Cmd
		o.spinner, cmd = o.spinner.Update(msg)
		return o, cmd

	case ui.PropsMsg:
		if props, ok := msg.Props.(Props); ok {
			o.props = props
		}
		return o, nil

	case tea.KeyMsg:
		if o.phase != phasePending {
			o.handleKey(msg.String())
		}
		return o, nil
	}

	return o, nil
}

func (o *Overlay) resolve(msg resolvedMsg) {
	if msg.mountID != o.mountID || o.phase == phaseResolved {
		return
	}

	o.phase = phaseResolved
	if msg.err != nil {
		o.probeErr = msg.err
		o.flags = capability.Disabled(msg.err.Error())
		o.logger.Warn("capability probe failed", zap.Error(msg.err))
		return
	}
	o.flags = msg.flags
	o.logger.Debug("capability resolved", zap.Bool("enabled", msg.flags.Enabled))
}

func (o *Overlay) handleKey(key string) {
	switch key {
	case "enter", " ":
		if o.flags.Enabled {
			o.store.Dispatch(store.CapturePhoto{ID: uuid.NewString()})
		}
	case "g":
		o.store.Dispatch(store.ToggleGrid{})
	case "f":
		o.store.Dispatch(store.CycleFlash{})
	}
}

// Resolved reports whether the probe has completed for this mount.
func (o *Overlay) Resolved() bool {
	return o.phase == phaseResolved
}

// ProbeErr returns the error the probe failed with, if it failed.
func (o *Overlay) ProbeErr() error {
	return o.probeErr
}

func (o *Overlay) Render() *ui.Node {
	if o.phase == phasePending {
		return &ui.Node{
			Role:   ui.RoleProgressBar,
			TestID: LoadingTestID,
			Name:   "Checking camera",
			Text:   o.spinner.View() + " Checking camera...",
		}
	}

	state := o.store.GetState()
	mode := o.props.Mode
	if mode == "" {
		mode = state.Session.Mode
	}

	children := []*ui.Node{
		{Role: ui.RoleText, TestID: ModeTestID, Text: "Mode: " + mode},
	}
	if o.props.Label != "" {
		children = append(children, &ui.Node{Role: ui.RoleText, Text: o.props.Label})
	}
	children = append(children, &ui.Node{
		Role: ui.RoleText, TestID: FlashTestID, Text: "Flash: " + state.Settings.Flash,
	})
	if state.Settings.GridOverlay {
		children = append(children, &ui.Node{
			Role: ui.RoleImage, TestID: GridTestID, Name: "Grid", Text: "┼ rule of thirds ┼",
		})
	}

	if o.flags.Enabled {
		children = append(children,
			&ui.Node{Role: ui.RoleButton, Name: "Capture", Text: "Capture"},
			&ui.Node{Role: ui.RoleText, TestID: CapturesTestID, Text: fmt.Sprintf("Captured: %d", state.Session.Captures)},
		)
	} else {
		reason := o.flags.Metadata["reason"]
		if reason == "" {
			reason = "camera disabled"
		}
		children = append(children, &ui.Node{
			Role: ui.RoleAlert, TestID: UnavailableTestID, Text: "Camera unavailable: " + reason,
		})
	}

	return &ui.Node{
		Role:     ui.RoleGroup,
		TestID:   OverlayTestID,
		Name:     "Camera overlay",
		Children: children,
	}
}

func (o *Overlay) View() string {
	return ui.View(o.Render())
}
