package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jeffreymoya/photoeditor-sub006/internal/capability"
	"github.com/jeffreymoya/photoeditor-sub006/internal/config"
	"github.com/jeffreymoya/photoeditor-sub006/internal/store"
	"github.com/jeffreymoya/photoeditor-sub006/internal/ui"
	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

const (
	DefaultTimeout  = 200 * time.Millisecond
	DefaultInterval = 10 * time.Millisecond
)

// TimeoutError reports a render that never reached the awaited state. It
// carries the last committed snapshot so the failure can be diagnosed without
// a rerun.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Elapsed   time.Duration
	Last      ui.Snapshot
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("testutil: %s not reached after %v (timeout %v); last render, version %d:\n%s",
		e.Condition, e.Elapsed.Round(time.Millisecond), e.Timeout, e.Last.Version, ui.Sprint(e.Last.Tree))
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// Sentinel decides when a mounted tree has finished initialising.
type Sentinel struct {
	Name string
	Done func(tree *ui.Node) bool
}

// LoadingGone waits until the tree is non-empty and holds no progressbar node.
func LoadingGone() Sentinel {
	return Sentinel{
		Name: "loading indicator removed",
		Done: func(tree *ui.Node) bool {
			return tree != nil && tree.QueryByRole(ui.RoleProgressBar, "") == nil
		},
	}
}

// TestIDGone waits until no node carries id.
func TestIDGone(id string) Sentinel {
	return Sentinel{
		Name: fmt.Sprintf("test id %q removed", id),
		Done: func(tree *ui.Node) bool {
			return tree != nil && tree.QueryByTestID(id) == nil
		},
	}
}

// ProbeSettled waits until rec has seen a probe complete and the result has
// reached the tree.
func ProbeSettled(rec *capability.Recorder) Sentinel {
	gone := LoadingGone()
	return Sentinel{
		Name: "capability probe settled",
		Done: func(tree *ui.Node) bool {
			return rec.Completed() > 0 && gone.Done(tree)
		},
	}
}

type options struct {
	timeout  time.Duration
	interval time.Duration
	state    *store.State
	probe    capability.Probe
	sentinel Sentinel
	logger   *zap.Logger
}

// Option configures Mount and Render.
type Option func(*options)

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithState seeds the store instead of store.DefaultState.
func WithState(s store.State) Option {
	return func(o *options) { o.state = &s }
}

// WithProbe injects the capability probe components will call.
func WithProbe(p capability.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithConfig applies the [render] budget from cfg. Options given after it
// still override.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.timeout = cfg.GetRenderTimeout()
		o.interval = cfg.GetRenderInterval()
	}
}

func WithSentinel(s Sentinel) Option {
	return func(o *options) { o.sentinel = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func newOptions(opts []Option) options {
	o := options{
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		sentinel: LoadingGone(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Result is a mounted tree owned by one test.
type Result struct {
	root  *ui.Root
	store *store.Store
	bus   *events.EventBus
	opts  options
}

// Mount renders el inside a fresh store.Provider and waits for its
// asynchronous initialisation to finish. The store, its event bus and the
// program are created per call and never shared. On failure everything that
// was started is torn down before Mount returns; a *TimeoutError is returned
// when the sentinel is not reached within the timeout.
func Mount(ctx context.Context, el ui.Element, opts ...Option) (*Result, error) {
	o := newOptions(opts)

	state := store.DefaultState()
	if o.state != nil {
		state = *o.state
	}

	bus := events.NewEventBusWithConfig(events.WorkerPoolConfig{
		WorkerCount: 1,
		BufferSize:  64,
		Logger:      o.logger,
	})
	s := store.New(state, bus)

	mountCtx := ctx
	if o.probe != nil {
		mountCtx = capability.WithProbe(ctx, o.probe)
	}

	root, err := ui.Mount(mountCtx, store.Provider(s, el), ui.WithRootLogger(o.logger))
	if err != nil {
		bus.Shutdown()
		return nil, err
	}

	r := &Result{root: root, store: s, bus: bus, opts: o}
	if err := r.waitFor(ctx, o.sentinel); err != nil {
		r.Unmount()
		return nil, err
	}
	return r, nil
}

// Render is Mount for tests: it fails t on error and unmounts on cleanup.
// Log output goes to t.
func Render(t testing.TB, el ui.Element, opts ...Option) *Result {
	t.Helper()

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := Mount(context.Background(), el, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Unmount)
	return r
}

func (r *Result) waitFor(ctx context.Context, s Sentinel) error {
	start := time.Now()
	err := Poll(ctx, r.opts.timeout, r.opts.interval, r.root.Changed, func() (bool, error) {
		snap := r.root.Snapshot()
		if snap.Err != nil {
			return false, snap.Err
		}
		return s.Done(snap.Tree), nil
	})

	if errors.Is(err, ErrTimeout) {
		terr := &TimeoutError{
			Condition: s.Name,
			Timeout:   r.opts.timeout,
			Elapsed:   time.Since(start),
			Last:      r.root.Snapshot(),
		}
		r.opts.logger.Warn("render wait timed out",
			zap.String("condition", s.Name),
			zap.Duration("elapsed", terr.Elapsed))
		return terr
	}
	return err
}

// Rerender replaces the element under the same provider and store used at
// mount, so the new tree never loses the store.
func (r *Result) Rerender(el ui.Element) error {
	return r.root.Rerender(store.Provider(r.store, el))
}

// Act delivers msg and waits for the resulting commit.
func (r *Result) Act(msg tea.Msg) error {
	return r.root.Act(msg)
}

// Press sends each key in order through Act.
func (r *Result) Press(keys ...string) error {
	for _, k := range keys {
		if err := r.Act(KeyMsg(k)); err != nil {
			return err
		}
	}
	return nil
}

// WaitFor polls until done holds for the committed tree, with the same
// timeout and interval as the initial mount.
func (r *Result) WaitFor(name string, done func(tree *ui.Node) bool) error {
	return r.waitFor(context.Background(), Sentinel{Name: name, Done: done})
}

// FindByTestID waits for a node carrying id.
func (r *Result) FindByTestID(id string) (*ui.Node, error) {
	var found *ui.Node
	err := r.WaitFor(fmt.Sprintf("test id %q present", id), func(tree *ui.Node) bool {
		found = tree.QueryByTestID(id)
		return found != nil
	})
	return found, err
}

// FindByRole waits for a node with role and, when name is set, that name.
func (r *Result) FindByRole(role ui.Role, name string) (*ui.Node, error) {
	var found *ui.Node
	err := r.WaitFor(fmt.Sprintf("role %s %q present", role, name), func(tree *ui.Node) bool {
		found = tree.QueryByRole(role, name)
		return found != nil
	})
	return found, err
}

func (r *Result) QueryByTestID(id string) *ui.Node {
	return r.Tree().QueryByTestID(id)
}

func (r *Result) QueryByRole(role ui.Role, name string) *ui.Node {
	return r.Tree().QueryByRole(role, name)
}

func (r *Result) QueryAllByRole(role ui.Role) []*ui.Node {
	return r.Tree().QueryAllByRole(role)
}

func (r *Result) GetByTestID(id string) (*ui.Node, error) {
	return r.Tree().GetByTestID(id)
}

func (r *Result) GetByRole(role ui.Role, name string) (*ui.Node, error) {
	return r.Tree().GetByRole(role, name)
}

// Tree returns the latest committed tree.
func (r *Result) Tree() *ui.Node {
	return r.root.Snapshot().Tree
}

// View returns the latest committed terminal rendering.
func (r *Result) View() string {
	return r.root.Snapshot().View
}

func (r *Result) Snapshot() ui.Snapshot {
	return r.root.Snapshot()
}

// Store returns the store the provider threads through every render.
func (r *Result) Store() *store.Store {
	return r.store
}

// Bus returns the event bus the store publishes to.
func (r *Result) Bus() *events.EventBus {
	return r.bus
}

// Unmount tears the tree down. Safe to call more than once.
func (r *Result) Unmount() {
	r.root.Unmount()
	r.bus.Shutdown()
}

// KeyMsg converts a key name as printed by tea.KeyMsg.String back into a
// message. Unknown names are sent as runes.
func KeyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case " ", "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}
