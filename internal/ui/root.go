package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Snapshot is a committed view of a mounted tree. A new snapshot is published
// after every message the tree processes.
type Snapshot struct {
	Tree    *Node
	View    string
	Version uint64
	Err     error
}

type rootConfig struct {
	logger   *zap.Logger
	quitKeys []string
}

// Option configures Mount and NewProgram.
type Option func(*rootConfig)

// WithRootLogger sets the logger used by the runtime and handed to components.
func WithRootLogger(logger *zap.Logger) Option {
	return func(c *rootConfig) {
		c.logger = logger
	}
}

// WithQuitKeys makes the listed keys end the program. Only useful for
// interactive programs.
func WithQuitKeys(keys ...string) Option {
	return func(c *rootConfig) {
		c.quitKeys = keys
	}
}

func newRootConfig(opts []Option) rootConfig {
	cfg := rootConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

type rerenderMsg struct {
	el   Element
	done chan error
}

type actMsg struct {
	msg  tea.Msg
	done chan error
}

// host is the top-level Bubble Tea model. It owns the root slot and publishes
// a snapshot after each Update.
type host struct {
	ctx      context.Context
	slot     Slot
	initCmd  tea.Cmd
	quitKeys map[string]bool
	publish  func(tree *Node, view string, err error)
	view     string
}

func newHost(ctx context.Context, el Element, cfg rootConfig, publish func(*Node, string, error)) (*host, error) {
	h := &host{
		ctx:      WithLogger(ctx, cfg.logger),
		quitKeys: make(map[string]bool, len(cfg.quitKeys)),
		publish:  publish,
	}
	for _, k := range cfg.quitKeys {
		h.quitKeys[k] = true
	}

	cmd, err := h.slot.Reconcile(h.ctx, el)
	if err != nil {
		return nil, err
	}
	h.initCmd = cmd
	h.commit(nil)
	return h, nil
}

func (h *host) Init() tea.Cmd {
	return h.initCmd
}

func (h *host) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var done chan error
	cmd, err := h.apply(msg, &done)
	h.commit(err)
	if done != nil {
		done <- err
	}
	return h, cmd
}

func (h *host) apply(msg tea.Msg, done *chan error) (cmd tea.Cmd, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	switch msg := msg.(type) {
	case rerenderMsg:
		*done = msg.done
		return h.slot.Reconcile(h.ctx, msg.el)
	case actMsg:
		*done = msg.done
		return h.slot.Update(msg.msg), nil
	case ErrorMsg:
		return nil, msg.Err
	case tea.KeyMsg:
		if h.quitKeys[msg.String()] {
			return tea.Quit, nil
		}
	}
	return h.slot.Update(msg), nil
}

func (h *host) commit(err error) {
	tree := h.slot.Render()
	h.view = View(tree)
	if h.publish != nil {
		h.publish(tree, h.view, err)
	}
}

func (h *host) View() string {
	return h.view
}

// Root is an element tree mounted in a headless Bubble Tea program. Every
// Update and Render runs on the program goroutine; callers observe the tree
// only through committed snapshots.
type Root struct {
	program *tea.Program
	host    *host
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *zap.Logger

	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
	runErr  error

	unmountOnce sync.Once
}

// Mount builds el under ctx and starts it. It returns once the initial tree is
// committed. Constructor failures, such as a component rendered outside the
// provider it needs, are returned as a *BuildError and leave nothing running.
func Mount(ctx context.Context, el Element, opts ...Option) (*Root, error) {
	cfg := newRootConfig(opts)
	compCtx, cancel := context.WithCancel(ctx)

	r := &Root{
		cancel:  cancel,
		done:    make(chan struct{}),
		changed: make(chan struct{}),
		logger:  cfg.logger.Named("ui"),
	}

	h, err := newHost(compCtx, el, cfg, r.publish)
	if err != nil {
		cancel()
		return nil, err
	}
	r.host = h

	// The program runs under its own context. Bubble Tea's event loop hands
	// commands to its handler without watching the context, so cancelling it
	// while an Update is in flight would leave Run blocked forever. The
	// program is stopped with Quit instead and its context released after
	// Run returns.
	progCtx, stop := context.WithCancel(context.Background())
	r.program = tea.NewProgram(h,
		tea.WithContext(progCtx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	stopQuitOnDone := context.AfterFunc(ctx, r.program.Quit)

	go func() {
		defer close(r.done)
		defer stop()
		defer stopQuitOnDone()
		_, err := r.program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			r.mu.Lock()
			r.runErr = err
			r.mu.Unlock()
			r.logger.Warn("program stopped", zap.Error(err))
		}
	}()

	r.logger.Debug("root mounted", zap.String("component", el.Type))
	return r, nil
}

// NewProgram builds el under ctx and returns an interactive program for a
// real terminal. The caller runs it; the program quits once ctx is done.
func NewProgram(ctx context.Context, el Element, opts []Option, programOpts ...tea.ProgramOption) (*tea.Program, error) {
	cfg := newRootConfig(opts)
	h, err := newHost(ctx, el, cfg, nil)
	if err != nil {
		return nil, err
	}
	p := tea.NewProgram(h, programOpts...)
	// Quit rather than kill, for the same reason as Mount
	context.AfterFunc(ctx, p.Quit)
	return p, nil
}

func (r *Root) publish(tree *Node, view string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap = Snapshot{
		Tree:    tree,
		View:    view,
		Version: r.snap.Version + 1,
		Err:     err,
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

// Snapshot returns the latest committed tree.
func (r *Root) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Changed returns a channel closed at the next commit.
func (r *Root) Changed() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

// Done is closed once the program has stopped.
func (r *Root) Done() <-chan struct{} {
	return r.done
}

// Rerender reconciles el against the mounted tree and waits for the result.
// The element replaces the whole tree: providers that wrapped the previous
// element are not reapplied.
func (r *Root) Rerender(el Element) error {
	return r.roundTrip(func(done chan error) tea.Msg {
		return rerenderMsg{el: el, done: done}
	})
}

// Act delivers msg to the tree and waits until the resulting snapshot is
// committed. Work started by commands msg returns is not awaited.
func (r *Root) Act(msg tea.Msg) error {
	return r.roundTrip(func(done chan error) tea.Msg {
		return actMsg{msg: msg, done: done}
	})
}

// Send delivers msg without waiting.
func (r *Root) Send(msg tea.Msg) {
	select {
	case <-r.done:
	default:
		r.program.Send(msg)
	}
}

func (r *Root) roundTrip(build func(chan error) tea.Msg) error {
	done := make(chan error, 1)

	select {
	case <-r.done:
		return ErrUnmounted
	default:
	}

	r.program.Send(build(done))

	select {
	case err := <-done:
		return err
	case <-r.done:
		return ErrUnmounted
	}
}

// Err returns the error the program stopped with, if any.
func (r *Root) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runErr
}

// Unmount stops the program, waits for the program goroutine to exit and then
// cancels every component context. It is safe to call more than once.
func (r *Root) Unmount() {
	r.unmountOnce.Do(func() {
		select {
		case <-r.done:
		default:
			r.program.Quit()
		}
		<-r.done
		// The program goroutine is gone; the slot can be touched here.
		r.cancel()
		r.host.slot.Unmount()
		r.logger.Debug("root unmounted")
	})
}
