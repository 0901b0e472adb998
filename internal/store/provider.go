package store

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jeffreymoya/photoeditor-sub006/internal/ui"
)

// ProviderType is the element type of every Provider element. Re-rendering a
// tree whose root is a Provider with another Provider keeps the children
// mounted.
const ProviderType = "store.Provider"

// ChangedMsg is delivered to the provider's children after every Dispatch.
// Bursts of dispatches may be coalesced into one message carrying the latest
// state.
type ChangedMsg struct {
	State State
}

type providerProps struct {
	store *Store
	child ui.Element
}

// Provider makes s available to child and all of its descendants through
// FromContext.
func Provider(s *Store, child ui.Element) ui.Element {
	return ui.NewElement(ProviderType, newProvider, providerProps{store: s, child: child})
}

type changeSignal struct {
	ch    chan State
	state State
}

type provider struct {
	parent context.Context

	store       *Store
	ctx         context.Context
	cancel      context.CancelFunc
	changes     chan State
	unsubscribe func()

	child   ui.Slot
	initCmd tea.Cmd
}

func newProvider(ctx context.Context, props providerProps) (ui.Component, error) {
	if props.store == nil {
		return nil, errors.New("store: Provider needs a non-nil store")
	}

	p := &provider{parent: ctx}
	cmd, err := p.attach(props.store, props.child)
	if err != nil {
		return nil, err
	}
	p.initCmd = cmd
	return p, nil
}

// attach binds the provider to s and mounts child under the new context.
func (p *provider) attach(s *Store, child ui.Element) (tea.Cmd, error) {
	p.store = s
	p.ctx, p.cancel = context.WithCancel(WithStore(p.parent, s))
	p.changes = make(chan State, 1)

	changes := p.changes
	p.unsubscribe = s.Subscribe(func(st State) {
		select {
		case changes <- st:
		default:
			// A signal is already pending; Render reads the latest state anyway
		}
	})

	cmd, err := p.child.Reconcile(p.ctx, child)
	if err != nil {
		p.detach()
		return nil, err
	}
	return tea.Batch(cmd, p.listen()), nil
}

func (p *provider) detach() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// listen waits for the next store change. It returns nil once the provider's
// context is cancelled so that no goroutine outlives the mount.
func (p *provider) listen() tea.Cmd {
	ctx, changes := p.ctx, p.changes
	return func() tea.Msg {
		select {
		case st := <-changes:
			return changeSignal{ch: changes, state: st}
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *provider) Init() tea.Cmd {
	cmd := p.initCmd
	p.initCmd = nil
	return cmd
}

// Reconcile handles a re-render with a new Provider element. The same store
// keeps the child mounted and reconciles it; a different store remounts it.
func (p *provider) Reconcile(props any) (tea.Cmd, error) {
	next, ok := props.(providerProps)
	if !ok || next.store == nil {
		return nil, errors.New("store: Provider needs a non-nil store")
	}

	if next.store == p.store {
		return p.child.Reconcile(p.ctx, next.child)
	}

	p.child.Unmount()
	p.detach()
	return p.attach(next.store, next.child)
}

func (p *provider) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sig, ok := msg.(changeSignal); ok {
		if sig.ch != p.changes {
			// Left over from a store this provider no longer holds
			return p, nil
		}
		cmd := p.child.Update(ChangedMsg{State: sig.state})
		return p, tea.Batch(cmd, p.listen())
	}
	return p, p.child.Update(msg)
}

func (p *provider) Render() *ui.Node {
	return p.child.Render()
}

func (p *provider) View() string {
	return ui.View(p.Render())
}

func (p *provider) Unmount() {
	p.child.Unmount()
	p.detach()
}
