package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Slot holds at most one mounted component and reconciles new elements
// against it. The zero value is an empty slot. A Slot is not safe for
// concurrent use; it belongs to the goroutine running the tree.
type Slot struct {
	typ    string
	id     string
	comp   Component
	cancel context.CancelFunc
}

// Reconcile mounts el into the slot. When the slot already holds a component
// of the same type, that component receives a PropsMsg and keeps its state;
// otherwise the current component is unmounted and el is built under ctx.
func (s *Slot) Reconcile(ctx context.Context, el Element) (tea.Cmd, error) {
	if s.comp != nil && !el.IsZero() && s.typ == el.Type {
		if r, ok := s.comp.(Reconciler); ok {
			return r.Reconcile(el.Props)
		}
		return s.Update(PropsMsg{Props: el.Props}), nil
	}

	s.Unmount()
	if el.IsZero() {
		return nil, nil
	}

	id := uuid.NewString()
	cctx, cancel := context.WithCancel(context.WithValue(ctx, mountIDKey{}, id))
	comp, err := el.build(cctx)
	if err != nil {
		cancel()
		return nil, &BuildError{Type: el.Type, Err: err}
	}

	s.typ, s.id, s.comp, s.cancel = el.Type, id, comp, cancel
	Logger(ctx).Debug("mounted", zap.String("component", el.Type), zap.String("mount_id", id))
	return comp.Init(), nil
}

// Update forwards msg to the mounted component.
func (s *Slot) Update(msg tea.Msg) tea.Cmd {
	if s.comp == nil {
		return nil
	}
	m, cmd := s.comp.Update(msg)
	next, ok := m.(Component)
	if !ok {
		panic(fmt.Sprintf("ui: %s.Update returned %T, want ui.Component", s.typ, m))
	}
	s.comp = next
	return cmd
}

// Render returns the mounted component's tree, or nil for an empty slot.
func (s *Slot) Render() *Node {
	if s.comp == nil {
		return nil
	}
	return s.comp.Render()
}

// Unmount cancels the component's context and empties the slot.
func (s *Slot) Unmount() {
	if s.comp == nil {
		return
	}
	if u, ok := s.comp.(Unmounter); ok {
		u.Unmount()
	}
	s.cancel()
	s.typ, s.id, s.comp, s.cancel = "", "", nil, nil
}

// Type returns the component type currently mounted, or "".
func (s *Slot) Type() string {
	return s.typ
}

// Component returns the mounted component, or nil.
func (s *Slot) Component() Component {
	return s.comp
}
