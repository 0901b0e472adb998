package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

var (
	// ErrUnmounted is returned by operations on a root that has been torn down.
	ErrUnmounted = errors.New("ui: root is unmounted")
	// ErrPanic wraps a panic recovered while updating the tree.
	ErrPanic = errors.New("ui: panic during update")
)

// Component is a Bubble Tea model that also exposes a semantic render tree.
type Component interface {
	tea.Model
	Render() *Node
}

// Unmounter is implemented by components that release resources when they
// leave the tree.
type Unmounter interface {
	Unmount()
}

// Reconciler is implemented by components that need to report failures when
// re-rendered with new props, typically because they mount children of their
// own. Components without it receive a PropsMsg instead.
type Reconciler interface {
	Reconcile(props any) (tea.Cmd, error)
}

// ComponentFunc builds a component instance. ctx carries everything the
// enclosing providers supplied and is cancelled when the instance unmounts.
type ComponentFunc[P any] func(ctx context.Context, props P) (Component, error)

// Element describes what to mount: a component type plus its props.
type Element struct {
	Type  string
	Props any
	build func(ctx context.Context) (Component, error)
}

// NewElement binds props to a component constructor. Elements sharing a
// typeName are treated as the same component during reconciliation.
func NewElement[P any](typeName string, fn ComponentFunc[P], props P) Element {
	return Element{
		Type:  typeName,
		Props: props,
		build: func(ctx context.Context) (Component, error) {
			return fn(ctx, props)
		},
	}
}

// IsZero reports whether e is the empty element.
func (e Element) IsZero() bool {
	return e.build == nil
}

// PropsMsg is delivered to a live component when it is re-rendered with an
// element of its own type.
type PropsMsg struct {
	Props any
}

// ErrorMsg lets a component report a failure to the root. The error is
// recorded on the next snapshot.
type ErrorMsg struct {
	Err error
}

// BuildError is returned when a component constructor fails.
type BuildError struct {
	Type string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("ui: build %s: %v", e.Type, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

type mountIDKey struct{}
type loggerKey struct{}

// MountID returns the identifier of the component instance owning ctx.
// Components tag asynchronous messages with it so that a message produced for
// one mount is never applied to another.
func MountID(ctx context.Context) string {
	id, _ := ctx.Value(mountIDKey{}).(string)
	return id
}

// WithLogger attaches a logger for components built under ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the logger attached to ctx, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
