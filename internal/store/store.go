package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jeffreymoya/photoeditor-sub006/pkg/events"
)

// ErrMissingContext is returned when a component that needs the store is
// built outside a Provider.
var ErrMissingContext = errors.New("store: no store in context, wrap the element in store.Provider")

// Store holds State and serialises transitions through Reduce.
type Store struct {
	mu          sync.RWMutex
	state       State
	subscribers map[uint64]func(State)
	nextID      uint64
	bus         *events.EventBus
}

// New creates a store. bus may be nil; when set, every dispatch publishes an
// events.StoreChanged event.
func New(initial State, bus *events.EventBus) *Store {
	return &Store{
		state:       initial,
		subscribers: make(map[uint64]func(State)),
		bus:         bus,
	}
}

// GetState returns a copy of the current state.
func (s *Store) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the state and notifies subscribers synchronously,
// outside the lock.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:   events.StoreChanged,
			Source: "store",
			Data: map[string]interface{}{
				"action": a.ActionName(),
			},
		})
	}
}

// Subscribe calls fn with the new state after every Dispatch. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

type storeKey struct{}

// WithStore returns a context carrying s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext returns the store placed in ctx by a Provider.
func FromContext(ctx context.Context) (*Store, error) {
	if s, ok := ctx.Value(storeKey{}).(*Store); ok && s != nil {
		return s, nil
	}
	return nil, ErrMissingContext
}
