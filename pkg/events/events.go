package events

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	StoreChanged      EventType = "store.changed"
	TaskStarted       EventType = "qa.task.started"
	TaskFinished      EventType = "qa.task.finished"
	CoverageEvaluated EventType = "qa.coverage.evaluated"
)

type Event struct {
	ID        string
	Type      EventType
	Source    string
	Timestamp time.Time
	Data      map[string]interface{}
}

type Handler func(event Event)

// WorkerPoolConfig holds configuration for the event bus worker pool
type WorkerPoolConfig struct {
	WorkerCount int // Number of worker goroutines (default: CPU cores * 2.5)
	BufferSize  int // Channel buffer size (default: 1000)
	Logger      *zap.Logger
}

// DefaultWorkerPoolConfig returns the default configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: int(float64(runtime.NumCPU()) * 2.5),
		BufferSize:  1000,
	}
}

type eventTask struct {
	event   Event
	handler Handler
}

type subscription struct {
	id      uint64
	handler Handler
}

type EventBus struct {
	handlers   map[EventType][]subscription
	nextID     uint64
	mu         sync.RWMutex
	workerPool chan eventTask
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	config     WorkerPoolConfig
	logger     *zap.Logger
	closeOnce  sync.Once
}

func NewEventBus() *EventBus {
	return NewEventBusWithConfig(DefaultWorkerPoolConfig())
}

func NewEventBusWithConfig(config WorkerPoolConfig) *EventBus {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.BufferSize < 0 {
		config.BufferSize = 0
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		handlers:   make(map[EventType][]subscription),
		workerPool: make(chan eventTask, config.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
		config:     config,
		logger:     logger.Named("events"),
	}

	// Start worker goroutines
	for i := 0; i < config.WorkerCount; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}

	return eb
}

// worker processes events from the worker pool
func (eb *EventBus) worker() {
	defer eb.wg.Done()

	for {
		select {
		case task := <-eb.workerPool:
			eb.dispatch(task.handler, task.event)
		case <-eb.ctx.Done():
			return
		}
	}
}

func (eb *EventBus) dispatch(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("handler panic",
				zap.String("event", string(e.Type)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	h(e)
}

// Subscribe registers handler for eventType and returns a function that
// removes it again.
func (eb *EventBus) Subscribe(eventType EventType, handler Handler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() { eb.unsubscribe(eventType, id) }
}

func (eb *EventBus) unsubscribe(eventType EventType, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// Copy so in-flight Publish calls keep iterating their own slice
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			eb.handlers[eventType] = next
			return
		}
	}
}

func (eb *EventBus) Publish(event Event) {
	if eb.ctx.Err() != nil {
		return
	}

	event.Timestamp = time.Now()
	event.ID = uuid.NewString()

	eb.mu.RLock()
	subs := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, sub := range subs {
		task := eventTask{
			event:   event,
			handler: sub.handler,
		}

		// Non-blocking send to worker pool
		select {
		case eb.workerPool <- task:
		default:
			// Worker pool full - run on a fresh goroutine instead of blocking the publisher
			go eb.dispatch(sub.handler, event)
		}
	}
}

// Shutdown gracefully shuts down the EventBus worker pool. Events queued but
// not yet picked up by a worker are dropped.
func (eb *EventBus) Shutdown() {
	eb.closeOnce.Do(func() {
		eb.cancel()
		eb.wg.Wait()
	})
}
