package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/smilemakc/wfkernel/internal/infrastructure/logger"
)

// Manager fans out lifecycle events to registered observers, each
// notified on its own goroutine so a slow or misbehaving sink never
// blocks case execution.
type Manager struct {
	observers  []Observer
	logger     *logger.Logger
	mu         sync.RWMutex
	bufferSize int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report observer failures.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBufferSize records a notification buffer size on the Manager. Notify
// does not use it: each notification runs on its own goroutine.
func WithBufferSize(size int) Option {
	return func(m *Manager) { m.bufferSize = size }
}

// NewManager builds a Manager with no observers registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		observers:  make([]Observer, 0),
		bufferSize: 100,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an observer, rejecting duplicate names.
func (m *Manager) Register(o Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.observers {
		if existing.Name() == o.Name() {
			return fmt.Errorf("observer %q already registered", o.Name())
		}
	}
	m.observers = append(m.observers, o)
	return nil
}

// Unregister removes an observer by name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, o := range m.observers {
		if o.Name() == name {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("observer %q not found", name)
}

// Notify delivers event to every registered observer asynchronously.
// It never blocks the caller and never propagates observer errors.
func (m *Manager) Notify(ctx context.Context, event Event) {
	m.mu.RLock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, o := range observers {
		go m.notifyOne(ctx, o, event)
	}
}

func (m *Manager) notifyOne(ctx context.Context, o Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "observer panic recovered",
					"observer", o.Name(),
					"event_type", string(event.Type),
					"panic", r,
				)
			}
		}
	}()

	if filter := o.Filter(); filter != nil && !filter.ShouldNotify(event) {
		return
	}

	if err := o.OnEvent(ctx, event); err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "observer notification failed",
				"observer", o.Name(),
				"event_type", string(event.Type),
				"error", err,
			)
		}
	}
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}
