package agent

import (
	"log/slog"
	"sync"

	"github.com/CyberwizD/gate-control/internal/models"
)

// ResultChannel names the delivery-result channel of a destination number.
// Concurrent sends to the same number share a channel.
func ResultChannel(phone string) string {
	return "SMS_SENT_" + phone
}

type listener struct {
	once sync.Once
	fn   func(models.ResultCode)
}

// Registry holds one-shot listeners for carrier results. A listener fires on
// the first result delivered to its channel and then removes itself.
type Registry struct {
	mu        sync.Mutex
	listeners map[string]*listener
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		listeners: make(map[string]*listener),
		logger:    logger,
	}
}

// Register installs fn on channel, replacing any earlier listener.
func (r *Registry) Register(channel string, fn func(models.ResultCode)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[channel] = &listener{fn: fn}
}

// Deliver hands code to the listener on channel. It reports false when no
// listener was waiting.
func (r *Registry) Deliver(channel string, code models.ResultCode) bool {
	r.mu.Lock()
	l, ok := r.listeners[channel]
	r.mu.Unlock()
	if !ok {
		return false
	}

	fired := false
	l.once.Do(func() {
		fired = true
		l.fn(code)
		r.remove(channel, l)
	})
	return fired
}

// Unregister removes the listener on channel.
func (r *Registry) Unregister(channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[channel]; !ok {
		return ErrNotRegistered
	}
	delete(r.listeners, channel)
	return nil
}

// Pending reports whether a listener waits on channel.
func (r *Registry) Pending(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listeners[channel]
	return ok
}

func (r *Registry) remove(channel string, l *listener) {
	r.mu.Lock()
	current, ok := r.listeners[channel]
	if ok && current == l {
		delete(r.listeners, channel)
	}
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("result listener already unregistered", slog.String("channel", channel), slog.Any("error", ErrNotRegistered))
	}
}

// unregisterQuiet removes the listener and swallows ErrNotRegistered.
func (r *Registry) unregisterQuiet(channel string) {
	if err := r.Unregister(channel); err != nil {
		r.logger.Debug("result listener already unregistered", slog.String("channel", channel), slog.Any("error", err))
	}
}
