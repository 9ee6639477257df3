package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CyberwizD/gate-control/internal/models"
)

// SMSDispatcher sends one SMS.
type SMSDispatcher interface {
	Dispatch(ctx context.Context, to, body string) error
}

// Mailbox queues SMS messages for a single dispatch worker.
type Mailbox struct {
	dispatcher SMSDispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	queue   chan models.SMSMessage
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMailbox(dispatcher SMSDispatcher, size int, logger *slog.Logger) *Mailbox {
	if size <= 0 {
		size = 16
	}
	return &Mailbox{
		dispatcher: dispatcher,
		logger:     logger,
		queue:      make(chan models.SMSMessage, size),
	}
}

// Start launches the worker. Calling it while the worker runs is a no-op.
func (m *Mailbox) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.work(ctx, m.done)
	m.logger.Info("sms mailbox started", slog.Int("capacity", cap(m.queue)))
	return nil
}

// Running reports whether the worker is active.
func (m *Mailbox) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Enqueue hands msg to the worker without blocking.
func (m *Mailbox) Enqueue(msg models.SMSMessage) error {
	if msg.To == "" || msg.Body == "" {
		return ErrInvalidArgs
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrMailboxStopped
	}
	select {
	case m.queue <- msg:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Stop halts the worker after the message in flight. Queued messages stay
// queued for the next Start.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()
	<-done
	m.logger.Info("sms mailbox stopped")
}

func (m *Mailbox) work(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.queue:
			if err := m.dispatcher.Dispatch(ctx, msg.To, msg.Body); err != nil {
				m.logger.Error("mailbox dispatch failed", slog.String("to", msg.To), slog.Any("error", err))
			}
		}
	}
}
