package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CyberwizD/gate-control/internal/models"
)

type singleCall struct {
	to   string
	body string
	sent models.SentCallback
}

type multiCall struct {
	to    string
	parts []string
	sent  []models.SentCallback
}

// fakeSender records sends and divides at 160 characters.
type fakeSender struct {
	mu        sync.Mutex
	id        int
	sendErr   error
	accessErr error
	active    bool
	single    []singleCall
	multi     []multiCall
}

func (f *fakeSender) SubscriptionID() int { return f.id }

func (f *fakeSender) Divide(body string) []string {
	runes := []rune(body)
	var parts []string
	for len(runes) > 160 {
		parts = append(parts, string(runes[:160]))
		runes = runes[160:]
	}
	return append(parts, string(runes))
}

func (f *fakeSender) SendText(ctx context.Context, to, body string, sent models.SentCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.single = append(f.single, singleCall{to: to, body: body, sent: sent})
	return nil
}

func (f *fakeSender) SendMultipartText(ctx context.Context, to string, parts []string, sent []models.SentCallback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.multi = append(f.multi, multiCall{to: to, parts: parts, sent: sent})
	return nil
}

func (f *fakeSender) Registered(ctx context.Context) (bool, error) { return f.active, nil }

func (f *fakeSender) CheckAccess() error { return f.accessErr }

func (f *fakeSender) calls() ([]singleCall, []multiCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]singleCall(nil), f.single...), append([]multiCall(nil), f.multi...)
}

type fakeSelector struct {
	sender    *fakeSender
	accessErr error
}

func (s *fakeSelector) CanSendSMS() error { return s.accessErr }

func (s *fakeSelector) Select(ctx context.Context) Sender { return s.sender }

// captureHandler keeps every record it handles.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sharedCapture{root: h, attrs: attrs}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) count(msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Message == msg {
			n++
		}
	}
	return n
}

func (h *captureHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

// sharedCapture forwards to the root handler with extra attributes.
type sharedCapture struct {
	root  *captureHandler
	attrs []slog.Attr
}

func (s *sharedCapture) Enabled(ctx context.Context, l slog.Level) bool { return true }

func (s *sharedCapture) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(s.attrs...)
	return s.root.Handle(ctx, r)
}

func (s *sharedCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sharedCapture{root: s.root, attrs: append(append([]slog.Attr{}, s.attrs...), attrs...)}
}

func (s *sharedCapture) WithGroup(string) slog.Handler { return s }

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{}
	return slog.New(h), h
}

func recordAttr(r slog.Record, key string) string {
	var out string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			out = a.Value.String()
			return false
		}
		return true
	})
	return out
}
