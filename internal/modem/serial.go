package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/pkg/retry"
)

var (
	ErrClosed           = errors.New("modem: closed")
	ErrPermissionDenied = errors.New("modem: permission denied")
	ErrBusy             = errors.New("modem: submit queue full")
)

// Config describes one GSM modem.
type Config struct {
	Port           string
	Baud           int
	Timeout        time.Duration
	SubmitTimeout  time.Duration
	SMSC           string
	SubscriptionID int
	InitRetry      retry.Config
}

func (c *Config) setDefaults() {
	if c.Baud <= 0 {
		c.Baud = 115200
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 60 * time.Second
	}
	if c.InitRetry.MaxAttempts <= 0 {
		c.InitRetry.MaxAttempts = 3
	}
}

type part struct {
	pdu  SubmitPDU
	sent models.SentCallback
}

type job struct {
	to    string
	parts []part
}

// SerialModem drives a GSM modem in PDU mode. Sends are queued to a single
// worker goroutine; the caller learns the carrier outcome through the sent
// callback of each part.
type SerialModem struct {
	cfg    Config
	port   io.ReadWriteCloser
	logger *slog.Logger

	mu sync.Mutex
	at *atConn

	jobs      chan job
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	ref       uint32
}

// Open opens the serial device and performs the AT handshake with backoff.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SerialModem, error) {
	cfg.setDefaults()
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		var perr *serial.PortError
		if errors.As(err, &perr) && perr.Code() == serial.PermissionDenied {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, cfg.Port)
		}
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("configure %s: %w", cfg.Port, err)
	}

	m := newSerialModem(port, cfg, logger)
	if err := m.handshake(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	logger.Info("modem ready", slog.String("port", cfg.Port), slog.Int("subscription_id", cfg.SubscriptionID))
	return m, nil
}

func newSerialModem(port io.ReadWriteCloser, cfg Config, logger *slog.Logger) *SerialModem {
	cfg.setDefaults()
	m := &SerialModem{
		cfg:    cfg,
		port:   port,
		logger: logger.With(slog.String("port", cfg.Port)),
		at:     newATConn(port),
		jobs:   make(chan job, 16),
		done:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.worker()
	return m
}

func (m *SerialModem) handshake(ctx context.Context) error {
	cfg := m.cfg.InitRetry
	cfg.OnRetry = func(attempt int, err error) {
		m.logger.Warn("modem handshake failed, retrying", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	return retry.Do(ctx, cfg, func() error {
		for _, cmd := range []string{"AT", "ATE0", "AT+CMGF=0"} {
			if _, err := m.exec(cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *SerialModem) exec(cmd string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at.command(cmd, m.cfg.Timeout)
}

// SubscriptionID identifies the SIM behind this modem.
func (m *SerialModem) SubscriptionID() int {
	return m.cfg.SubscriptionID
}

// Divide splits body the way this modem will transmit it.
func (m *SerialModem) Divide(body string) []string {
	return Divide(body)
}

// CheckAccess reports ErrPermissionDenied when the device cannot be opened
// for writing.
func (m *SerialModem) CheckAccess() error {
	return checkAccess(m.cfg.Port)
}

// Registered reports whether the SIM is registered on a network (home or
// roaming).
func (m *SerialModem) Registered(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	lines, err := m.exec("AT+CREG?")
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "+CREG:") {
			continue
		}
		fields := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "+CREG:")), ",")
		stat := fields[0]
		if len(fields) > 1 {
			stat = fields[1]
		}
		switch strings.TrimSpace(stat) {
		case "1", "5":
			return true, nil
		}
		return false, nil
	}
	return false, errors.New("modem: no +CREG response")
}

// SendText queues body for to. Bodies longer than one message are split and
// sent as concatenated parts, each reporting to sent.
func (m *SerialModem) SendText(ctx context.Context, to, body string, sent models.SentCallback) error {
	parts := Divide(body)
	if len(parts) > 1 {
		callbacks := make([]models.SentCallback, len(parts))
		for i := range callbacks {
			callbacks[i] = sent
		}
		return m.SendMultipartText(ctx, to, parts, callbacks)
	}
	pdu, err := EncodeSubmit(to, body, m.cfg.SMSC, nil)
	if err != nil {
		return err
	}
	return m.enqueue(ctx, job{to: to, parts: []part{{pdu: pdu, sent: sent}}})
}

// SendMultipartText queues parts as one concatenated message. sent may be
// shorter than parts or hold nil entries.
func (m *SerialModem) SendMultipartText(ctx context.Context, to string, parts []string, sent []models.SentCallback) error {
	if len(parts) == 0 {
		return errors.New("modem: no parts to send")
	}
	if len(parts) > 255 {
		return fmt.Errorf("modem: %d parts exceed the concatenation limit", len(parts))
	}
	ref := byte(atomic.AddUint32(&m.ref, 1))
	j := job{to: to, parts: make([]part, len(parts))}
	for i, text := range parts {
		var concat *Concat
		if len(parts) > 1 {
			concat = &Concat{Ref: ref, Total: byte(len(parts)), Seq: byte(i + 1)}
		}
		pdu, err := EncodeSubmit(to, text, m.cfg.SMSC, concat)
		if err != nil {
			return fmt.Errorf("part %d: %w", i+1, err)
		}
		j.parts[i].pdu = pdu
		if i < len(sent) {
			j.parts[i].sent = sent[i]
		}
	}
	return m.enqueue(ctx, j)
}

func (m *SerialModem) enqueue(ctx context.Context, j job) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.jobs <- j:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBusy
	}
}

func (m *SerialModem) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			for {
				select {
				case j := <-m.jobs:
					m.report(j.parts, models.ResultGenericFailure)
				default:
					return
				}
			}
		case j := <-m.jobs:
			m.run(j)
		}
	}
}

func (m *SerialModem) run(j job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off, err := m.radioOff(); err != nil {
		m.logger.Warn("radio state query failed", slog.Any("error", err))
	} else if off {
		m.report(j.parts, models.ResultRadioOff)
		return
	}

	for i, p := range j.parts {
		mr, err := m.at.submit(p.pdu, m.cfg.SubmitTimeout)
		code := resultFor(err)
		if err != nil {
			m.logger.Warn("sms submit failed",
				slog.Int("part", i+1),
				slog.Int("parts", len(j.parts)),
				slog.Any("error", err))
		} else {
			m.logger.Debug("sms submitted", slog.Int("part", i+1), slog.Int("reference", mr))
		}
		if p.sent != nil {
			p.sent(code)
		}
	}
}

// radioOff must be called with mu held.
func (m *SerialModem) radioOff() (bool, error) {
	lines, err := m.at.command("AT+CFUN?", m.cfg.Timeout)
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "+CFUN:") {
			fields := strings.Split(strings.TrimSpace(strings.TrimPrefix(line, "+CFUN:")), ",")
			n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
			// 0 is minimum functionality, 4 is flight mode.
			return err == nil && (n == 0 || n == 4), nil
		}
	}
	return false, nil
}

func (m *SerialModem) report(parts []part, code models.ResultCode) {
	for _, p := range parts {
		if p.sent != nil {
			p.sent(code)
		}
	}
}

// resultFor maps a submit error to the carrier result code.
func resultFor(err error) models.ResultCode {
	if err == nil {
		return models.ResultOK
	}
	var cms *CMSError
	if errors.As(err, &cms) && !cms.Equipment {
		switch cms.Code {
		case 331, 332:
			return models.ResultNoService
		case 304, 305:
			return models.ResultNullPDU
		}
	}
	return models.ResultGenericFailure
}

// Close stops the worker, failing queued sends, and releases the port.
func (m *SerialModem) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		err = m.port.Close()
	})
	return err
}
