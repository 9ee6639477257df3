package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/CyberwizD/gate-control/internal/config"
	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/internal/modem"
	"github.com/CyberwizD/gate-control/pkg/retry"
)

// Sender is the SMS transmission primitive of one SIM.
type Sender interface {
	SubscriptionID() int
	Divide(body string) []string
	SendText(ctx context.Context, to, body string, sent models.SentCallback) error
	SendMultipartText(ctx context.Context, to string, parts []string, sent []models.SentCallback) error
}

// Subscription is a Sender whose SIM can report its network state.
type Subscription interface {
	Sender
	Registered(ctx context.Context) (bool, error)
	CheckAccess() error
}

// ModemPool holds the modems of the installed SIMs and picks the one used
// for each send.
type ModemPool struct {
	subs      map[int]Subscription
	defaultID int
	generic   Subscription
	closers   []func() error
	logger    *slog.Logger
}

// NewModemPool builds a pool. generic is the fallback sender; when nil the
// lowest subscription id takes that role.
func NewModemPool(subs []Subscription, generic Subscription, defaultID int, logger *slog.Logger) *ModemPool {
	p := &ModemPool{
		subs:      make(map[int]Subscription, len(subs)),
		defaultID: defaultID,
		generic:   generic,
		logger:    logger,
	}
	for _, s := range subs {
		p.subs[s.SubscriptionID()] = s
	}
	if p.generic == nil {
		if ids := p.ids(); len(ids) > 0 {
			p.generic = p.subs[ids[0]]
		}
	}
	return p
}

// OpenModemPool opens every configured modem. A modem that fails its
// handshake is logged and left out; the pool fails only when no sender is
// left.
func OpenModemPool(ctx context.Context, cfg *config.AgentConfig, logger *slog.Logger) (*ModemPool, error) {
	base := modem.Config{
		Baud:          cfg.ModemBaud,
		Timeout:       cfg.ModemTimeout,
		SubmitTimeout: cfg.SubmitTimeout,
		SMSC:          cfg.SMSC,
		InitRetry:     retry.Config{MaxAttempts: cfg.ModemInitAttempts},
	}

	var (
		subs    []Subscription
		closers []func() error
	)
	for _, id := range cfg.SubscriptionIDs() {
		mc := base
		mc.Port = cfg.ModemPorts[id]
		mc.SubscriptionID = id
		m, err := modem.Open(ctx, mc, logger)
		if err != nil {
			logger.Error("failed to open modem", slog.Int("subscription_id", id), slog.String("port", mc.Port), slog.Any("error", err))
			continue
		}
		subs = append(subs, m)
		closers = append(closers, m.Close)
	}

	var generic Subscription
	if cfg.DefaultModem != "" {
		mc := base
		mc.Port = cfg.DefaultModem
		m, err := modem.Open(ctx, mc, logger)
		if err != nil {
			logger.Error("failed to open default modem", slog.String("port", mc.Port), slog.Any("error", err))
		} else {
			generic = m
			closers = append(closers, m.Close)
		}
	}

	if len(subs) == 0 && generic == nil {
		return nil, errors.New("no modem could be opened")
	}

	p := NewModemPool(subs, generic, cfg.DefaultSMSSubscription, logger)
	p.closers = closers
	return p, nil
}

func (p *ModemPool) ids() []int {
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DefaultSMSSubscription returns the configured default id, or
// config.NoSubscription.
func (p *ModemPool) DefaultSMSSubscription() int {
	return p.defaultID
}

// ForSubscription returns the sender bound to id.
func (p *ModemPool) ForSubscription(id int) (Subscription, bool) {
	s, ok := p.subs[id]
	return s, ok
}

// ActiveSubscriptions lists registered subscriptions in ascending id order.
// It fails with modem.ErrPermissionDenied when a device cannot be accessed.
func (p *ModemPool) ActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	var active []Subscription
	for _, id := range p.ids() {
		s := p.subs[id]
		if err := s.CheckAccess(); err != nil {
			if errors.Is(err, modem.ErrPermissionDenied) {
				return nil, err
			}
			p.logger.Warn("subscription device unavailable", slog.Int("subscription_id", id), slog.Any("error", err))
			continue
		}
		ok, err := s.Registered(ctx)
		if err != nil {
			p.logger.Warn("subscription state unavailable", slog.Int("subscription_id", id), slog.Any("error", err))
			continue
		}
		if ok {
			active = append(active, s)
		}
	}
	return active, nil
}

// Default returns the generic fallback sender.
func (p *ModemPool) Default() Sender {
	return p.generic
}

// CanSendSMS reports whether the process may use the fallback sender.
func (p *ModemPool) CanSendSMS() error {
	if p.generic == nil {
		return fmt.Errorf("%w: no sender configured", modem.ErrPermissionDenied)
	}
	return p.generic.CheckAccess()
}

// Select picks the sender for one dispatch: the configured default
// subscription, then the first active subscription, then the generic sender.
func (p *ModemPool) Select(ctx context.Context) Sender {
	if p.defaultID != config.NoSubscription {
		if s, ok := p.subs[p.defaultID]; !ok {
			p.logger.Warn("configured default subscription not available", slog.Int("subscription_id", p.defaultID))
		} else if err := s.CheckAccess(); err == nil {
			p.logger.Info("using configured default subscription", slog.Int("subscription_id", p.defaultID))
			return s
		} else if errors.Is(err, modem.ErrPermissionDenied) {
			p.logger.Warn("permission denied for default subscription, using default sender", slog.Int("subscription_id", p.defaultID))
			return p.generic
		} else {
			p.logger.Warn("default subscription unavailable",
				slog.Int("subscription_id", p.defaultID),
				slog.Any("error", err))
		}
	}

	active, err := p.ActiveSubscriptions(ctx)
	if err != nil {
		p.logger.Warn("cannot list active subscriptions, using default sender", slog.Any("error", err))
		return p.generic
	}
	if len(active) > 0 {
		p.logger.Info("using first active subscription", slog.Int("subscription_id", active[0].SubscriptionID()))
		return active[0]
	}

	p.logger.Info("no active subscription, using default sender")
	return p.generic
}

// Close releases every modem the pool opened.
func (p *ModemPool) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
