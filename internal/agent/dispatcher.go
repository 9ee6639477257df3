package agent

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

// singleMessageLimit is the character count above which a body goes out as a
// multipart send.
const singleMessageLimit = 160

// SenderSelector chooses the SIM for a dispatch.
type SenderSelector interface {
	CanSendSMS() error
	Select(ctx context.Context) Sender
}

// Dispatcher hands SMS messages to the modem. It does not retry: a nil error
// means the modem accepted the send, and the carrier outcome only reaches the
// logs through the result registry.
type Dispatcher struct {
	senders SenderSelector
	results *Registry
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewDispatcher(senders SenderSelector, results *Registry, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		results: results,
		metrics: m,
		logger:  logger,
	}
}

// Dispatch sends body to the phone number to.
func (d *Dispatcher) Dispatch(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" || body == "" {
		return ErrInvalidArgs
	}
	defer d.metrics.Timer()()

	if err := d.senders.CanSendSMS(); err != nil {
		d.metrics.IncDispatchFailed()
		d.logger.Error("sms permission denied", slog.Any("error", err))
		return &DispatchError{Kind: KindPermissionDenied, Err: err}
	}

	sender := d.senders.Select(ctx)
	channel := ResultChannel(to)
	log := d.logger.With(slog.String("to", to), slog.Int("subscription_id", sender.SubscriptionID()))

	d.results.Register(channel, func(code models.ResultCode) {
		d.metrics.IncCarrierResult(code.String())
		if code == models.ResultOK {
			log.Info("sms carrier result", slog.String("result", code.String()))
			return
		}
		log.Warn("sms carrier result", slog.String("result", code.String()))
	})
	deliver := func(code models.ResultCode) {
		d.results.Deliver(channel, code)
	}

	msg := newSMSMessage(sender, to, body)

	var err error
	if len(msg.Parts) > 0 {
		callbacks := make([]models.SentCallback, len(msg.Parts))
		for i := range callbacks {
			callbacks[i] = deliver
		}
		log.Debug("sending multipart sms", slog.Int("parts", len(msg.Parts)))
		err = sender.SendMultipartText(ctx, msg.To, msg.Parts, callbacks)
	} else {
		err = sender.SendText(ctx, msg.To, msg.Body, deliver)
	}

	if err != nil {
		d.results.unregisterQuiet(channel)
		d.metrics.IncDispatchFailed()
		log.Error("sms send failed", slog.Any("error", err))
		return &DispatchError{Kind: KindTransmissionFailure, Err: err}
	}

	d.metrics.IncDispatched()
	log.Debug("sms handed to modem")
	return nil
}

// newSMSMessage derives the transmission parts of body. Parts stays nil when
// the body fits in a single message.
func newSMSMessage(sender Sender, to, body string) models.SMSMessage {
	msg := models.SMSMessage{To: to, Body: body}
	if utf8.RuneCountInString(body) > singleMessageLimit {
		msg.Parts = sender.Divide(body)
	}
	return msg
}
