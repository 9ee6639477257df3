package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CyberwizD/gate-control/internal/models"
)

var ErrNoGateNumber = errors.New("gate phone number is not configured")

// CommandLoader reads a stored command by id.
type CommandLoader interface {
	Get(ctx context.Context, id string) (*models.Command, error)
}

// ReceiverConfig carries the open_gate defaults.
type ReceiverConfig struct {
	GatePhoneNumber string
	GateOpenMessage string
}

// Receiver turns push payloads into queued SMS messages.
type Receiver struct {
	commands CommandLoader
	mailbox  *Mailbox
	cfg      ReceiverConfig
	logger   *slog.Logger
}

func NewReceiver(commands CommandLoader, mailbox *Mailbox, cfg ReceiverConfig, logger *slog.Logger) *Receiver {
	return &Receiver{
		commands: commands,
		mailbox:  mailbox,
		cfg:      cfg,
		logger:   logger,
	}
}

// HandlePush handles one data-only push. Payloads of unknown shape are
// logged and ignored.
func (r *Receiver) HandlePush(ctx context.Context, data map[string]string) error {
	if data[models.DataAction] == models.ActionStartService {
		r.logger.Info("start requested by push")
		return r.mailbox.Start()
	}

	if id := data[models.DataCommandID]; id != "" {
		msg, err := r.resolveCommand(ctx, id)
		if err != nil {
			r.logger.Error("failed to resolve command", slog.String("command_id", id), slog.Any("error", err))
			return err
		}
		r.logger.Info("command received", slog.String("command_id", id), slog.String("to", msg.To))
		return r.mailbox.Enqueue(msg)
	}

	phone, message := data[models.DataPhoneNumber], data[models.DataMessage]
	if phone != "" && message != "" {
		r.logger.Info("legacy sms payload received", slog.String("to", phone))
		return r.mailbox.Enqueue(models.SMSMessage{To: phone, Body: message})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	r.logger.Warn("ignoring push with unknown payload", slog.Any("keys", keys))
	return nil
}

func (r *Receiver) resolveCommand(ctx context.Context, id string) (models.SMSMessage, error) {
	cmd, err := r.commands.Get(ctx, id)
	if err != nil {
		return models.SMSMessage{}, fmt.Errorf("load command %s: %w", id, err)
	}

	switch cmd.Kind {
	case models.CommandSendSMS:
		if cmd.PhoneNumber == "" || cmd.Message == "" {
			return models.SMSMessage{}, fmt.Errorf("command %s: %w", id, ErrInvalidArgs)
		}
		return models.SMSMessage{To: cmd.PhoneNumber, Body: cmd.Message}, nil
	case models.CommandOpenGate:
		to := cmd.PhoneNumber
		if to == "" {
			to = r.cfg.GatePhoneNumber
		}
		if to == "" {
			return models.SMSMessage{}, fmt.Errorf("command %s: %w", id, ErrNoGateNumber)
		}
		body := cmd.Message
		if body == "" {
			body = RenderTemplate(r.cfg.GateOpenMessage, map[string]interface{}{
				"command_id": cmd.ID,
				"device_id":  cmd.DeviceID,
			})
		}
		return models.SMSMessage{To: to, Body: body}, nil
	default:
		return models.SMSMessage{}, fmt.Errorf("command %s has unknown kind %q", id, cmd.Kind)
	}
}
