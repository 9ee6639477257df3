package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/gate-control/internal/models"
)

// Relayer runs the relay flow for one request.
type Relayer interface {
	Relay(ctx context.Context, req models.RelayRequest) models.RelayOutcome
}

// CommandConsumer feeds queued relay requests through the relay flow. Failed
// commands are dead-lettered, never requeued: resubmission belongs to
// whoever enqueued them.
type CommandConsumer struct {
	base   *BaseConsumer
	relay  Relayer
	logger *slog.Logger
}

func NewCommandConsumer(base *BaseConsumer, relay Relayer, logger *slog.Logger) *CommandConsumer {
	return &CommandConsumer{
		base:   base,
		relay:  relay,
		logger: logger,
	}
}

func (c *CommandConsumer) Start(ctx context.Context) error {
	return c.base.Start(ctx, c.handleDelivery)
}

func (c *CommandConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var req models.RelayRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		c.logger.Error("failed to unmarshal relay request", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	out := c.relay.Relay(ctx, req)
	if delivered(out) {
		return msg.Ack(false)
	}

	c.logger.Error("relay failed, message dead-lettered",
		slog.String("command_id", out.Body.CommandID),
		slog.Int("status", out.StatusCode),
		slog.String("error", out.Body.Error))
	_ = msg.Nack(false, false)
	return fmt.Errorf("relay returned %d: %s", out.StatusCode, out.Body.Error)
}

// delivered reports whether an outcome completes the message.
func delivered(out models.RelayOutcome) bool {
	return out.StatusCode >= http.StatusOK && out.StatusCode < http.StatusMultipleChoices
}
