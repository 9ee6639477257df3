package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/gate-control/internal/models"
	"github.com/CyberwizD/gate-control/internal/repository"
	"github.com/CyberwizD/gate-control/pkg/metrics"
)

// Error messages returned in relay response bodies.
const (
	ErrMsgInvalidCommand = "invalid command"
	ErrMsgInsertFailed   = "Failed to insert command"
	ErrMsgTokenNotFound  = "FCM token not found"
	ErrMsgTokenLookup    = "Failed to resolve FCM token"
	ErrMsgAuthFailed     = "Failed to get access token"
	ErrMsgSendFailed     = "FCM notification failed"
)

// Relay turns a command reference into a data-only push to the target device.
// It performs no retries and, unless a StatusUpdater is configured, never
// writes the command's status back.
type Relay struct {
	commands    CommandRepository
	tokens      TokenRepository
	suppressor  TokenSuppressor
	credentials BearerSource
	provider    PushProvider
	status      *StatusUpdater
	metrics     *metrics.Metrics
	logger      *slog.Logger
	suppressTTL time.Duration
}

// RelayOption customises optional collaborators.
type RelayOption func(*Relay)

// WithSuppressor enables skipping and recording dead device tokens.
func WithSuppressor(s TokenSuppressor, ttl time.Duration) RelayOption {
	return func(r *Relay) {
		r.suppressor = s
		r.suppressTTL = ttl
	}
}

// WithStatusUpdater enables command status write-back.
func WithStatusUpdater(s *StatusUpdater) RelayOption {
	return func(r *Relay) { r.status = s }
}

// WithMetrics attaches a collector.
func WithMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

func NewRelay(
	commands CommandRepository,
	tokens TokenRepository,
	credentials BearerSource,
	provider PushProvider,
	logger *slog.Logger,
	opts ...RelayOption,
) *Relay {
	r := &Relay{
		commands:    commands,
		tokens:      tokens,
		credentials: credentials,
		provider:    provider,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relay runs the relay flow for one request. It never returns an error: every
// failure is reported as a structured outcome with its status code.
func (r *Relay) Relay(ctx context.Context, req models.RelayRequest) models.RelayOutcome {
	r.metrics.IncReceived()
	defer r.metrics.Timer()()

	if !req.Command.Valid() {
		return failure(http.StatusBadRequest, models.RelayResponse{
			Error:   ErrMsgInvalidCommand,
			Details: "command must be one of open_gate, send_sms",
		})
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = models.DefaultDeviceID
	}

	commandID := req.CommandID
	if commandID == "" {
		cmd := &models.Command{
			ID:          uuid.NewString(),
			Kind:        req.Command,
			PhoneNumber: req.PhoneNumber,
			Message:     req.Message,
			DeviceID:    deviceID,
			Status:      models.StatusPending,
			CreatedAt:   time.Now().UTC(),
		}
		if err := r.commands.Create(ctx, cmd); err != nil {
			r.logger.Error("failed to insert command", slog.Any("error", err))
			return failure(http.StatusInternalServerError, models.RelayResponse{
				Error:   ErrMsgInsertFailed,
				Details: err.Error(),
			})
		}
		commandID = cmd.ID
		r.logger.Info("command inserted", slog.String("command_id", commandID), slog.String("command", string(req.Command)))
	}

	log := r.logger.With(slog.String("command_id", commandID), slog.String("device_id", deviceID))

	token, err := r.lookupToken(ctx, deviceID)
	if errors.Is(err, repository.ErrTokenNotFound) {
		r.metrics.IncTokenMissing()
		log.Warn("fcm token not found")
		return failure(http.StatusNotFound, models.RelayResponse{
			Error:     ErrMsgTokenNotFound,
			CommandID: commandID,
			DeviceID:  deviceID,
		})
	}
	if err != nil {
		log.Error("token lookup failed", slog.Any("error", err))
		return failure(http.StatusInternalServerError, models.RelayResponse{
			Error:     ErrMsgTokenLookup,
			CommandID: commandID,
			DeviceID:  deviceID,
			Details:   err.Error(),
		})
	}

	bearer, err := r.credentials.Token(ctx)
	if err != nil {
		r.metrics.IncAuthFailed()
		log.Error("failed to get access token", slog.Any("error", err))
		r.markFailed(ctx, commandID, err.Error())
		return failure(http.StatusInternalServerError, models.RelayResponse{
			Error:     ErrMsgAuthFailed,
			CommandID: commandID,
			Details:   err.Error(),
		})
	}

	data := map[string]string{
		models.DataCommandID: commandID,
		models.DataCommand:   string(req.Command),
	}

	result, err := r.provider.Send(ctx, bearer, token, data)
	if err != nil {
		r.metrics.IncSendFailed()
		log.Error("fcm send failed", slog.Any("error", err))
		r.markFailed(ctx, commandID, err.Error())

		var details any = err.Error()
		var sendErr *SendError
		if errors.As(err, &sendErr) {
			details = sendErr.Details
			if sendErr.TokenFatal() {
				r.suppress(ctx, token, log)
			}
		}
		return failure(http.StatusInternalServerError, models.RelayResponse{
			Error:     ErrMsgSendFailed,
			CommandID: commandID,
			Details:   details,
		})
	}

	r.metrics.IncRelayed()
	if r.status != nil {
		r.status.MarkAttempted(ctx, commandID)
	}
	log.Info("fcm notification sent", slog.String("provider", r.provider.Name()))

	return models.RelayOutcome{
		StatusCode: http.StatusOK,
		Body: models.RelayResponse{
			Success:   true,
			CommandID: commandID,
			FCMResult: result,
		},
	}
}

func (r *Relay) lookupToken(ctx context.Context, deviceID string) (string, error) {
	token, err := r.tokens.Lookup(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if r.suppressor != nil {
		suppressed, err := r.suppressor.IsTokenSuppressed(ctx, token)
		if err != nil {
			r.logger.Warn("token suppression check failed", slog.Any("error", err))
			return token, nil
		}
		if suppressed {
			return "", repository.ErrTokenNotFound
		}
	}
	return token, nil
}

func (r *Relay) suppress(ctx context.Context, token string, log *slog.Logger) {
	if r.suppressor == nil {
		return
	}
	if err := r.suppressor.SuppressToken(ctx, token, r.suppressTTL); err != nil {
		log.Warn("failed to suppress token", slog.Any("error", err))
		return
	}
	log.Info("device token suppressed")
}

func (r *Relay) markFailed(ctx context.Context, commandID, detail string) {
	if r.status != nil {
		r.status.MarkFailed(ctx, commandID, detail)
	}
}

func failure(status int, body models.RelayResponse) models.RelayOutcome {
	return models.RelayOutcome{StatusCode: status, Body: body}
}
