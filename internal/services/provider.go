package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/CyberwizD/gate-control/internal/models"
)

// PushProvider represents a downstream push provider.
type PushProvider interface {
	Name() string
	Send(ctx context.Context, bearer, token string, data map[string]string) (json.RawMessage, error)
}

// BearerSource yields the credential used to authorize a push.
type BearerSource interface {
	Token(ctx context.Context) (string, error)
}

// CommandRepository persists commands created by the relay.
type CommandRepository interface {
	Create(ctx context.Context, cmd *models.Command) error
}

// TokenRepository resolves a device's current push token.
type TokenRepository interface {
	Lookup(ctx context.Context, deviceID string) (string, error)
}

// TokenSuppressor tracks tokens the provider reported as dead.
type TokenSuppressor interface {
	IsTokenSuppressed(ctx context.Context, token string) (bool, error)
	SuppressToken(ctx context.Context, token string, ttl time.Duration) error
}
