package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type TokenRepository struct {
	mock.Mock
}

func (r *TokenRepository) Lookup(ctx context.Context, deviceID string) (string, error) {
	args := r.Called(ctx, deviceID)
	return args.String(0), args.Error(1)
}

type TokenSuppressor struct {
	mock.Mock
}

func (s *TokenSuppressor) IsTokenSuppressed(ctx context.Context, token string) (bool, error) {
	args := s.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (s *TokenSuppressor) SuppressToken(ctx context.Context, token string, ttl time.Duration) error {
	args := s.Called(ctx, token, ttl)
	return args.Error(0)
}
