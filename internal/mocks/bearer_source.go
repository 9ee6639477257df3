package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type BearerSource struct {
	mock.Mock
}

func (b *BearerSource) Token(ctx context.Context) (string, error) {
	args := b.Called(ctx)
	return args.String(0), args.Error(1)
}
