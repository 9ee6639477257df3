package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

type PushProvider struct {
	mock.Mock
}

func (p *PushProvider) Name() string {
	return "mock"
}

func (p *PushProvider) Send(ctx context.Context, bearer, token string, data map[string]string) (json.RawMessage, error) {
	args := p.Called(ctx, bearer, token, data)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}
