package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/CyberwizD/gate-control/internal/models"
)

type CommandRepository struct {
	mock.Mock
}

func (r *CommandRepository) Create(ctx context.Context, cmd *models.Command) error {
	args := r.Called(ctx, cmd)
	return args.Error(0)
}

func (r *CommandRepository) Get(ctx context.Context, id string) (*models.Command, error) {
	args := r.Called(ctx, id)
	cmd, _ := args.Get(0).(*models.Command)
	return cmd, args.Error(1)
}

func (r *CommandRepository) UpdateStatus(ctx context.Context, id string, status models.CommandStatus, detail string) error {
	args := r.Called(ctx, id, status, detail)
	return args.Error(0)
}
