package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/gate-control/internal/models"
)

// CommandStatusWriter persists command lifecycle changes.
type CommandStatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status models.CommandStatus, detail string) error
}

// StatusUpdater records relay outcomes on the command row. Failures are logged,
// never returned: status tracking must not change the relay response.
type StatusUpdater struct {
	store  CommandStatusWriter
	logger *slog.Logger
}

func NewStatusUpdater(store CommandStatusWriter, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{
		store:  store,
		logger: logger,
	}
}

func (s *StatusUpdater) MarkAttempted(ctx context.Context, commandID string) {
	if err := s.store.UpdateStatus(ctx, commandID, models.StatusAttempted, ""); err != nil {
		s.logger.Error("failed to update attempted status", slog.String("command_id", commandID), slog.Any("error", err))
	}
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, commandID, detail string) {
	if err := s.store.UpdateStatus(ctx, commandID, models.StatusFailed, detail); err != nil {
		s.logger.Error("failed to update failed status", slog.String("command_id", commandID), slog.Any("error", err))
	}
}
