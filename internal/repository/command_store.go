package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/CyberwizD/gate-control/internal/models"
)

// ErrCommandNotFound is returned when no command has the requested id.
var ErrCommandNotFound = errors.New("command not found")

// CommandStore reads and writes the gate_commands table.
type CommandStore struct {
	db        *gorm.DB
	tableName string
}

func NewCommandStore(db *gorm.DB, tableName string) *CommandStore {
	if tableName == "" {
		tableName = "gate_commands"
	}
	return &CommandStore{
		db:        db,
		tableName: tableName,
	}
}

// AutoMigrate creates or updates the commands table.
func (s *CommandStore) AutoMigrate() error {
	return s.db.Table(s.tableName).AutoMigrate(&models.Command{})
}

// Create inserts a new command.
func (s *CommandStore) Create(ctx context.Context, cmd *models.Command) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Table(s.tableName).Create(cmd).Error; err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// Get loads one command by id.
func (s *CommandStore) Get(ctx context.Context, id string) (*models.Command, error) {
	var cmd models.Command
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("id = ?", id).
		Take(&cmd).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load command %s: %w", id, err)
	}
	return &cmd, nil
}

// UpdateStatus moves a command to status, recording detail for failures.
func (s *CommandStore) UpdateStatus(ctx context.Context, id string, status models.CommandStatus, detail string) error {
	res := s.db.WithContext(ctx).Table(s.tableName).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"detail":     detail,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update command %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCommandNotFound
	}
	return nil
}
