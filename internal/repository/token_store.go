package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/gate-control/internal/models"
)

// ErrTokenNotFound is returned when a device has no usable push token.
var ErrTokenNotFound = errors.New("fcm token not found")

// TokenStore maps device ids to their current FCM token.
type TokenStore struct {
	db        *gorm.DB
	tableName string
}

func NewTokenStore(db *gorm.DB, tableName string) *TokenStore {
	if tableName == "" {
		tableName = "device_tokens"
	}
	return &TokenStore{
		db:        db,
		tableName: tableName,
	}
}

// AutoMigrate creates or updates the device token table.
func (s *TokenStore) AutoMigrate() error {
	return s.db.Table(s.tableName).AutoMigrate(&models.DeviceToken{})
}

// Lookup returns the current token of deviceID.
func (s *TokenStore) Lookup(ctx context.Context, deviceID string) (string, error) {
	var tok models.DeviceToken
	err := s.db.WithContext(ctx).Table(s.tableName).
		Where("device_id = ?", deviceID).
		Take(&tok).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup token for %s: %w", deviceID, err)
	}
	if tok.FCMToken == "" {
		return "", ErrTokenNotFound
	}
	return tok.FCMToken, nil
}

// Upsert stores token as the only live token of deviceID.
func (s *TokenStore) Upsert(ctx context.Context, deviceID, token string) error {
	dt := models.DeviceToken{
		DeviceID:  deviceID,
		FCMToken:  token,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fcm_token", "updated_at"}),
		}).Create(&dt).Error
}
