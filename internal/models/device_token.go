package models

import "time"

// DeviceToken maps a device to its current FCM registration token. A device
// that registers again overwrites the previous token.
type DeviceToken struct {
	DeviceID  string    `gorm:"primaryKey" json:"device_id"`
	FCMToken  string    `gorm:"column:fcm_token;not null" json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
