package models

import "time"

// CommandKind is the closed set of actions a command can request.
type CommandKind string

const (
	CommandOpenGate CommandKind = "open_gate"
	CommandSendSMS  CommandKind = "send_sms"
)

// Valid reports whether k is one of the known command kinds.
func (k CommandKind) Valid() bool {
	return k == CommandOpenGate || k == CommandSendSMS
}

// CommandStatus is the lifecycle state of a command.
type CommandStatus string

const (
	StatusPending   CommandStatus = "pending"
	StatusAttempted CommandStatus = "attempted"
	StatusFailed    CommandStatus = "failed"
)

// DefaultDeviceID addresses the single gate device of a small installation.
const DefaultDeviceID = "default"

// Command mirrors a row of the gate_commands table.
type Command struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	Kind        CommandKind   `gorm:"column:command;not null" json:"command"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Message     string        `json:"message,omitempty"`
	DeviceID    string        `gorm:"index;not null" json:"device_id"`
	Status      CommandStatus `gorm:"not null" json:"status"`
	Detail      string        `json:"detail,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
