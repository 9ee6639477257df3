package models

import "encoding/json"

// Keys of the data-only push payload.
const (
	DataCommandID   = "commandId"
	DataCommand     = "command"
	DataAction      = "action"
	DataPhoneNumber = "phoneNumber"
	DataMessage     = "message"
)

// ActionStartService asks the agent to make sure its dispatch worker runs.
const ActionStartService = "start_service"

// RelayRequest is the body accepted by the relay, over HTTP or from the queue.
type RelayRequest struct {
	Command     CommandKind `json:"command"`
	CommandID   string      `json:"commandId,omitempty"`
	DeviceID    string      `json:"deviceId,omitempty"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// RelayResponse is the JSON body returned for every relay outcome.
type RelayResponse struct {
	Success   bool            `json:"success,omitempty"`
	Error     string          `json:"error,omitempty"`
	CommandID string          `json:"commandId,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`
	FCMResult json.RawMessage `json:"fcmResult,omitempty"`
	Details   any             `json:"details,omitempty"`
}

// RelayOutcome pairs a response body with the HTTP status it is served with.
type RelayOutcome struct {
	StatusCode int
	Body       RelayResponse
}
