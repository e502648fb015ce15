package mqttrelay

import (
	"time"

	"github.com/nerrad567/findmy-core/internal/device"
)

// Actions accepted on findmy/command/{id}.
const (
	ActionPlaySound = "play_sound"
	ActionLostMode  = "lost_mode"
	ActionWipe      = "wipe"
)

// CommandMessage requests a remote action on one device.
// Topic: findmy/command/{id}
type CommandMessage struct {
	// Action is one of play_sound, lost_mode, or wipe.
	Action string `json:"action"`

	// Enabled is the desired lost-mode state. Required for lost_mode.
	Enabled *bool `json:"enabled,omitempty"`

	// RequestID correlates the ack. Generated when absent.
	RequestID string `json:"request_id,omitempty"`
}

// AckStatus represents the outcome of a command.
type AckStatus string

const (
	// AckAccepted indicates the action completed.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the action could not be performed.
	AckFailed AckStatus = "failed"
)

// AckMessage reports a command result.
// Topic: findmy/ack/{id}
type AckMessage struct {
	RequestID string         `json:"request_id"`
	DeviceID  string         `json:"device_id"`
	Action    string         `json:"action"`
	Status    AckStatus      `json:"status"`
	Device    *device.Device `json:"device,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// StateMessage is the retained record for one device.
// Topic: findmy/state/{id}
type StateMessage struct {
	Device    device.Device `json:"device"`
	Timestamp time.Time     `json:"timestamp"`
}

// newAck builds a successful ack.
func newAck(requestID, deviceID, action string, d device.Device, now time.Time) AckMessage {
	return AckMessage{
		RequestID: requestID,
		DeviceID:  deviceID,
		Action:    action,
		Status:    AckAccepted,
		Device:    &d,
		Timestamp: now.UTC(),
	}
}

// newAckError builds a failed ack.
func newAckError(requestID, deviceID, action, code, message string, now time.Time) AckMessage {
	return AckMessage{
		RequestID: requestID,
		DeviceID:  deviceID,
		Action:    action,
		Status:    AckFailed,
		Error:     &AckError{Code: code, Message: message},
		Timestamp: now.UTC(),
	}
}
