package mqttrelay

import "errors"

// Sentinel errors for the relay.
var (
	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("mqttrelay: missing dependency")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("mqttrelay: already started")

	// ErrUnknownAction is returned for a command with an unsupported action.
	ErrUnknownAction = errors.New("mqttrelay: unknown action")

	// ErrMissingEnabled is returned for a lost_mode command without "enabled".
	ErrMissingEnabled = errors.New("mqttrelay: lost_mode requires enabled")
)
