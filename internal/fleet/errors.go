package fleet

import "errors"

// Sentinel errors for the fleet package.
var (
	// ErrBrokerClosed is returned by operations on a broker after Close.
	ErrBrokerClosed = errors.New("fleet: broker closed")

	// ErrNilListener is returned when Subscribe is called without a listener.
	ErrNilListener = errors.New("fleet: listener cannot be nil")
)
