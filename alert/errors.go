package alert

import "errors"

var (
	// ErrNoChannels indicates an alert had no channel to be delivered to.
	ErrNoChannels = errors.New("alert: no channels configured")

	// ErrDeliveryFailed indicates every channel failed to deliver an alert.
	ErrDeliveryFailed = errors.New("alert: delivery failed on all channels")

	// ErrInvalidLevel indicates an unknown alert level.
	ErrInvalidLevel = errors.New("alert: invalid level")
)
