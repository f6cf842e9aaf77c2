package gateway

import "errors"

// Sentinel errors surfaced to callers. Bus-driven paths never return
// these upward; they log and drop instead.
var (
	ErrGardenNotFound = errors.New("garden not found")
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceNotBound = errors.New("garden has no device bound")
	ErrForbidden      = errors.New("not the garden owner")
	ErrInvalidMode    = errors.New("invalid irrigation mode")
	ErrDeviceConflict = errors.New("device already bound to another garden")

	// ErrProbeSuperseded resolves an outstanding liveness check that was
	// replaced by a newer one for the same device.
	ErrProbeSuperseded = errors.New("connection check superseded by a new check")
)
