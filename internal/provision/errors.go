package provision

import "errors"

var (
	// ErrBusy is returned when a start or single-shot request arrives while
	// a loop or provisioning session is already active.
	ErrBusy = errors.New("provision: already running")

	// ErrNoDevice indicates a single-shot request with an empty candidate.
	ErrNoDevice = errors.New("provision: no candidate device")
)
