package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device identity does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidIdentity is returned when a record has no identity string.
	ErrInvalidIdentity = errors.New("device: invalid identity")

	// ErrRedirectLoop is returned when redirect resolution does not terminate.
	ErrRedirectLoop = errors.New("device: redirect loop")
)
