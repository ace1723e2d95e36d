package profiles

import "errors"

// Domain errors for the profiles package.
var (
	// ErrLoadFailed is returned when profile definitions cannot be
	// parsed or validated. Loads are all-or-nothing.
	ErrLoadFailed = errors.New("profiles: load failed")

	// ErrProfileNotFound is returned when a profile name is not registered.
	ErrProfileNotFound = errors.New("profiles: profile not found")

	// ErrNoValue is returned when a value path resolves to no node in
	// the packet. It means "this capability has no value in this frame",
	// not a configuration error.
	ErrNoValue = errors.New("profiles: no value")

	// ErrConversion is returned when a mask, offset or factor step is
	// configured but the extracted value is not numeric. The profile
	// author must guarantee numeric paths for numeric transforms.
	ErrConversion = errors.New("profiles: value conversion failed")
)
