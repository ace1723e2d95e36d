package rfplayer

import "errors"

// Domain errors for the rfplayer package.
var (
	// ErrNotReady is returned when the gateway cannot be reached within
	// the connect timeout.
	ErrNotReady = errors.New("rfplayer: gateway not ready")

	// ErrNotConnected is returned when an operation requires an active
	// transport but the session is closed.
	ErrNotConnected = errors.New("rfplayer: not connected")

	// ErrConnectionFailed is returned when opening the serial or TCP
	// transport fails.
	ErrConnectionFailed = errors.New("rfplayer: connection failed")

	// ErrInvalidPacket is returned when a wire line carries an unknown
	// header tag or a ZIA33 body that is not valid JSON.
	ErrInvalidPacket = errors.New("rfplayer: invalid packet")

	// ErrUnsupportedPacket is returned for recognized but unsupported
	// header tags (ZIA00/11/22/44/66).
	ErrUnsupportedPacket = errors.New("rfplayer: unsupported packet format")

	// ErrSendFailed is returned when writing a command to the gateway fails.
	ErrSendFailed = errors.New("rfplayer: command send failed")
)
