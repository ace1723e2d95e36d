package mqtt

import "errors"

var (
	// ErrConnectionFailed wraps a failed initial broker connection.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned for publish or subscribe attempts while
	// the broker link is down. Paho's auto-reconnect brings it back;
	// callers decide whether the message was worth retrying.
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects an empty topic.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
