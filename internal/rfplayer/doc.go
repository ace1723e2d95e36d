// Package rfplayer implements the RfPlayer serial wire protocol.
//
// It provides the low-level building blocks for talking to a GCE RfPlayer
// RF transceiver gateway: a frame decoder that turns the raw serial byte
// stream into discrete lines, a packet classifier that maps the 5-character
// header tag onto a typed payload, a device identity resolver that derives
// a stable device key from a decoded packet, and a transport session that
// owns the connection lifecycle (serial or TCP).
//
// The package deliberately contains no reconnect policy and no persistence.
// It guarantees a single disconnect notification per session and leaves
// scheduling of a new session to the caller (see the bridge package).
//
// Thread Safety: all exported methods are safe for concurrent use.
// Event callbacks are invoked from a bounded worker pool.
package rfplayer
