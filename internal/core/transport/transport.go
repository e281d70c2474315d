// Package transport moves game snapshots between two peers over
// interchangeable channels: a relay-backed websocket, a direct QUIC link,
// an in-process loopback for tests, and the manual optical path.
package transport

import "errors"

// Transport errors
var (
	ErrChannelClosed     = errors.New("channel is closed")
	ErrDecodeFailed      = errors.New("inbound image did not decode to a snapshot")
	ErrDuplicateDeclined = errors.New("duplicate transfer declined")
	ErrPeerGone          = errors.New("peer connection lost")
)

// ReceiveHandler is invoked once per inbound snapshot, in arrival order.
// The slice is owned by the handler.
type ReceiveHandler func(snapshot []byte)

// CloseHandler is invoked exactly once when a channel stops delivering,
// with the cause (nil on local Close).
type CloseHandler func(err error)

// Channel is one live path to the peer. Implementations identify
// themselves to the far side with a one-time token before the first
// snapshot; every message after that is one raw snapshot in either
// direction. Loss of the channel is not an error condition for the game:
// the optical path always remains available.
type Channel interface {
	// Send transmits one snapshot. Returns ErrChannelClosed after the
	// channel stops, wrapped transport errors otherwise.
	Send(snapshot []byte) error

	// Close tears the channel down and releases its resources. Safe to
	// call more than once.
	Close() error
}
