package session

import (
	"context"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
	"github.com/haggisnet/haggisnet/internal/core/optical"
	"github.com/haggisnet/haggisnet/internal/core/transport"
)

// Config holds the per-session settings.
type Config struct {
	Socket transport.SocketConfig `yaml:"socket"`

	// FrameSide is the square dimension of rendered visual codes.
	FrameSide int `yaml:"frame_side"`
}

// DefaultConfig returns default session settings.
func DefaultConfig() Config {
	return Config{
		Socket:    transport.DefaultSocketConfig(),
		FrameSide: optical.DefaultFrameSide,
	}
}

// Callbacks are how the session reaches the UI. All callbacks may be nil.
// They are invoked with the session lock held and must not call back into
// the session.
type Callbacks struct {
	// OnView fires after every state change with the freshly derived view.
	OnView func(ViewState)

	// OnWarning fires for every non-fatal user-facing condition.
	OnWarning func(Warning)

	// OnFrame fires with a new visual code whenever a local move produced
	// a snapshot to hand over manually. A later frame supersedes all
	// earlier ones.
	OnFrame func(*transport.Frame)

	// ConfirmDuplicate asks the user whether an inbound image that
	// matches the code just displayed locally really came from the
	// opponent. Nil declines.
	ConfirmDuplicate func() bool
}

// Dialer opens the live channel to the peer identified by token. The
// session dials lazily: on the first committed move, or on the first
// inbound snapshot when no channel exists yet.
type Dialer func(ctx context.Context, token []byte, onReceive transport.ReceiveHandler, onClose transport.CloseHandler) (transport.Channel, error)

// SocketDialer adapts the relay websocket into a Dialer.
func SocketDialer(config transport.SocketConfig, logger log.Log) Dialer {
	return func(ctx context.Context, token []byte, onReceive transport.ReceiveHandler, onClose transport.CloseHandler) (transport.Channel, error) {
		return transport.DialSocket(ctx, config, token, onReceive, onClose, logger)
	}
}

// DirectDialer adapts the peer-to-peer QUIC link into a Dialer.
func DirectDialer(config transport.DirectConfig, logger log.Log) Dialer {
	return func(ctx context.Context, token []byte, onReceive transport.ReceiveHandler, onClose transport.CloseHandler) (transport.Channel, error) {
		return transport.DialDirect(ctx, config, token, onReceive, onClose, logger)
	}
}
