package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
)

var _ Channel = (*Socket)(nil)

// SocketConfig holds the websocket channel settings.
type SocketConfig struct {
	// URL of the relay endpoint, e.g. ws://host:port/ws.
	URL string `yaml:"url"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
}

// DefaultSocketConfig returns default socket channel settings.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// Socket is the persistent bidirectional path through the relay. The first
// outbound message is the pairing token; everything after is raw snapshot
// bytes. Failures are not retried: a lost socket degrades silently to the
// optical path.
type Socket struct {
	conn   *websocket.Conn
	config SocketConfig
	logger log.Log

	onReceive ReceiveHandler
	onClose   CloseHandler

	writeMu   sync.Mutex
	closed    int32 // atomic bool
	closeOnce sync.Once

	bytesSent     uint64
	bytesReceived uint64
}

// DialSocket connects to the relay, identifies with the pairing token and
// starts delivering inbound snapshots to onReceive in arrival order.
func DialSocket(ctx context.Context, config SocketConfig, token []byte, onReceive ReceiveHandler, onClose CloseHandler, logger log.Log) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial relay %s", config.URL)
	}

	s := &Socket{
		conn:      conn,
		config:    config,
		logger:    logger.With(log.String("channel", "socket")),
		onReceive: onReceive,
		onClose:   onClose,
	}
	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}

	if err := s.write(token); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to identify to relay")
	}
	s.logger.Info("Socket channel open",
		log.String("url", config.URL),
		log.Int("token_bytes", len(token)))

	go s.readLoop()
	return s, nil
}

// Send transmits one snapshot.
func (s *Socket) Send(snapshot []byte) error {
	if s.IsClosed() {
		return ErrChannelClosed
	}
	if err := s.write(snapshot); err != nil {
		return errors.Wrap(err, "failed to send snapshot")
	}
	atomic.AddUint64(&s.bytesSent, uint64(len(snapshot)))
	return nil
}

func (s *Socket) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.config.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Socket) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		if messageType != websocket.BinaryMessage {
			s.logger.Debug("Ignoring non-binary message", log.Int("type", messageType))
			continue
		}
		atomic.AddUint64(&s.bytesReceived, uint64(len(data)))
		s.onReceive(data)
	}
}

func (s *Socket) finish(err error) {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.closed, 1)
		_ = s.conn.Close()
		if err != nil {
			s.logger.Warn("Socket channel lost", log.Error(err))
		} else {
			s.logger.Info("Socket channel closed",
				log.Uint64("bytes_sent", atomic.LoadUint64(&s.bytesSent)),
				log.Uint64("bytes_received", atomic.LoadUint64(&s.bytesReceived)))
		}
		if s.onClose != nil {
			s.onClose(err)
		}
	})
}

// Close tears the channel down.
func (s *Socket) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.finish(nil)
	return nil
}

// IsClosed checks if the channel stopped delivering.
func (s *Socket) IsClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}
