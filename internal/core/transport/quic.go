package transport

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
)

var _ Channel = (*Direct)(nil)

const directALPN = "haggis-sync"

// DirectConfig holds the direct QUIC link settings.
type DirectConfig struct {
	// Addr is the UDP address to listen on or dial.
	Addr string `yaml:"addr"`

	// TLS is required on the listening side. Dialers without one get an
	// insecure config that accepts the peer's self-signed certificate;
	// the two-cooperating-peers model assumes no man in the middle.
	TLS *tls.Config `yaml:"-"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxMessageSize   uint64        `yaml:"max_message_size"`
}

// DefaultDirectConfig returns default direct link settings.
func DefaultDirectConfig() DirectConfig {
	return DirectConfig{
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
	}
}

// Direct carries the socket subprotocol peer to peer over a single QUIC
// stream, for two native clients that can reach each other without a
// relay. Messages are uvarint length framed; the first frame is the
// pairing token, all later frames are raw snapshots.
type Direct struct {
	conn   *quic.Conn
	stream *quic.Stream
	reader *bufio.Reader
	config DirectConfig
	logger log.Log

	onReceive ReceiveHandler
	onClose   CloseHandler

	peerToken []byte

	writeMu   sync.Mutex
	closed    int32 // atomic bool
	closeOnce sync.Once
}

// DialDirect connects to a listening peer, identifies with the pairing
// token and starts delivering inbound snapshots.
func DialDirect(ctx context.Context, config DirectConfig, token []byte, onReceive ReceiveHandler, onClose CloseHandler, logger log.Log) (*Direct, error) {
	tlsConfig := config.TLS
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{directALPN},
			MinVersion:         tls.VersionTLS13,
		}
	}
	if config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.HandshakeTimeout)
		defer cancel()
	}

	conn, err := quic.DialAddr(ctx, config.Addr, tlsConfig, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial peer %s", config.Addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to open stream")
	}

	d := newDirect(conn, stream, config, onReceive, onClose, logger)
	if err := d.writeFrame(token); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "failed to identify to peer")
	}
	go d.readLoop(true)
	return d, nil
}

// ListenDirect waits for a single peer to connect and identify, then
// returns the established channel. The first inbound frame (the peer's
// token) is available via PeerToken.
func ListenDirect(ctx context.Context, config DirectConfig, token []byte, onReceive ReceiveHandler, onClose CloseHandler, logger log.Log) (*Direct, error) {
	tlsConfig := config.TLS
	if tlsConfig == nil {
		var err error
		tlsConfig, err = SelfSignedTLS()
		if err != nil {
			return nil, err
		}
	}

	listener, err := quic.ListenAddr(config.Addr, tlsConfig, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", config.Addr)
	}
	defer func() { _ = listener.Close() }()

	conn, err := listener.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept peer")
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to accept stream")
	}

	d := newDirect(conn, stream, config, onReceive, onClose, logger)
	peerToken, err := d.readFrame()
	if err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "peer did not identify")
	}
	d.peerToken = peerToken
	d.logger.Info("Peer identified", log.Int("token_bytes", len(peerToken)))

	if err := d.writeFrame(token); err != nil {
		_ = d.Close()
		return nil, errors.Wrap(err, "failed to identify to peer")
	}
	go d.readLoop(false)
	return d, nil
}

func newDirect(conn *quic.Conn, stream *quic.Stream, config DirectConfig, onReceive ReceiveHandler, onClose CloseHandler, logger log.Log) *Direct {
	return &Direct{
		conn:      conn,
		stream:    stream,
		reader:    bufio.NewReader(stream),
		config:    config,
		logger:    logger.With(log.String("channel", "direct")),
		onReceive: onReceive,
		onClose:   onClose,
	}
}

// PeerToken returns the token the far side identified with, on the
// listening side only.
func (d *Direct) PeerToken() []byte {
	return d.peerToken
}

// Send transmits one snapshot.
func (d *Direct) Send(snapshot []byte) error {
	if d.IsClosed() {
		return ErrChannelClosed
	}
	if err := d.writeFrame(snapshot); err != nil {
		return errors.Wrap(err, "failed to send snapshot")
	}
	return nil
}

func (d *Direct) writeFrame(data []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	frame := binary.AppendUvarint(make([]byte, 0, len(data)+4), uint64(len(data)))
	frame = append(frame, data...)
	_, err := d.stream.Write(frame)
	return err
}

func (d *Direct) readFrame() ([]byte, error) {
	size, err := binary.ReadUvarint(d.reader)
	if err != nil {
		return nil, err
	}
	if limit := d.config.MaxMessageSize; limit > 0 && size > limit {
		return nil, errors.Errorf("frame of %d bytes exceeds limit", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(d.reader, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Direct) readLoop(expectToken bool) {
	first := expectToken
	for {
		data, err := d.readFrame()
		if err != nil {
			d.finish(err)
			return
		}
		if first {
			// The dialer's read loop sees the listener's token first.
			d.peerToken = data
			first = false
			continue
		}
		d.onReceive(data)
	}
}

func (d *Direct) finish(err error) {
	d.closeOnce.Do(func() {
		atomic.StoreInt32(&d.closed, 1)
		_ = d.stream.Close()
		_ = d.conn.CloseWithError(0, "done")
		if err != nil {
			d.logger.Warn("Direct channel lost", log.Error(err))
		} else {
			d.logger.Info("Direct channel closed")
		}
		if d.onClose != nil {
			d.onClose(err)
		}
	})
}

// Close tears the channel down.
func (d *Direct) Close() error {
	d.finish(nil)
	return nil
}

// IsClosed checks if the channel stopped delivering.
func (d *Direct) IsClosed() bool {
	return atomic.LoadInt32(&d.closed) == 1
}

// SelfSignedTLS generates a throwaway self-signed certificate for a
// listening peer.
func SelfSignedTLS() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"haggisnet"}},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: key}},
		NextProtos:   []string{directALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
