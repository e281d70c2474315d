// Package relay pairs two game clients by their deal-derived token and
// forwards raw snapshots between them. The relay never inspects a
// snapshot beyond the first pairing message; games remain playable
// without it over the optical path.
package relay

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/haggisnet/haggisnet/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// peer is one connected client.
type peer struct {
	id   string
	conn *websocket.Conn

	writeMu      sync.Mutex
	writeTimeout time.Duration
	logger       log.Log
}

// deliver writes one snapshot to this peer. Write failures only log; the
// read loop notices the dead connection and cleans up.
func (p *peer) deliver(snapshot []byte) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if p.writeTimeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	}
	if err := p.conn.WriteMessage(websocket.BinaryMessage, snapshot); err != nil {
		p.logger.Warn("Snapshot delivery failed", log.Error(err))
	}
}

// Server is the snapshot relay.
type Server struct {
	config Config
	logger log.Log

	httpServer *http.Server

	mu    sync.Mutex
	rooms map[string]*room

	running   int32 // atomic bool
	peerCount int64 // atomic
}

// NewServer creates a relay server.
func NewServer(config Config, logger log.Log) *Server {
	s := &Server{
		config: config,
		logger: logger.With(log.String("component", "relay")),
		rooms:  make(map[string]*room),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.httpServer = &http.Server{Addr: config.ListenAddr, Handler: mux}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return errors.New("relay already running")
	}
	s.logger.Info("Relay listening", log.String("addr", s.config.ListenAddr))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "relay listener failed")
		}
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(s.config.RoomIdleTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return s.shutdown()
			case <-ticker.C:
				s.sweepIdleRooms()
			}
		}
	})
	return group.Wait()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Relay shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", log.Error(err))
		return
	}
	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}

	p := &peer{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: s.config.WriteTimeout,
	}
	p.logger = s.logger.With(
		log.String("peer", p.id),
		log.String("remote", conn.RemoteAddr().String()))

	// The first message is the pairing token; everything after is a
	// snapshot for the other side.
	_, token, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return
	}
	key, ok := roomKey(token)
	if !ok {
		p.logger.Warn("Bad pairing token", log.Int("len", len(token)))
		_ = conn.Close()
		return
	}

	rm := s.getOrCreateRoom(key)
	catchup, ok := rm.join(p)
	if !ok {
		p.logger.Warn("Room already has two peers")
		_ = conn.Close()
		return
	}
	atomic.AddInt64(&s.peerCount, 1)
	p.logger.Info("Peer joined", log.String("room", rm.key))

	if catchup != nil {
		p.deliver(catchup)
	}

	s.readLoop(p, rm)
}

func (s *Server) readLoop(p *peer, rm *room) {
	defer func() {
		rm.leave(p.id)
		atomic.AddInt64(&s.peerCount, -1)
		_ = p.conn.Close()
		p.logger.Info("Peer left", log.String("room", rm.key))
	}()

	for {
		messageType, snapshot, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		rm.forward(p.id, snapshot)
	}
}

func (s *Server) getOrCreateRoom(key string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rm, exists := s.rooms[key]; exists {
		return rm
	}
	rm := newRoom(key)
	s.rooms[key] = rm
	return rm
}

// sweepIdleRooms drops rooms nobody has touched for the idle timeout, so
// retained snapshots of abandoned games do not pile up.
func (s *Server) sweepIdleRooms() {
	cutoff := time.Now().Add(-s.config.RoomIdleTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rm := range s.rooms {
		if rm.idleSince(cutoff) {
			delete(s.rooms, key)
			s.logger.Debug("Dropped idle room", log.String("room", key))
		}
	}
}

// PeerCount reports the number of connected peers.
func (s *Server) PeerCount() int64 {
	return atomic.LoadInt64(&s.peerCount)
}
