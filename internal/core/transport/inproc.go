package transport

import (
	"sync"
	"sync/atomic"
)

var _ Channel = (*Inproc)(nil)

// Inproc is a loopback channel pair wired directly to a peer in the same
// process. Delivery is synchronous in the sender's goroutine, which keeps
// tests deterministic.
type Inproc struct {
	peer *Inproc

	mu        sync.Mutex
	onReceive ReceiveHandler
	onClose   CloseHandler
	closed    int32 // atomic bool
}

// NewInprocPair returns two connected ends.
func NewInprocPair() (*Inproc, *Inproc) {
	a := &Inproc{}
	b := &Inproc{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind installs the handlers for this end.
func (c *Inproc) Bind(onReceive ReceiveHandler, onClose CloseHandler) {
	c.mu.Lock()
	c.onReceive = onReceive
	c.onClose = onClose
	c.mu.Unlock()
}

// Send delivers one snapshot to the peer end.
func (c *Inproc) Send(snapshot []byte) error {
	if c.IsClosed() || c.peer.IsClosed() {
		return ErrChannelClosed
	}
	c.peer.mu.Lock()
	handler := c.peer.onReceive
	c.peer.mu.Unlock()
	if handler != nil {
		handler(append([]byte(nil), snapshot...))
	}
	return nil
}

// Close stops both ends.
func (c *Inproc) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.mu.Lock()
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose(nil)
	}
	if !c.peer.IsClosed() {
		c.peer.mu.Lock()
		peerClose := c.peer.onClose
		c.peer.mu.Unlock()
		atomic.StoreInt32(&c.peer.closed, 1)
		if peerClose != nil {
			peerClose(ErrPeerGone)
		}
	}
	return nil
}

// IsClosed checks if this end stopped delivering.
func (c *Inproc) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
