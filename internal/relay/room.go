package relay

import (
	"bytes"
	"sync"
	"time"
)

// tokenLen is the size of a pairing token: two 4-byte hand digests.
const tokenLen = 8

// roomKey normalizes a pairing token so that both peers of one game land
// in the same room. The two halves of a token arrive in opposite order
// from the two sides, so the key is the halves in sorted order.
func roomKey(token []byte) (string, bool) {
	if len(token) != tokenLen {
		return "", false
	}
	a, b := token[:tokenLen/2], token[tokenLen/2:]
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return string(a) + string(b), true
}

// room pairs at most two peers of one game and forwards snapshots between
// them. It retains the most recent snapshot so a peer joining late, after
// an optical hand-off, catches up immediately.
type room struct {
	key string

	mu           sync.Mutex
	peers        map[string]*peer // by connection id
	lastSnapshot []byte
	lastActive   time.Time
}

func newRoom(key string) *room {
	return &room{
		key:        key,
		peers:      make(map[string]*peer),
		lastActive: time.Now(),
	}
}

// join admits a peer and returns the snapshot it missed, if any. A third
// connection is refused.
func (r *room) join(p *peer) (catchup []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.peers) >= 2 {
		return nil, false
	}
	r.peers[p.id] = p
	r.lastActive = time.Now()
	return r.lastSnapshot, true
}

func (r *room) leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
	r.lastActive = time.Now()
}

// forward relays one snapshot from the sender to the other peer, keeping
// it for whoever connects next.
func (r *room) forward(senderID string, snapshot []byte) {
	r.mu.Lock()
	r.lastSnapshot = append([]byte(nil), snapshot...)
	r.lastActive = time.Now()
	var others []*peer
	for id, p := range r.peers {
		if id != senderID {
			others = append(others, p)
		}
	}
	r.mu.Unlock()

	for _, p := range others {
		p.deliver(snapshot)
	}
}

func (r *room) idleSince(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers) == 0 && r.lastActive.Before(cutoff)
}
