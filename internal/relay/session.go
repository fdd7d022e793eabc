package relay

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// sessionQueueDepth bounds how many client datagrams may be buffered
// awaiting the inbound->upstream task before new arrivals are dropped.
const sessionQueueDepth = 64

// Session is the per-source-endpoint relay state, spec §3/GLOSSARY: an
// upstream socket, an inbound queue, and an active flag observed by both
// of its forwarding tasks.
type Session struct {
	ID         string
	Key        string
	ClientAddr *net.UDPAddr
	Upstream   *net.UDPConn

	inbound chan []byte
	active  atomic.Bool
	closeOnce sync.Once
}

func newSession(key string, clientAddr *net.UDPAddr, upstream *net.UDPConn) *Session {
	s := &Session{
		ID:         uuid.New().String(),
		Key:        key,
		ClientAddr: clientAddr,
		Upstream:   upstream,
		inbound:    make(chan []byte, sessionQueueDepth),
	}
	s.active.Store(true)
	return s
}

// Active reports whether the session is still live; it turns false once
// either forwarding task has closed the session.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Close marks the session inactive and releases its upstream socket. Safe
// to call from either forwarding task, any number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.active.Store(false)
		s.Upstream.Close()
	})
}

// Enqueue offers a client datagram to the inbound queue, dropping it if the
// queue is full rather than blocking the listener's read loop.
func (s *Session) Enqueue(data []byte) {
	select {
	case s.inbound <- data:
	default:
	}
}

// sessionKey renders the spec §4.9 session key: "addr:port" for an
// IPv4-sourced client, "addr%port" for an IPv6-sourced client.
func sessionKey(addr *net.UDPAddr, isV6 bool) string {
	if isV6 {
		return addr.IP.String() + "%" + strconv.Itoa(addr.Port)
	}
	return addr.IP.String() + ":" + strconv.Itoa(addr.Port)
}
