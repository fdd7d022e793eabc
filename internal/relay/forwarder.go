package relay

import (
	"net"
	"sync"
	"time"

	"github.com/nimblewing/flowgen/internal/logging"
)

// sessionIOTimeout is the shared "1 s timeout to allow periodic liveness
// checks" named by spec §4.9 for both the inbound->upstream dequeue and the
// upstream->inbound recv.
const sessionIOTimeout = time.Second

// Forwarder relays one direction of the bidirectional relay: a listener on
// the inbound family, and one session per distinct client endpoint.
type Forwarder struct {
	Name            string // for logs, e.g. "v4->v6"
	Listener        *net.UDPConn
	ListenerIsV6    bool
	TargetAddr      *net.UDPAddr
	UpstreamNetwork string // "udp4" or "udp6", opposite of the listener family
	Handler         Handler
	Logger          logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewForwarder constructs a Forwarder over an already-bound listener.
func NewForwarder(name string, listener *net.UDPConn, listenerIsV6 bool, target *net.UDPAddr, upstreamNetwork string, handler Handler, logger logging.Logger) *Forwarder {
	return &Forwarder{
		Name: name, Listener: listener, ListenerIsV6: listenerIsV6,
		TargetAddr: target, UpstreamNetwork: upstreamNetwork,
		Handler: handler, Logger: logger,
		sessions: make(map[string]*Session),
	}
}

// Run reads client datagrams from the listener until stopCh closes,
// dispatching each to its session's inbound queue (spec §4.9 steps 1-3).
func (f *Forwarder) Run(stopCh <-chan struct{}) error {
	buf := make([]byte, 65535)
	for {
		select {
		case <-stopCh:
			f.closeAll()
			return nil
		default:
		}

		f.Listener.SetReadDeadline(time.Now().Add(sessionIOTimeout))
		n, from, err := f.Listener.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		key := sessionKey(from, f.ListenerIsV6)
		sess := f.getOrCreateSession(key, from, stopCh)
		if sess == nil {
			continue // upstream bind failed; packet dropped, spec §4.9
		}
		sess.Enqueue(data)
	}
}

func (f *Forwarder) getOrCreateSession(key string, from *net.UDPAddr, stopCh <-chan struct{}) *Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	if sess, ok := f.sessions[key]; ok && sess.Active() {
		return sess
	}

	upstream, err := net.DialUDP(f.UpstreamNetwork, &net.UDPAddr{Port: from.Port}, f.TargetAddr)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("relay: upstream bind failed, dropping packet", "direction", f.Name, "client", key, "err", err)
		}
		return nil
	}

	sess := newSession(key, from, upstream)
	f.sessions[key] = sess
	if f.Logger != nil {
		f.Logger.Info("relay: session created", "direction", f.Name, "client", key, "session_id", sess.ID)
	}

	go f.inboundToUpstream(sess, stopCh)
	go f.upstreamToInbound(sess, stopCh)
	return sess
}

func (f *Forwarder) inboundToUpstream(sess *Session, stopCh <-chan struct{}) {
	defer f.retireSession(sess)
	for {
		select {
		case <-stopCh:
			sess.Close()
			return
		case data, ok := <-sess.inbound:
			if !ok {
				return
			}
			transformed := f.Handler.Transform(data)
			if _, err := sess.Upstream.Write(transformed); err != nil {
				sess.Close()
				return
			}
		case <-time.After(sessionIOTimeout):
			if !sess.Active() {
				return
			}
		}
	}
}

func (f *Forwarder) upstreamToInbound(sess *Session, stopCh <-chan struct{}) {
	defer f.retireSession(sess)
	buf := make([]byte, 65535)
	for {
		select {
		case <-stopCh:
			sess.Close()
			return
		default:
		}
		if !sess.Active() {
			return
		}
		sess.Upstream.SetReadDeadline(time.Now().Add(sessionIOTimeout))
		n, err := sess.Upstream.Read(buf)
		if err != nil {
			continue // recv timeout: loop back to the liveness check
		}
		if _, err := f.Listener.WriteToUDP(buf[:n], sess.ClientAddr); err != nil {
			sess.Close()
			return
		}
	}
}

func (f *Forwarder) retireSession(sess *Session) {
	if sess.Active() {
		return
	}
	f.mu.Lock()
	if f.sessions[sess.Key] == sess {
		delete(f.sessions, sess.Key)
	}
	f.mu.Unlock()
}

func (f *Forwarder) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sess := range f.sessions {
		sess.Close()
	}
}
