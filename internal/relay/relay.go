package relay

import (
	"fmt"
	"net"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/logging"
)

// Relay runs the two symmetric forwarders (v4-sourced clients relayed to
// the v6 target, v6-sourced clients relayed to the v4 target) that share
// one payload handler, spec §4.9.
type Relay struct {
	Config *config.RelayConfig
	Logger logging.Logger

	fwd426 *Forwarder // v4 clients -> v6 target
	fwd624 *Forwarder // v6 clients -> v4 target
}

// Start binds both listeners and returns a Relay whose forwarders begin
// serving when Run is called. Either address
// may be left unconfigured (port 0), in which case that direction is
// skipped entirely.
func Start(cfg *config.RelayConfig, logger logging.Logger) (*Relay, error) {
	handler := Handler{ReserveRate: cfg.ReserveRate, NewRate: cfg.NewRate, NewContent: cfg.NewContent}
	r := &Relay{Config: cfg, Logger: logger}

	// Either direction may be left unconfigured (port 0); NewRelayConfig
	// only requires at least one of the two, so each listener is bound
	// independently rather than gated on both being set.
	if cfg.IPv4Port != 0 {
		v4Listener, err := listenV4(cfg.IPv4Addr, cfg.IPv4Port)
		if err != nil {
			return nil, fmt.Errorf("relay: listen v4: %w", err)
		}
		v6Target, err := net.ResolveUDPAddr("udp6", fmt.Sprintf("[%s]:%d", cfg.IPv6Addr, cfg.IPv6Port))
		if err != nil {
			v4Listener.Close()
			return nil, fmt.Errorf("relay: resolve v6 target: %w", err)
		}
		r.fwd426 = NewForwarder("v4->v6", v4Listener, false, v6Target, "udp6", handler, logger)
	}
	if cfg.IPv6Port != 0 {
		v6Listener, err := listenV6(cfg.IPv6Addr, cfg.IPv6Port)
		if err != nil {
			return nil, fmt.Errorf("relay: listen v6: %w", err)
		}
		v4Target, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", cfg.IPv4Addr, cfg.IPv4Port))
		if err != nil {
			v6Listener.Close()
			return nil, fmt.Errorf("relay: resolve v4 target: %w", err)
		}
		r.fwd624 = NewForwarder("v6->v4", v6Listener, true, v4Target, "udp4", handler, logger)
	}

	return r, nil
}

// Run blocks until stopCh closes, running both forwarders concurrently.
func (r *Relay) Run(stopCh <-chan struct{}) error {
	errCh := make(chan error, 2)
	running := 0
	if r.fwd426 != nil {
		running++
		go func() { errCh <- r.fwd426.Run(stopCh) }()
	}
	if r.fwd624 != nil {
		running++
		go func() { errCh <- r.fwd624.Run(stopCh) }()
	}
	var firstErr error
	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func listenV4(addr string, port int) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp4", laddr)
}
