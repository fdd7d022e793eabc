//go:build !windows

package relay

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenV6 binds the IPv6 listener with IPV6_V6ONLY and SO_REUSEADDR, spec
// §6.
func listenV6(addr string, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: v6OnlyReuseAddrControl}
	pc, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf("[%s]:%d", addr, port))
	if err != nil {
		return nil, err
	}
	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("relay: unexpected packet conn type %T", pc)
	}
	return udpConn, nil
}

func v6OnlyReuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
