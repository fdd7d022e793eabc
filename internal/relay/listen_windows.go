//go:build windows

package relay

import (
	"fmt"
	"net"
)

// listenV6 binds the IPv6 listener. Windows defaults new IPv6 sockets to
// v6-only already, so no explicit socket option is required here.
func listenV6(addr string, port int) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp6", fmt.Sprintf("[%s]:%d", addr, port))
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp6", laddr)
}
