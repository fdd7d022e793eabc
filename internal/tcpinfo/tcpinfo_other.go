//go:build !linux

package tcpinfo

import "net"

// State is the observable subset of TCP_INFO spec §6 requires.
type State struct {
	CwndBytes   uint64
	Retransmits uint64
	RTTMicros   uint64
}

// Read degrades to a zero State on platforms with no TCP_INFO probe,
// per spec §6/§7 (ProbeUnavailable degrades gracefully).
func Read(conn *net.TCPConn) (State, error) {
	return State{}, nil
}
