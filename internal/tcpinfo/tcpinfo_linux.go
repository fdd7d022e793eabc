//go:build linux

// Package tcpinfo implements the kernel TCP_INFO probe abstracted by spec
// §6 as probe_tcp_state(stream) -> {mss, snd_cwnd_segments, retransmits,
// rtt_µs}. On platforms without a probe, callers get zero fields (see
// tcpinfo_other.go).
package tcpinfo

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// State is the observable subset of TCP_INFO spec §6 requires.
type State struct {
	CwndBytes   uint64
	Retransmits uint64
	RTTMicros   uint64
}

// Read probes the kernel connection state of conn via getsockopt(TCP_INFO).
func Read(conn *net.TCPConn) (State, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return State{}, fmt.Errorf("tcpinfo: syscall conn: %w", err)
	}

	var info *unix.TCPInfo
	var sockErr error
	if err := rawConn.Control(func(fd uintptr) {
		info, sockErr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	}); err != nil {
		return State{}, fmt.Errorf("tcpinfo: control: %w", err)
	}
	if sockErr != nil {
		return State{}, fmt.Errorf("tcpinfo: getsockopt TCP_INFO: %w", sockErr)
	}
	if info == nil {
		return State{}, fmt.Errorf("tcpinfo: nil TCP_INFO")
	}

	mss := uint64(info.Snd_mss)
	cwnd := uint64(info.Snd_cwnd) * mss

	return State{
		CwndBytes:   cwnd,
		Retransmits: uint64(info.Total_retrans),
		RTTMicros:   uint64(info.Rtt),
	}, nil
}
