//go:build windows

package tcpflow

import "syscall"

// reuseAddrControl is a no-op on Windows; SO_REUSEADDR has different and
// generally undesirable semantics there, so the listener relies on the
// platform default.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
