// Package udpflow implements the UDP session protocol of spec §4.7: the
// INIT/INIT_ACK handshake, sequenced DATA transfer, graceful FIN/FIN_ACK
// close, and abrupt FORCE_QUIT/FORCE_QUIT_ACK teardown.
package udpflow

import "time"

const (
	handshakeTimeout = 100 * time.Millisecond
	handshakeRetries = 10

	finTimeout = 100 * time.Millisecond
	finRetries = 40

	forceQuitTimeout = 100 * time.Millisecond
	forceQuitRetries = 10
)

// ErrHandshakeTimeout is returned when the client exhausts its INIT retries
// without an INIT_ACK, spec §4.7/§7.
type ErrHandshakeTimeout struct{}

func (e *ErrHandshakeTimeout) Error() string { return "udpflow: handshake timed out" }
