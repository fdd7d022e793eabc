// Package relay implements the bidirectional IPv4↔IPv6 stateful UDP
// relay of spec §4.9: a shared payload-mutation handler and a pair of
// symmetric per-family forwarders, each holding one session per source
// endpoint.
package relay

import "bytes"

// Handler is the stateless, side-effect-free payload transform shared by
// both forwarding directions: keep the first ⌊L·ReserveRate⌋ bytes, append
// ⌊L·NewRate⌋ bytes formed by repeating NewContent and truncating.
type Handler struct {
	ReserveRate float64
	NewRate     float64
	NewContent  []byte
}

// Transform applies the handler to one datagram.
func (h Handler) Transform(data []byte) []byte {
	l := len(data)
	cutLength := int(float64(l) * h.ReserveRate)
	if cutLength > l {
		cutLength = l
	}
	customLength := int(float64(l) * h.NewRate)

	out := make([]byte, 0, cutLength+customLength)
	out = append(out, data[:cutLength]...)
	out = append(out, repeatTruncate(h.NewContent, customLength)...)
	return out
}

func repeatTruncate(content []byte, n int) []byte {
	if n <= 0 || len(content) == 0 {
		return nil
	}
	out := bytes.Repeat(content, n/len(content)+1)
	return out[:n]
}
