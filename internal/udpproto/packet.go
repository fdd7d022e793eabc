// Package udpproto implements the 16-byte fixed UDP packet header used by
// the flow generator's datagram protocol: a big-endian
// (seq_no, send_ts_µs, total_packets) header followed by an opaque payload.
// A handful of seq_no values near the top of the uint32 range are reserved
// for protocol control messages; every other value is application DATA.
package udpproto

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed, on-wire header length in bytes.
const HeaderSize = 4 + 8 + 4

// Reserved seq_no values. DATA packets must never use these; implementations
// should assert seq_no < SeqInit before sending.
const (
	SeqInit       uint32 = 0xFFFFFFF0
	SeqInitAck    uint32 = 0xFFFFFFF1
	SeqForceQuit  uint32 = 0xFFFFFFF2
	SeqForceQAck  uint32 = 0xFFFFFFF3
	SeqFinAck     uint32 = 0xFFFFFFFE
	SeqFin        uint32 = 0xFFFFFFFF
)

// IsReserved reports whether seq identifies a control message rather than a
// DATA packet.
func IsReserved(seq uint32) bool {
	switch seq {
	case SeqInit, SeqInitAck, SeqForceQuit, SeqForceQAck, SeqFinAck, SeqFin:
		return true
	default:
		return false
	}
}

// Packet is one UDP datagram of the flow protocol.
type Packet struct {
	SeqNo         uint32
	SendTSMicros  uint64
	TotalPackets  uint32
	Payload       []byte
}

// ErrDecode is returned when a datagram is too short to contain a header.
type ErrDecode struct {
	Len int
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("udpproto: short datagram, got %d bytes, need at least %d", e.Len, HeaderSize)
}

// Encode serializes p as header ++ payload. The returned slice is always
// HeaderSize + len(p.Payload) bytes.
func Encode(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], p.SeqNo)
	binary.BigEndian.PutUint64(buf[4:12], p.SendTSMicros)
	binary.BigEndian.PutUint32(buf[12:16], p.TotalPackets)
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// Decode parses a received datagram into a Packet. Any bytes past the
// 16-byte header become the payload; decoding fails only if fewer than
// HeaderSize bytes were supplied.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, &ErrDecode{Len: len(buf)}
	}
	p := Packet{
		SeqNo:        binary.BigEndian.Uint32(buf[0:4]),
		SendTSMicros: binary.BigEndian.Uint64(buf[4:12]),
		TotalPackets: binary.BigEndian.Uint32(buf[12:16]),
	}
	if len(buf) > HeaderSize {
		p.Payload = buf[HeaderSize:]
	}
	return p, nil
}
