package udpflow

import (
	"fmt"
	"net"
	"time"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/counters"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/stats"
	"github.com/nimblewing/flowgen/internal/udpproto"
)

// recvPollTimeout bounds how long a RECEIVING-state read blocks before the
// server re-checks stopCh, so a forced shutdown is observed promptly.
const recvPollTimeout = 200 * time.Millisecond

// Server drives the UDP server side: LISTEN/ACCEPTING/RECEIVING/CLOSING,
// one peer pinned at a time, looping for the next client unless one-shot.
type Server struct {
	Config *config.FlowConfig
	Logger logging.Logger
	Offset OffsetMicrosFunc
	// Live, if set, mirrors each IntervalRow to a live websocket feed.
	Live func(stats.IntervalRow)

	conn *net.UDPConn
}

// Run binds the listening socket and serves clients until stopCh closes.
func (s *Server) Run(stopCh <-chan struct{}) error {
	network := "udp4"
	if s.Config.Family == config.FamilyV6 {
		network = "udp6"
	}
	bind := s.Config.BindAddr
	if bind == "" {
		bind = config.DefaultBindAddr(s.Config.Family)
	}
	laddr, err := net.ResolveUDPAddr(network, fmt.Sprintf("%s:%d", bind, s.Config.Port))
	if err != nil {
		return fmt.Errorf("udpflow: resolve bind %s: %w", bind, err)
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return fmt.Errorf("udpflow: bind %s: %w", laddr, err)
	}
	defer conn.Close()
	s.conn = conn

	if s.Offset == nil {
		s.Offset = func() float64 { return 0 }
	}

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		peer, err := s.accept(stopCh)
		if err != nil {
			return err
		}
		if peer == nil {
			return nil // stopCh fired during ACCEPTING
		}

		s.Logger.Info("udp client connected", "remote", peer.String(), "run_id", s.Config.RunID)
		s.receive(peer, stopCh)

		if s.Config.OneShot {
			return nil
		}
	}
}

// accept discards non-INIT datagrams until an INIT arrives, replies with
// INIT_ACK, and pins the peer.
func (s *Server) accept(stopCh <-chan struct{}) (*net.UDPAddr, error) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-stopCh:
			return nil, nil
		default:
		}
		s.conn.SetReadDeadline(time.Now().Add(recvPollTimeout))
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		pkt, err := udpproto.Decode(buf[:n])
		if err != nil || pkt.SeqNo != udpproto.SeqInit {
			continue
		}
		ack := udpproto.Packet{SeqNo: udpproto.SeqInitAck, SendTSMicros: uint64(time.Now().UnixMicro())}
		if _, err := s.conn.WriteToUDP(udpproto.Encode(ack), peer); err != nil {
			continue
		}
		return peer, nil
	}
}

// receive runs the RECEIVING state for one pinned peer until FIN,
// FORCE_QUIT, or stopCh fires.
func (s *Server) receive(peer *net.UDPAddr, stopCh <-chan struct{}) {
	var c counters.Counters
	sampler := &stats.Sampler{
		Counters: &c, Kind: stats.KindUDPServer,
		Interval: time.Duration(s.Config.IntervalSeconds * float64(time.Second)),
	}
	sampStop := make(chan struct{})
	sampDone := make(chan struct{})
	go func() {
		sampler.Run(sampStop, func(row stats.IntervalRow) { emitRow(s.Config, stats.KindUDPServer, row, s.Live) })
		close(sampDone)
	}()

	start := time.Now()
	var lastTransit float64
	buf := make([]byte, 65535)

	for {
		select {
		case <-stopCh:
			close(sampStop)
			<-sampDone
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(recvPollTimeout))
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			continue // timeout or transient recv error: loop continues per §4.7 failure model
		}
		if !from.IP.Equal(peer.IP) || from.Port != peer.Port {
			continue // datagram from an unexpected peer: dropped
		}

		pkt, err := udpproto.Decode(buf[:n])
		if err != nil {
			continue
		}

		switch pkt.SeqNo {
		case udpproto.SeqFin:
			ack := udpproto.Packet{SeqNo: udpproto.SeqFinAck, SendTSMicros: uint64(time.Now().UnixMicro()), TotalPackets: uint32(c.Packets())}
			_, _ = s.conn.WriteToUDP(udpproto.Encode(ack), peer)
			close(sampStop)
			<-sampDone
			s.finish(&c, sampler.Rows(), start, time.Now(), pkt.TotalPackets)
			return
		case udpproto.SeqForceQuit:
			ack := udpproto.Packet{SeqNo: udpproto.SeqForceQAck, SendTSMicros: uint64(time.Now().UnixMicro()), TotalPackets: uint32(c.Packets())}
			_, _ = s.conn.WriteToUDP(udpproto.Encode(ack), peer)
			close(sampStop)
			<-sampDone
			s.finish(&c, sampler.Rows(), start, time.Now(), pkt.TotalPackets)
			return
		case udpproto.SeqInit, udpproto.SeqInitAck, udpproto.SeqFinAck, udpproto.SeqForceQAck:
			continue // unexpected control seq_no in RECEIVING: dropped
		default:
			c.ObserveSeqNo(pkt.SeqNo)
			c.AddSentBytes(uint64(n) + uint64(s.Config.UDPOverheadBytes()))
			c.IncPackets()

			if s.Config.PrintPayload {
				fmt.Printf("seq=%d payload=%x\n", pkt.SeqNo, pkt.Payload)
			}

			nowMicros := float64(time.Now().UnixMicro()) + s.Offset()
			transitMs := (nowMicros - float64(pkt.SendTSMicros)) / 1000
			c.AddJitterMs(abs(transitMs - lastTransit))
			c.AddDelayMs(transitMs)
			lastTransit = transitMs
		}
	}
}

// finish prints the run summary. totalSent is the sender's total_sent_packets
// captured from the FIN/FORCE_QUIT packet (spec §4.7: "Server on FIN:
// captures sender total"), the basis for lost = total_sent − total_received,
// distinct from c.MaxSeqNo() which only drives the per-interval Δmax_seq_no
// figure in internal/stats.
func (s *Server) finish(c *counters.Counters, rows []stats.IntervalRow, start, end time.Time, totalSent uint32) {
	if c.SentBytes() == 0 {
		return
	}
	elapsed := end.Sub(start)
	packets := c.Packets()
	lost := int64(totalSent) - int64(packets)
	if lost < 0 {
		lost = 0
	}
	lossPercent := 0.0
	if totalSent > 0 {
		lossPercent = 100 * float64(lost) / float64(totalSent)
	}
	avgJitter := 0.0
	if packets > 0 {
		avgJitter = c.JitterMs() / float64(packets)
	}

	summary := stats.Summary{
		End: elapsed.Seconds(), Seconds: elapsed.Seconds(),
		Bytes: c.SentBytes(), BitsPerSecond: bitsPerSecond(c.SentBytes(), elapsed),
		LostPackets: uint64(lost), LossPercent: lossPercent, JitterMs: avgJitter,
		TotalDatagrams: uint64(totalSent),
	}
	printSummary(s.Config, stats.KindUDPServer, rows, summary)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
