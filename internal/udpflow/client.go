package udpflow

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/counters"
	"github.com/nimblewing/flowgen/internal/distribution"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/stats"
	"github.com/nimblewing/flowgen/internal/udpproto"
)

// OffsetMicrosFunc returns the current clock-offset correction in
// microseconds, 0 when no estimator is running (spec §4.8).
type OffsetMicrosFunc func() float64

// Client drives the UDP client side of one flow.
type Client struct {
	Config *config.FlowConfig
	Logger logging.Logger
	Offset OffsetMicrosFunc
	// Live, if set, mirrors each IntervalRow to a live websocket feed.
	Live func(stats.IntervalRow)

	conn       *net.UDPConn
	serverAddr *net.UDPAddr
	counters   counters.Counters
}

// Run executes the handshake, the sending phase, and the close handshake,
// then prints the final summary. stopCh signals a forced close (user
// interrupt), which transitions SENDING -> QUITTING -> CLOSED.
func (c *Client) Run(stopCh <-chan struct{}) error {
	network := "udp4"
	if c.Config.Family == config.FamilyV6 {
		network = "udp6"
	}
	raddr, err := net.ResolveUDPAddr(network, fmt.Sprintf("%s:%d", c.Config.PeerHost, c.Config.Port))
	if err != nil {
		return fmt.Errorf("udpflow: resolve %s: %w", c.Config.PeerHost, err)
	}
	conn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return fmt.Errorf("udpflow: dial %s: %w", raddr, err)
	}
	defer conn.Close()
	c.conn = conn
	c.serverAddr = raddr

	if c.Offset == nil {
		c.Offset = func() float64 { return 0 }
	}

	if err := c.handshake(); err != nil {
		return err
	}

	distSampler, err := distribution.NewSampler(c.Config.DistLen, c.Config.DistPPS, c.Config.DistBW, c.Config.PacketSize, c.Config.RateBps)
	if err != nil {
		return err
	}

	sampler := &stats.Sampler{
		Counters: &c.counters,
		Kind:     stats.KindUDPClient,
		Interval: time.Duration(c.Config.IntervalSeconds * float64(time.Second)),
	}
	sampStop := make(chan struct{})
	sampDone := make(chan struct{})
	go func() {
		sampler.Run(sampStop, func(row stats.IntervalRow) { emitRow(c.Config, stats.KindUDPClient, row, c.Live) })
		close(sampDone)
	}()

	start := time.Now()
	forced, runErr := c.sendingLoop(distSampler, stopCh)

	close(sampStop)
	<-sampDone

	var totalReceived uint64
	var closeErr error
	if forced {
		totalReceived, closeErr = c.forcedClose()
	} else {
		totalReceived, closeErr = c.gracefulClose()
	}
	if closeErr != nil {
		c.Logger.Warn("udp client close handshake failed", "err", closeErr, "run_id", c.Config.RunID)
	}

	elapsed := time.Since(start)
	totalSent := c.counters.Packets()
	lost := int64(totalSent) - int64(totalReceived)
	if lost < 0 {
		lost = 0
	}
	lossPercent := 0.0
	if totalSent > 0 {
		lossPercent = 100 * float64(lost) / float64(totalSent)
	}

	summary := stats.Summary{
		End: elapsed.Seconds(), Seconds: elapsed.Seconds(),
		Bytes: c.counters.SentBytes(), BitsPerSecond: bitsPerSecond(c.counters.SentBytes(), elapsed),
		LostPackets: uint64(lost), LossPercent: lossPercent, TotalDatagrams: totalSent,
	}
	printSummary(c.Config, stats.KindUDPClient, sampler.Rows(), summary)

	return runErr
}

func (c *Client) handshake() error {
	for i := 0; i < handshakeRetries; i++ {
		pkt := udpproto.Packet{SeqNo: udpproto.SeqInit, SendTSMicros: uint64(time.Now().UnixMicro())}
		if _, err := c.conn.Write(udpproto.Encode(pkt)); err != nil {
			return fmt.Errorf("udpflow: send INIT: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		buf := make([]byte, 2048)
		n, err := c.conn.Read(buf)
		if err != nil {
			continue
		}
		resp, err := udpproto.Decode(buf[:n])
		if err != nil || resp.SeqNo != udpproto.SeqInitAck {
			continue
		}
		return nil
	}
	return &ErrHandshakeTimeout{}
}

// sendingLoop drives the pacing schedule for the DATA phase, interleaving a
// non-blocking poll for an inbound FORCE_QUIT between send slots, spec
// §4.7's "client receive-probe interleave". It returns forced=true if a
// FORCE_QUIT was observed or stopCh fired.
func (c *Client) sendingLoop(sampler *distribution.Sampler, stopCh <-chan struct{}) (forced bool, err error) {
	start := time.Now()
	var seq uint32 = 1
	nextSend := time.Now()
	pps, meanInterval := c.rateParams()
	lastBandwidthReset := time.Now()

	for {
		select {
		case <-stopCh:
			return true, nil
		default:
		}

		if c.Config.Duration > 0 && time.Since(start) >= c.Config.Duration {
			return false, nil
		}
		if c.Config.TotalSize > 0 && c.counters.SentBytes() >= c.Config.TotalSize {
			return false, nil
		}

		if c.Config.BandwidthResetInterval > 0 && time.Since(lastBandwidthReset) >= c.Config.BandwidthResetInterval {
			if newRate := sampler.ResetBandwidth(); newRate > 0 {
				c.Config.RateBps = newRate
				pps, meanInterval = c.rateParams()
			}
			lastBandwidthReset = time.Now()
		}

		// Non-blocking poll for an inbound FORCE_QUIT before this slot's send.
		if c.pollForceQuit() {
			return true, nil
		}

		if pps <= 0 {
			if seq >= udpproto.SeqInit {
				return false, fmt.Errorf("udpflow: sequence space exhausted")
			}
			if err := c.sendData(sampler, seq); err != nil {
				return false, err
			}
			seq++
			continue
		}

		now := time.Now()
		if now.Before(nextSend) {
			sleep := time.Until(nextSend)
			if sleep > 0 {
				time.Sleep(sleep)
			}
			continue
		}
		if seq >= udpproto.SeqInit {
			return false, fmt.Errorf("udpflow: sequence space exhausted")
		}
		if err := c.sendData(sampler, seq); err != nil {
			return false, err
		}
		seq++
		nextSend = nextSend.Add(time.Duration(sampler.Interval(meanInterval) * float64(time.Second)))
	}
}

func (c *Client) sendData(sampler *distribution.Sampler, seq uint32) error {
	payload := make([]byte, sampler.PacketSize())
	for i := range payload {
		payload[i] = 'X'
	}
	sendTS := uint64(time.Now().UnixMicro()) + uint64(c.Offset())
	pkt := udpproto.Packet{SeqNo: seq, SendTSMicros: sendTS, TotalPackets: 0, Payload: payload}
	buf := udpproto.Encode(pkt)
	c.conn.SetWriteDeadline(time.Time{})
	n, err := c.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("udpflow: send DATA: %w", err)
	}
	c.counters.AddSentBytes(uint64(n) + uint64(c.Config.UDPOverheadBytes()))
	c.counters.IncPackets()
	return nil
}

// pollForceQuit does a non-blocking read for an inbound FORCE_QUIT,
// toggling the socket to a zero-duration deadline rather than a blocking
// read, per spec §5's "toggles blocking mode around its control-message
// poll".
func (c *Client) pollForceQuit() bool {
	c.conn.SetReadDeadline(time.Now())
	buf := make([]byte, 2048)
	n, err := c.conn.Read(buf)
	if err != nil {
		return false
	}
	pkt, err := udpproto.Decode(buf[:n])
	if err != nil || pkt.SeqNo != udpproto.SeqForceQuit {
		return false
	}
	ack := udpproto.Packet{SeqNo: udpproto.SeqForceQAck, SendTSMicros: uint64(time.Now().UnixMicro()), TotalPackets: uint32(c.counters.Packets())}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = c.conn.Write(udpproto.Encode(ack))
	return true
}

func (c *Client) gracefulClose() (uint64, error) {
	for i := 0; i < finRetries; i++ {
		pkt := udpproto.Packet{SeqNo: udpproto.SeqFin, SendTSMicros: uint64(time.Now().UnixMicro()), TotalPackets: uint32(c.counters.Packets())}
		if _, err := c.conn.Write(udpproto.Encode(pkt)); err != nil {
			return 0, fmt.Errorf("udpflow: send FIN: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(finTimeout))
		buf := make([]byte, 2048)
		n, err := c.conn.Read(buf)
		if err != nil {
			continue
		}
		resp, err := udpproto.Decode(buf[:n])
		if err != nil || resp.SeqNo != udpproto.SeqFinAck {
			continue
		}
		return uint64(resp.TotalPackets), nil
	}
	return 0, fmt.Errorf("udpflow: FIN_ACK not received after %d retries", finRetries)
}

func (c *Client) forcedClose() (uint64, error) {
	for i := 0; i < forceQuitRetries; i++ {
		pkt := udpproto.Packet{SeqNo: udpproto.SeqForceQuit, SendTSMicros: uint64(time.Now().UnixMicro()), TotalPackets: uint32(c.counters.Packets())}
		if _, err := c.conn.Write(udpproto.Encode(pkt)); err != nil {
			return 0, fmt.Errorf("udpflow: send FORCE_QUIT: %w", err)
		}
		c.conn.SetReadDeadline(time.Now().Add(forceQuitTimeout))
		buf := make([]byte, 2048)
		n, err := c.conn.Read(buf)
		if err != nil {
			continue
		}
		resp, err := udpproto.Decode(buf[:n])
		if err != nil || resp.SeqNo != udpproto.SeqForceQAck {
			continue
		}
		return uint64(resp.TotalPackets), nil
	}
	return 0, fmt.Errorf("udpflow: FORCE_QUIT_ACK not received after %d retries", forceQuitRetries)
}

func (c *Client) rateParams() (pps float64, meanInterval float64) {
	if c.Config.RateBps <= 0 || c.Config.PacketSize <= 0 {
		return 0, 0
	}
	pps = c.Config.RateBps / float64(c.Config.PacketSize*8)
	if pps <= 0 {
		return 0, 0
	}
	return pps, 1.0 / pps
}

func bitsPerSecond(bytes uint64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(bytes*8) / secs
}

func emitRow(cfg *config.FlowConfig, kind stats.Kind, row stats.IntervalRow, live func(stats.IntervalRow)) {
	if !cfg.Structured {
		stats.WriteHumanRow(os.Stdout, kind, row)
	}
	if live != nil {
		live(row)
	}
}

func printSummary(cfg *config.FlowConfig, kind stats.Kind, rows []stats.IntervalRow, summary stats.Summary) {
	if cfg.Structured {
		_ = stats.WriteStructured(os.Stdout, rows, summary)
		return
	}
	stats.WriteHumanSummary(os.Stdout, kind, summary)
}
