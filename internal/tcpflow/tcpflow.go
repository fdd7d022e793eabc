// Package tcpflow implements the one-connection-at-a-time TCP server and
// client flow engine, spec §4.5.
package tcpflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/counters"
	"github.com/nimblewing/flowgen/internal/distribution"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/pacing"
	"github.com/nimblewing/flowgen/internal/stats"
	"github.com/nimblewing/flowgen/internal/tcpinfo"
)

// recvBufSize is the fixed receive buffer the server drains into; each
// successful read counts as one "packet", spec §4.5.
const recvBufSize = 65535

// Engine runs one TCP flow, server or client, parameterized by a
// FlowConfig. A single Engine instance is good for one run.
type Engine struct {
	Config *config.FlowConfig
	Logger logging.Logger

	// Live, if set, mirrors each IntervalRow to a live websocket feed
	// alongside the normal stdout reporting (SPEC_FULL §3/§4).
	Live func(stats.IntervalRow)
}

// NewEngine constructs a TCP flow engine.
func NewEngine(cfg *config.FlowConfig, logger logging.Logger) *Engine {
	return &Engine{Config: cfg, Logger: logger}
}

func applyTOS(conn net.Conn, family config.Family, tos byte) {
	if tos == 0 {
		return
	}
	if family == config.FamilyV6 {
		_ = ipv6.NewConn(conn).SetTrafficClass(int(tos))
		return
	}
	_ = ipv4.NewConn(conn).SetTOS(int(tos))
}

// RunServer accepts connections and drains them, one at a time, until
// stopCh closes or (one-shot) the first connection completes.
func (e *Engine) RunServer(stopCh <-chan struct{}) error {
	bind := e.Config.BindAddr
	if bind == "" {
		bind = config.DefaultBindAddr(e.Config.Family)
	}
	network := "tcp4"
	if e.Config.Family == config.FamilyV6 {
		network = "tcp6"
	}
	addr := fmt.Sprintf("%s:%d", bind, e.Config.Port)

	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return fmt.Errorf("tcpflow: bind %s: %w", addr, err)
	}
	defer ln.Close()

	go func() {
		<-stopCh
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stopCh:
				return nil
			default:
			}
			return fmt.Errorf("tcpflow: accept: %w", err)
		}

		e.Logger.Info("tcp client connected", "remote", conn.RemoteAddr().String(), "run_id", e.Config.RunID)
		applyTOS(conn, e.Config.Family, e.Config.TOS)
		e.serveOne(conn, stopCh)

		if e.Config.OneShot {
			return nil
		}
		select {
		case <-stopCh:
			return nil
		default:
		}
	}
}

func (e *Engine) serveOne(conn net.Conn, stopCh <-chan struct{}) {
	defer conn.Close()

	var c counters.Counters
	sampler := &stats.Sampler{
		Counters: &c,
		Kind:     stats.KindTCPServer,
		Interval: time.Duration(e.Config.IntervalSeconds * float64(time.Second)),
	}
	sampDone := make(chan struct{})
	sampStop := make(chan struct{})
	go func() {
		sampler.Run(sampStop, func(row stats.IntervalRow) {
			emitRow(e.Config, stats.KindTCPServer, row, e.Live)
		})
		close(sampDone)
	}()

	buf := make([]byte, recvBufSize)
	start := time.Now()
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.AddSentBytes(uint64(n))
			c.IncPackets()
		}
		if err != nil {
			break
		}
		select {
		case <-stopCh:
			close(sampStop)
			<-sampDone
			return
		default:
		}
	}
	close(sampStop)
	<-sampDone

	if c.SentBytes() > 0 {
		finishAndPrint(e.Config, stats.KindTCPServer, &c, sampler.Rows(), start, time.Now())
	}
}

// RunClient dials the server and runs the pacing loop over the connection.
func (e *Engine) RunClient(stopCh <-chan struct{}) error {
	network := "tcp4"
	if e.Config.Family == config.FamilyV6 {
		network = "tcp6"
	}
	addr := fmt.Sprintf("%s:%d", e.Config.PeerHost, e.Config.Port)

	conn, err := net.Dial(network, addr)
	if err != nil {
		return fmt.Errorf("tcpflow: connect %s: %w", addr, err)
	}
	defer conn.Close()

	tcpConn, _ := conn.(*net.TCPConn)
	if tcpConn != nil {
		_ = tcpConn.SetWriteBuffer(0)
		_ = tcpConn.SetReadBuffer(0)
		_ = tcpConn.SetNoDelay(true)
	}
	applyTOS(conn, e.Config.Family, e.Config.TOS)

	var c counters.Counters
	var probe stats.TCPProbeFunc
	if tcpConn != nil {
		probe = func() (uint64, uint64, uint64, error) {
			st, err := tcpinfo.Read(tcpConn)
			if err != nil {
				return 0, 0, 0, err
			}
			return st.CwndBytes, st.Retransmits, st.RTTMicros, nil
		}
	}

	sampler := &stats.Sampler{
		Counters: &c,
		Kind:     stats.KindTCPClient,
		Interval: time.Duration(e.Config.IntervalSeconds * float64(time.Second)),
		TCPProbe: probe,
	}
	sampDone := make(chan struct{})
	sampStop := make(chan struct{})
	go func() {
		sampler.Run(sampStop, func(row stats.IntervalRow) {
			emitRow(e.Config, stats.KindTCPClient, row, e.Live)
		})
		close(sampDone)
	}()

	sampler2, err := distribution.NewSampler(e.Config.DistLen, e.Config.DistPPS, e.Config.DistBW, e.Config.PacketSize, e.Config.RateBps)
	if err != nil {
		close(sampStop)
		<-sampDone
		return err
	}

	loop := &pacing.Loop{
		Stop:                pacing.StopCriterion{Duration: e.Config.Duration, TotalSize: e.Config.TotalSize},
		PacketSize:          e.Config.PacketSize,
		RateBps:             e.Config.RateBps,
		BandwidthResetEvery: e.Config.BandwidthResetInterval,
		Sampler:             sampler2,
		Send: func(payload []byte) (int, error) {
			n, werr := writeFull(conn, payload)
			if werr == nil {
				c.AddSentBytes(uint64(n))
				c.IncPackets()
			}
			return n, werr
		},
	}

	start := time.Now()
	runErr := loop.Run(stopCh)

	close(sampStop)
	<-sampDone

	var maxCwnd uint64
	var rttSum float64
	var rttCount int
	var lastRetr uint64
	for _, row := range sampler.Rows() {
		if row.CwndBytes > maxCwnd {
			maxCwnd = row.CwndBytes
		}
		if row.RTTMicros > 0 {
			rttSum += float64(row.RTTMicros)
			rttCount++
		}
		lastRetr += row.Retransmits
	}
	meanRTT := 0.0
	if rttCount > 0 {
		meanRTT = rttSum / float64(rttCount)
	}

	summary := stats.Summary{
		Start: 0, End: time.Since(start).Seconds(), Seconds: time.Since(start).Seconds(),
		Bytes: c.SentBytes(), BitsPerSecond: bitsPerSecond(c.SentBytes(), time.Since(start)),
		MaxSndCwnd: maxCwnd, MeanRTT: meanRTT, Retransmits: lastRetr,
	}
	printSummary(e.Config, stats.KindTCPClient, sampler.Rows(), summary)

	if runErr != nil && !errors.Is(runErr, io.EOF) {
		return fmt.Errorf("tcpflow: send: %w", runErr)
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
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

func finishAndPrint(cfg *config.FlowConfig, kind stats.Kind, c *counters.Counters, rows []stats.IntervalRow, start, end time.Time) {
	summary := stats.Summary{
		Start: 0, End: end.Sub(start).Seconds(), Seconds: end.Sub(start).Seconds(),
		Bytes: c.SentBytes(), BitsPerSecond: bitsPerSecond(c.SentBytes(), end.Sub(start)),
	}
	printSummary(cfg, kind, rows, summary)
}

func printSummary(cfg *config.FlowConfig, kind stats.Kind, rows []stats.IntervalRow, summary stats.Summary) {
	if cfg.Structured {
		_ = stats.WriteStructured(os.Stdout, rows, summary)
		return
	}
	stats.WriteHumanSummary(os.Stdout, kind, summary)
}
