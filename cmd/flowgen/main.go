// Command flowgen drives one TCP or UDP throughput/loss flow, server or
// client side, per spec §1/§6.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimblewing/flowgen/internal/clockskew"
	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/distribution"
	"github.com/nimblewing/flowgen/internal/liveview"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/stats"
	"github.com/nimblewing/flowgen/internal/tcpflow"
	"github.com/nimblewing/flowgen/internal/udpflow"
	"github.com/nimblewing/flowgen/internal/units"
	"github.com/nimblewing/flowgen/internal/version"
)

func main() {
	var (
		serverMode   = flag.Bool("s", false, "run as server")
		clientHost   = flag.String("c", "", "run as client, connecting to HOST")
		udpMode      = flag.Bool("u", false, "use UDP instead of TCP")
		port         = flag.Int("p", 5201, "port")
		durationSecs = flag.Float64("t", 0, "client: run for SECONDS")
		totalSize    = flag.String("n", "", "client: send SIZE bytes total (K/M/G, binary)")
		packetSize   = flag.String("l", "1400", "payload length per packet (K/M/G, binary)")
		rate         = flag.String("b", "", "client: target bandwidth (K/M/G, decimal bits/sec)")
		interval     = flag.Float64("i", 1, "reporting interval in seconds")
		distPPS      = flag.String("dpps", "", "distribution tag for inter-send interval")
		distLen      = flag.String("dl", "", "distribution tag for packet size")
		distBW       = flag.String("db", "", "distribution tag for bandwidth-reset draws")
		bwResetSecs  = flag.Float64("bri", 0, "bandwidth reset interval in seconds, 0 = never")
		structured   = flag.Bool("J", false, "structured JSON output")
		oneShot      = flag.Bool("1", false, "server: handle one client then exit")
		bindAddr     = flag.String("B", "", "bind address")
		v6           = flag.Bool("6", false, "use IPv6")
		printPayload = flag.Bool("ppkg", false, "UDP only: print payload contents")
		printVersion = flag.Bool("v", false, "print version and exit")
		profilePath  = flag.String("profile", "", "load defaults from a YAML profile")
		tos          = flag.Int("tos", 0, "IP_TOS/traffic-class value to set on the socket")
		liveAddr     = flag.String("live", "", "serve a live websocket feed of interval rows on ADDR")
	)
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Version)
		return
	}

	logger := logging.New()

	var profile *config.Profile
	if *profilePath != "" {
		p, err := config.LoadProfile(*profilePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		profile = p
	}

	cfg, err := buildConfig(buildArgs{
		serverMode: *serverMode, clientHost: *clientHost, udpMode: *udpMode, port: *port,
		durationSecs: *durationSecs, totalSize: *totalSize, packetSize: *packetSize, rate: *rate,
		interval: *interval, distPPS: *distPPS, distLen: *distLen, distBW: *distBW,
		bwResetSecs: *bwResetSecs, structured: *structured, oneShot: *oneShot, bindAddr: *bindAddr,
		v6: *v6, printPayload: *printPayload, tos: *tos, liveAddr: *liveAddr,
	}, profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested", "run_id", cfg.RunID)
		close(stopCh)
	}()

	var broadcaster *liveview.Broadcaster
	if cfg.LiveAddr != "" {
		broadcaster = liveview.NewBroadcaster(logger)
		if err := broadcaster.Start(cfg.LiveAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer broadcaster.Close()
	}

	var liveSink func(stats.IntervalRow)
	if broadcaster != nil {
		liveSink = broadcaster.Push
	}

	if cfg.Transport == config.TransportTCP {
		engine := tcpflow.NewEngine(cfg, logger)
		engine.Live = liveSink
		if cfg.Role == config.RoleServer {
			err = engine.RunServer(stopCh)
		} else {
			err = engine.RunClient(stopCh)
		}
	} else {
		var offsetFn udpflow.OffsetMicrosFunc
		estStop := make(chan struct{})
		probe := clockskew.DefaultProbe()
		fixRate := clockskew.LoadOffsetFixRate("config.json")
		estimator := clockskew.NewEstimator(probe, fixRate)
		go estimator.Run(estStop)
		defer close(estStop)
		offsetFn = estimator.OffsetMicros

		if cfg.Role == config.RoleServer {
			server := &udpflow.Server{Config: cfg, Logger: logger, Offset: offsetFn, Live: liveSink}
			err = server.Run(stopCh)
		} else {
			client := &udpflow.Client{Config: cfg, Logger: logger, Offset: offsetFn, Live: liveSink}
			err = client.Run(stopCh)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type buildArgs struct {
	serverMode   bool
	clientHost   string
	udpMode      bool
	port         int
	durationSecs float64
	totalSize    string
	packetSize   string
	rate         string
	interval     float64
	distPPS      string
	distLen      string
	distBW       string
	bwResetSecs  float64
	structured   bool
	oneShot      bool
	bindAddr     string
	v6           bool
	printPayload bool
	tos          int
	liveAddr     string
}

// checkFamilyMatch rejects an address literal whose family contradicts -6,
// spec §6's "address-family mismatch between -6 and -B/-c" rejection.
// Hostnames (anything that doesn't parse as a literal IP) are left to DNS
// resolution and are not checked here.
func checkFamilyMatch(family config.Family, addr string) error {
	if addr == "" {
		return nil
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	isV4 := ip.To4() != nil
	if family == config.FamilyV6 && isV4 {
		return fmt.Errorf("flowgen: -6 requested but %q is an IPv4 literal", addr)
	}
	if family == config.FamilyV4 && !isV4 {
		return fmt.Errorf("flowgen: IPv6 literal %q requires -6", addr)
	}
	return nil
}

// buildConfig resolves CLI flags, an optional profile's defaults, and
// FlowConfig's own invariants into one validated FlowConfig, spec §3/§6.
func buildConfig(a buildArgs, profile *config.Profile) (*config.FlowConfig, error) {
	if a.serverMode == (a.clientHost != "") {
		return nil, fmt.Errorf("flowgen: exactly one of -s or -c HOST is required")
	}

	role := config.RoleServer
	if a.clientHost != "" {
		role = config.RoleClient
	}
	transport := config.TransportTCP
	if a.udpMode {
		transport = config.TransportUDP
	}
	family := config.FamilyV4
	if a.v6 {
		family = config.FamilyV6
	}
	if err := checkFamilyMatch(family, a.clientHost); err != nil {
		return nil, err
	}
	if err := checkFamilyMatch(family, a.bindAddr); err != nil {
		return nil, err
	}

	packetSizeStr := a.packetSize
	rateStr := a.rate
	structured := a.structured
	oneShot := a.oneShot
	bwResetSecs := a.bwResetSecs
	tos := a.tos
	liveAddr := a.liveAddr
	distPPS := distribution.Tag(a.distPPS)
	distLen := distribution.Tag(a.distLen)
	distBW := distribution.Tag(a.distBW)
	interval := a.interval

	if profile != nil {
		if profile.PacketSize != nil && a.packetSize == "1400" {
			packetSizeStr = fmt.Sprintf("%d", *profile.PacketSize)
		}
		if profile.Bandwidth != nil && a.rate == "" {
			rateStr = *profile.Bandwidth
		}
		if profile.Interval != nil && a.interval == 1 {
			interval = time.Duration(*profile.Interval).Seconds()
		}
		if profile.DistPPS != nil && a.distPPS == "" {
			distPPS = distribution.Tag(*profile.DistPPS)
		}
		if profile.DistLen != nil && a.distLen == "" {
			distLen = distribution.Tag(*profile.DistLen)
		}
		if profile.DistBW != nil && a.distBW == "" {
			distBW = distribution.Tag(*profile.DistBW)
		}
		if profile.BandwidthResetInterval != nil && a.bwResetSecs == 0 {
			bwResetSecs = time.Duration(*profile.BandwidthResetInterval).Seconds()
		}
		if profile.Structured != nil && !a.structured {
			structured = *profile.Structured
		}
		if profile.OneShot != nil && !a.oneShot {
			oneShot = *profile.OneShot
		}
		if profile.TOS != nil && a.tos == 0 {
			tos = *profile.TOS
		}
		if profile.LiveAddr != nil && a.liveAddr == "" {
			liveAddr = *profile.LiveAddr
		}
	}

	packetSize, err := units.ParseBytes(packetSizeStr)
	if err != nil {
		return nil, fmt.Errorf("flowgen: -l: %w", err)
	}
	var rateBps float64
	if rateStr != "" {
		bps, err := units.ParseBitsPerSecond(rateStr)
		if err != nil {
			return nil, fmt.Errorf("flowgen: -b: %w", err)
		}
		rateBps = float64(bps)
	}
	var totalSizeBytes uint64
	if a.totalSize != "" {
		totalSizeBytes, err = units.ParseBytes(a.totalSize)
		if err != nil {
			return nil, fmt.Errorf("flowgen: -n: %w", err)
		}
	}

	return config.NewFlowConfig(config.FlowConfig{
		Transport: transport, Role: role, PeerHost: a.clientHost, BindAddr: a.bindAddr,
		Port: a.port, Family: family,
		Duration:  time.Duration(a.durationSecs * float64(time.Second)),
		TotalSize: totalSizeBytes,

		PacketSize: int(packetSize), RateBps: rateBps, IntervalSeconds: interval,

		DistPPS: distPPS, DistLen: distLen, DistBW: distBW,
		BandwidthResetInterval: time.Duration(bwResetSecs * float64(time.Second)),

		Structured: structured, OneShot: oneShot, PrintPayload: a.printPayload,
		TOS: byte(tos), LiveAddr: liveAddr,
	})
}
