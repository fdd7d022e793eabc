// Command flowrelay runs the bidirectional IPv4<->IPv6 stateful UDP relay,
// spec §4.9.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/logging"
	"github.com/nimblewing/flowgen/internal/relay"
	"github.com/nimblewing/flowgen/internal/version"
)

func main() {
	var (
		ipv4Addr     = flag.String("ipv4_addr", "0.0.0.0", "IPv4 listen address")
		ipv4Port     = flag.Int("ipv4_port", 0, "IPv4 listen port, 0 to disable the v4 side")
		ipv6Addr     = flag.String("ipv6_addr", "::", "IPv6 listen address")
		ipv6Port     = flag.Int("ipv6_port", 0, "IPv6 listen port, 0 to disable the v6 side")
		reserveRate  = flag.Float64("reserve_rate", 1.0, "fraction of payload bytes forwarded unchanged, [0,1]")
		newRate      = flag.Float64("new_rate", 0.0, "length of appended new_content as a fraction of payload length, [0,1]")
		newContent   = flag.String("new_content", "", "bytes repeated and truncated to form the appended data")
		socatTCPCmd  = flag.String("socat-tcp-cmd", "", "optional external TCP forwarder command to supervise alongside the UDP relay")
		verbose      = flag.Bool("verbose", false, "verbose (debug-level) logging")
		printVersion = flag.Bool("v", false, "print version and exit")
	)
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Version)
		return
	}

	logger := logging.NewWithLevel(*verbose)

	cfg, err := config.NewRelayConfig(config.RelayConfig{
		IPv4Addr: *ipv4Addr, IPv4Port: *ipv4Port,
		IPv6Addr: *ipv6Addr, IPv6Port: *ipv6Port,
		ReserveRate: *reserveRate, NewRate: *newRate, NewContent: []byte(*newContent),
		SocatTCPCmd: *socatTCPCmd, Verbose: *verbose,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var tcpFwd *relay.TCPForwarder
	if cfg.SocatTCPCmd != "" {
		tcpFwd, err = relay.StartTCPForwarder(cfg.SocatTCPCmd, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer tcpFwd.Close()
	}

	r, err := relay.Start(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		close(stopCh)
	}()

	if err := r.Run(stopCh); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
