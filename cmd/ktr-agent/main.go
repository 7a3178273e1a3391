// Command ktr-agent drives one traceroute-capable network interface and
// speaks the line-delimited JSON command/output protocol over stdin and
// stdout, as described by spec.md's agent boundary. It owns exactly one
// goroutine for the core (controller.Controller, every Trace, every
// WHOIS resolver); besides it, one goroutine reads stdin, and the
// optional metrics listener runs in goroutines of its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonsson/ktr/internal/agent"
	"github.com/jonsson/ktr/internal/controller"
	"github.com/jonsson/ktr/internal/peeringdb"
	"github.com/jonsson/ktr/internal/traceroute"
	"github.com/jonsson/ktr/internal/warmping"
)

// Config holds the agent's process-level configuration.
type Config struct {
	InterfaceName       string
	IPv6Enable          bool
	PeeringDBPath       string
	MaxConcurrentTraces int
	MetricsAddr         string // empty disables the metrics listener
	WarmPing            bool
	WarmPingHost        string
	Privileged          bool
}

func main() {
	cfg := parseConfig()

	interfaceName, err := traceroute.InterfaceByName(cfg.InterfaceName)
	if err != nil {
		log.Fatalf("interface %s does not exist: %v", cfg.InterfaceName, err)
	}

	channel, err := traceroute.NewChannel(interfaceName, cfg.IPv6Enable)
	if err != nil {
		log.Fatalf("failed to initialize traceroute networking (do you need to use sudo?): %v", err)
	}
	defer channel.Close()

	pdb, err := peeringdb.Open(cfg.PeeringDBPath)
	if err != nil {
		log.Fatalf("failed to open PeeringDB database: %v", err)
	}
	defer pdb.Close()

	if cfg.WarmPing && cfg.WarmPingHost != "" {
		pinger := warmping.NewPinger(3*time.Second, cfg.Privileged)
		result := pinger.Ping(cfg.WarmPingHost)
		if !result.Success {
			log.Printf("warm ping to %s did not succeed (%v); continuing anyway", cfg.WarmPingHost, result.Error)
		} else {
			log.Printf("warm ping to %s succeeded in %s", cfg.WarmPingHost, result.RTT)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	c := controller.New(channel, pdb, cfg.MaxConcurrentTraces)
	lines := agent.ReadLines(os.Stdin)

	done := make(chan struct{})
	go func() {
		agent.Loop(lines, os.Stdout, c)
		close(done)
	}()

	select {
	case <-ctx.Done():
		log.Println("shutting down")
	case <-done:
		log.Println("stdin closed, agent exiting")
	}
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown error: %v", err)
		}
	}()

	log.Printf("metrics listening on %s", addr)
}

func parseConfig() Config {
	cfg := Config{}

	flag.StringVar(&cfg.InterfaceName, "i", "", "Name of the network interface to use for traceroute")
	flag.StringVar(&cfg.InterfaceName, "interface-name", "", "Name of the network interface to use for traceroute")
	flag.BoolVar(&cfg.IPv6Enable, "ipv6", getEnvBool("KTR_IPV6_ENABLE", true), "Enable IPv6 traceroute capture alongside IPv4")
	flag.BoolVar(&cfg.IPv6Enable, "ipv6-enable", getEnvBool("KTR_IPV6_ENABLE", true), "Enable IPv6 traceroute capture alongside IPv4")
	flag.StringVar(&cfg.PeeringDBPath, "d", "", "Path to the local PeeringDB SQLite database")
	flag.StringVar(&cfg.PeeringDBPath, "peeringdb-path", "", "Path to the local PeeringDB SQLite database")
	flag.IntVar(&cfg.MaxConcurrentTraces, "max-concurrent-traces", getEnvInt("KTR_MAX_CONCURRENT_TRACES", agent.DefaultMaxConcurrentTraces), "Maximum number of traces running at once (0 = unlimited)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getEnv("KTR_METRICS_ADDR", ""), "Address to serve Prometheus metrics on (empty disables it)")
	flag.BoolVar(&cfg.WarmPing, "warm-ping", getEnvBool("KTR_WARM_PING", false), "Send a plain ICMP reachability check before accepting commands")
	flag.StringVar(&cfg.WarmPingHost, "warm-ping-host", getEnv("KTR_WARM_PING_HOST", "1.1.1.1"), "Host to warm-ping against when --warm-ping is set")
	flag.BoolVar(&cfg.Privileged, "privileged", getEnvBool("KTR_PRIVILEGED", false), "Use a privileged (raw socket) ICMP ping for --warm-ping")

	flag.Parse()

	if cfg.InterfaceName == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -i/--interface-name")
		flag.Usage()
		os.Exit(2)
	}
	if cfg.PeeringDBPath == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: -d/--peeringdb-path")
		flag.Usage()
		os.Exit(2)
	}

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		result := 0
		for _, c := range val {
			if c < '0' || c > '9' {
				return defaultVal
			}
			result = result*10 + int(c-'0')
		}
		return result
	}
	return defaultVal
}
