// Package warmping offers an optional plain ICMP reachability check a
// caller can run before starting a trace, so a dead destination fails
// fast instead of riding out the full destination timeout.
package warmping

import (
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Result is the outcome of one warm-ping attempt.
type Result struct {
	Success bool
	RTT     time.Duration
	Error   error
}

// Pinger sends a short burst of plain ICMP echoes to a destination,
// independent of the raw traceroute channel.
type Pinger struct {
	timeout    time.Duration
	count      int
	privileged bool
}

// NewPinger builds a Pinger with a per-destination timeout. privileged
// selects a raw ICMP socket (needs CAP_NET_RAW) over the unprivileged
// datagram-socket fallback.
func NewPinger(timeout time.Duration, privileged bool) *Pinger {
	return &Pinger{
		timeout:    timeout,
		count:      3,
		privileged: privileged,
	}
}

// Ping runs a blocking reachability check against ip. It does not
// touch the trace state machine or the raw traceroute channel; this
// is a deliberately separate pre-check.
func (p *Pinger) Ping(ip string) Result {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return Result{Success: false, Error: err}
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(p.privileged)

	if err := pinger.Run(); err != nil {
		return Result{Success: false, Error: err}
	}

	stats := pinger.Statistics()
	return Result{
		Success: stats.PacketsRecv > 0,
		RTT:     stats.AvgRtt,
	}
}
