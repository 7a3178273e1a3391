package agent

import (
	"time"

	"github.com/jonsson/ktr/internal/trace"
)

// DefaultTraceConfig is the policy every trace the agent starts uses.
// Values match the reference CLI's own defaults.
var DefaultTraceConfig = trace.TraceConfig{
	MaxHops:            64,
	WaitTimePerHop:     150 * time.Millisecond,
	RetryFrequency:     time.Second,
	DestinationTimeout: 3 * time.Second,
	CompletionTimeout:  4 * time.Second,
	AsnCacheSize:       8192,
}

// DefaultMaxConcurrentTraces caps how many traces cmd/ktr-agent drives
// at once unless overridden by its --max-concurrent-traces flag.
const DefaultMaxConcurrentTraces = 64
