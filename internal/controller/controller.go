// Package controller multiplexes any number of concurrent traces over
// the one shared traceroute channel, stepping them cooperatively from
// a single goroutine rather than one-goroutine-per-trace.
package controller

import (
	"errors"
	"log"
	"net"

	"github.com/jonsson/ktr/internal/asnnum"
	"github.com/jonsson/ktr/internal/peeringdb"
	"github.com/jonsson/ktr/internal/trace"
)

// ErrTooManyTraces is returned by StartTrace when the controller is
// already driving its configured maximum number of concurrent traces.
var ErrTooManyTraces = errors.New("controller: too many concurrent traces")

// TraceId indexes a trace's slot. Slots are reused: once a trace
// finishes its index is free again, and StartTrace always hands out
// the lowest free index.
type TraceId int

// EventKind tags which variant an Event currently holds.
type EventKind int

const (
	EventTraceUpdate EventKind = iota
	EventTraceDone
)

// DoneKind distinguishes a clean termination from a trace that
// aborted on error; either way the slot is freed and TryNext never
// propagates the error up as a hard failure.
type DoneKind int

const (
	DoneTermination DoneKind = iota
	DoneError
)

// Done describes why a TraceDone event's trace stopped.
type Done struct {
	Kind      DoneKind
	Reason    trace.TerminationReason // DoneTermination
	Err       error                   // DoneError
}

// Event is what one TryNext call reports: either a trace's hops
// changed (TraceUpdate, still running), or a trace finished and its
// slot was freed (TraceDone).
type Event struct {
	Kind EventKind
	ID   TraceId
	Hops []trace.Hop
	Done Done // EventTraceDone
}

// Controller owns a sparse set of trace slots plus the shared channel
// and PeeringDB lookup every trace polls against.
type Controller struct {
	channel trace.Channel
	pdb     trace.PeeringDB

	traces        []*trace.Trace
	nextID        int
	iterCursor    int
	maxConcurrent int
}

// New builds a Controller driving traces over channel, enriching hops
// via pdb. maxConcurrent caps how many trace slots can be occupied at
// once; StartTrace rejects new traces past that cap. A maxConcurrent
// of 0 means unlimited.
func New(channel trace.Channel, pdb trace.PeeringDB, maxConcurrent int) *Controller {
	return &Controller{channel: channel, pdb: pdb, maxConcurrent: maxConcurrent}
}

// StartTrace creates a new trace to dstIP and returns its slot id,
// reusing the lowest free slot if one exists. It returns
// ErrTooManyTraces without creating a trace if the controller is
// already at its configured maxConcurrent.
func (c *Controller) StartTrace(dstIP net.IP, config trace.TraceConfig) (TraceId, error) {
	if c.maxConcurrent > 0 && c.Active() >= c.maxConcurrent {
		return 0, ErrTooManyTraces
	}

	t := trace.New(dstIP, config)

	if c.nextID < len(c.traces) {
		id := c.nextID
		c.traces[id] = t
		for i := id + 1; i <= len(c.traces); i++ {
			if i == len(c.traces) || c.traces[i] == nil {
				c.nextID = i
				break
			}
		}
		return TraceId(id), nil
	}

	c.traces = append(c.traces, t)
	c.nextID = len(c.traces)
	return TraceId(len(c.traces) - 1), nil
}

// Active reports how many trace slots are currently occupied.
func (c *Controller) Active() int {
	n := 0
	for _, t := range c.traces {
		if t != nil {
			n++
		}
	}
	return n
}

// TryNext performs one non-blocking step: it drains at most one
// packet from the channel and offers it to every active trace, and if
// nothing there produced an event, advances traces with non-packet
// work (sending due probes, retries, timeouts, ASN-finder polling) in
// round-robin order starting at the cursor. The cursor moves past each
// slot visited, so the next call resumes just after the trace that
// reported, and a call that visits every slot without an event leaves
// it where it started; every active trace gets a turn within one full
// cycle. It returns nil when there is nothing to report this round.
func (c *Controller) TryNext() *Event {
	if len(c.traces) == 0 {
		return nil
	}

	if res, err := c.channel.Poll(); err != nil {
		log.Printf("controller: error polling traceroute channel: %v", err)
	} else if res != nil {
		for id, t := range c.traces {
			if t == nil {
				continue
			}
			updated, reason, err := t.ApplyPacket(res, c.channel, c.pdb)
			if ev := c.handlePollResult(TraceId(id), updated, reason, err); ev != nil {
				return ev
			}
		}
	}

	if len(c.traces) == 0 {
		return nil
	}

	startCursor := c.iterCursor
	for {
		if c.iterCursor >= len(c.traces) {
			c.iterCursor = 0
		}
		if t := c.traces[c.iterCursor]; t != nil {
			updated, reason, err := t.AdvanceTime(c.channel, c.pdb)
			id := TraceId(c.iterCursor)
			c.iterCursor = (c.iterCursor + 1) % len(c.traces)
			if ev := c.handlePollResult(id, updated, reason, err); ev != nil {
				return ev
			}
		} else {
			c.iterCursor = (c.iterCursor + 1) % len(c.traces)
		}

		if c.iterCursor == startCursor {
			return nil
		}
	}
}

// handlePollResult turns one trace's poll outcome into an Event,
// freeing its slot on termination or error. Returns nil if the trace
// produced no observable change.
func (c *Controller) handlePollResult(id TraceId, updated bool, reason *trace.TerminationReason, err error) *Event {
	if err != nil {
		hops := c.takeHops(id)
		c.freeSlot(id)
		return &Event{Kind: EventTraceDone, ID: id, Hops: hops, Done: Done{Kind: DoneError, Err: err}}
	}
	if !updated {
		return nil
	}
	if reason != nil {
		hops := c.takeHops(id)
		c.freeSlot(id)
		return &Event{Kind: EventTraceDone, ID: id, Hops: hops, Done: Done{Kind: DoneTermination, Reason: *reason}}
	}
	return &Event{Kind: EventTraceUpdate, ID: id, Hops: c.traces[id].ToHops()}
}

// takeHops snapshots a slot's hops before it is freed; call before
// freeSlot clears the slice's backing trace.
func (c *Controller) takeHops(id TraceId) []trace.Hop {
	return c.traces[id].ToHops()
}

// LookupAsn is the agent's direct PeeringDB lookup path, outside of
// any trace: errors are logged and degrade to "not found" rather than
// propagating, since this is a read-only convenience query, not part
// of a trace's own error-handling contract.
func (c *Controller) LookupAsn(asn asnnum.Asn) *peeringdb.Network {
	network, err := c.pdb.NetworkByASN(asn)
	if err != nil {
		log.Printf("controller: ASN lookup error for %s: %v", asn, err)
		return nil
	}
	return network
}

func (c *Controller) freeSlot(id TraceId) {
	c.traces[id] = nil
	if int(id) < c.nextID {
		c.nextID = int(id)
	}
}
