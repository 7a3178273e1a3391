// Package trace runs one traceroute from start to termination through
// externally-pumped Poll calls, enriching each responding hop with
// reverse DNS and ASN/PeeringDB metadata.
package trace

import (
	"fmt"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonsson/ktr/internal/asnnum"
	"github.com/jonsson/ktr/internal/metrics"
	"github.com/jonsson/ktr/internal/peeringdb"
	"github.com/jonsson/ktr/internal/rdns"
	"github.com/jonsson/ktr/internal/traceroute"
	"github.com/jonsson/ktr/internal/whois"
)

const maxHopSlots = 255

// Channel is the subset of *traceroute.Channel a Trace needs: send one
// probe, and poll for the next captured reply. Accepting this instead
// of the concrete type keeps Trace testable without a live capture
// device.
type Channel interface {
	SendEcho(dst net.IP, ttl uint8, id traceroute.PacketId) error
	Poll() (*traceroute.Result, error)
}

// PeeringDB is the one lookup a Trace needs from *peeringdb.Manager.
type PeeringDB interface {
	NetworkByASN(asn asnnum.Asn) (*peeringdb.Network, error)
}

// ErrorKind distinguishes the design-level error kinds from spec §7.
type ErrorKind int

const (
	ErrTraceroute ErrorKind = iota
	ErrAsnLookup
	ErrRdns
	ErrPeeringDb
)

// Error wraps a design-level ErrorKind with the underlying cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrTraceroute:
		return fmt.Sprintf("traceroute error: %v", e.Err)
	case ErrAsnLookup:
		return fmt.Sprintf("ASN lookup error: %v", e.Err)
	case ErrRdns:
		return fmt.Sprintf("reverse DNS lookup error: %v", e.Err)
	case ErrPeeringDb:
		return fmt.Sprintf("PeeringDB search error: %v", e.Err)
	default:
		return fmt.Sprintf("trace error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// TraceConfig is the immutable per-trace policy.
type TraceConfig struct {
	MaxHops            uint8
	WaitTimePerHop     time.Duration
	RetryFrequency     time.Duration
	DestinationTimeout time.Duration
	CompletionTimeout  time.Duration
	AsnCacheSize       int
}

// NetworkInfo is the ASN plus (if found) its PeeringDB network record.
type NetworkInfo struct {
	Asn     asnnum.Asn
	Network *peeringdb.Network
}

// HopKind tags which variant a Hop currently holds.
type HopKind int

const (
	HopUnused HopKind = iota
	HopPending
	HopFindingAsn
	HopDone
)

// Hop is one slot of a trace's hop buffer. Only the fields relevant to
// Kind are meaningful; this mirrors the tagged union the design was
// ported from rather than splitting into separate types, since all
// four variants live together in one fixed-size buffer.
type Hop struct {
	Kind HopKind

	// Pending
	Id traceroute.PacketId

	// FindingAsn, Done
	IP net.IP

	// FindingAsn
	Finder *whois.AsnFinder

	// Done
	Hostname    *string
	NetworkInfo *NetworkInfo
}

// TerminationReason is why a trace stopped polling for more work.
type TerminationReason int

const (
	ReasonDone TerminationReason = iota
	ReasonDestinationUnreachable
	ReasonDestinationTimeout
	ReasonCompletionTimeout
)

func (r TerminationReason) String() string {
	switch r {
	case ReasonDone:
		return "Done"
	case ReasonDestinationUnreachable:
		return "DestinationUnreachable"
	case ReasonDestinationTimeout:
		return "DestinationTimeout"
	case ReasonCompletionTimeout:
		return "CompletionTimeout"
	default:
		return "Unknown"
	}
}

type stateKind int

const (
	stateNotStarted stateKind = iota
	stateOnHop
	stateSentAllRequests
	stateReachedDestination
	stateTerminated
)

type traceState struct {
	kind      stateKind
	when      time.Time
	lastRetry time.Time
	index     uint8
	reason    TerminationReason
}

// Trace runs one traceroute to dstIP, driven entirely by repeated
// calls to Poll (or to its two halves, AdvanceTime and ApplyPacket).
// Network access goes through the Channel and PeeringDB passed to
// those calls, the per-hop whois.AsnFinder each FindingAsn hop owns,
// and the reverse-DNS lookups (rdns.Lookup) made as hops become Done.
type Trace struct {
	dstIP    net.IP
	state    traceState
	config   TraceConfig
	hops     [maxHopSlots]Hop
	usedHops uint8

	// asnCache maps IP -> *asnnum.Asn; a stored nil pointer caches a
	// negative WHOIS result so it isn't re-looked-up on every hop.
	asnCache *lru.Cache[string, *asnnum.Asn]
}

// New builds a Trace in state NotStarted. It performs no I/O.
func New(dstIP net.IP, config TraceConfig) *Trace {
	cacheSize := config.AsnCacheSize
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, _ := lru.New[string, *asnnum.Asn](cacheSize)
	return &Trace{
		dstIP:  dstIP,
		state:  traceState{kind: stateNotStarted},
		config: config,
		// hops is left at its zero value, which is also HopUnused (0).
		asnCache: cache,
	}
}

// Hops returns the active prefix of the hop buffer.
func (t *Trace) Hops() []Hop {
	return t.hops[:t.usedHops]
}

// ToHops copies out the active prefix of the hop buffer.
func (t *Trace) ToHops() []Hop {
	out := make([]Hop, t.usedHops)
	copy(out, t.hops[:t.usedHops])
	return out
}

// AllHopsDone reports whether every used hop slot is Done.
func (t *Trace) AllHopsDone() bool {
	for _, h := range t.Hops() {
		if h.Kind != HopDone {
			return false
		}
	}
	return true
}

// Poll advances the state machine by one step, combining AdvanceTime
// and a single self-drained packet via ApplyPacket. Use this to drive
// one trace standalone; a Controller instead calls the two halves
// separately so it can share one capture read across every active
// trace rather than letting each trace drain the channel on its own.
func (t *Trace) Poll(channel Channel, pdb PeeringDB) (bool, *TerminationReason, error) {
	timeUpdated, reason, err := t.AdvanceTime(channel, pdb)
	if err != nil {
		return false, nil, err
	}
	if reason != nil {
		return timeUpdated, reason, nil
	}

	res, err := channel.Poll()
	if err != nil {
		return false, nil, wrapErr(ErrTraceroute, err)
	}
	packetUpdated, reason, err := t.ApplyPacket(res, channel, pdb)
	if err != nil {
		return false, nil, err
	}
	return timeUpdated || packetUpdated, reason, nil
}

// AdvanceTime performs whatever time-driven work is due right now:
// sending the first probe, advancing to the next hop once
// WaitTimePerHop has elapsed, issuing retries, declaring timeouts, and
// sweeping every in-flight ASN finder. It never reads the capture
// channel, only writes probes to it, so a Controller can give each
// active trace a round-robin turn here without any of them competing
// over which one gets to read the next captured packet.
func (t *Trace) AdvanceTime(channel Channel, pdb PeeringDB) (bool, *TerminationReason, error) {
	var updated bool
	var err error

	switch t.state.kind {
	case stateNotStarted:
		if err = t.startNextHop(0, channel); err != nil {
			return false, nil, err
		}
		updated = true

	case stateOnHop:
		if time.Since(t.state.when) > t.config.WaitTimePerHop {
			if err = t.startNextHop(t.state.index+1, channel); err != nil {
				return false, nil, err
			}
			updated = true
		}

	case stateSentAllRequests:
		switch {
		case time.Since(t.state.when) > t.config.DestinationTimeout:
			t.terminate(ReasonDestinationTimeout)
			updated = true
		case time.Since(t.state.lastRetry) > t.config.RetryFrequency:
			t.state.lastRetry = time.Now()
			if err = t.retryPing(channel); err != nil {
				return false, nil, err
			}
		}

	case stateReachedDestination:
		switch {
		case time.Since(t.state.when) > t.config.CompletionTimeout && !t.AllHopsDone():
			t.terminate(ReasonCompletionTimeout)
			updated = true
		case time.Since(t.state.lastRetry) > t.config.RetryFrequency:
			t.state.lastRetry = time.Now()
			if err = t.retryPing(channel); err != nil {
				return false, nil, err
			}
		case t.AllHopsDone():
			t.terminate(ReasonDone)
			updated = true
		}

	case stateTerminated:
		updated = true
	}

	if t.state.kind != stateTerminated {
		changed, err := t.pollFinders(pdb)
		if err != nil {
			return false, nil, err
		}
		updated = updated || changed
	}

	if t.state.kind == stateTerminated {
		reason := t.state.reason
		return updated, &reason, nil
	}
	return updated, nil, nil
}

// ApplyPacket processes one already-drained capture result (nil if
// there was none) against this trace's pending hops, then sweeps ASN
// finders the same way AdvanceTime does, so a trace that only ever
// gets offered packets (because others keep arriving) still makes
// WHOIS progress. A Controller drains one packet from the channel
// itself and offers that same result to every active trace via this
// method.
func (t *Trace) ApplyPacket(res *traceroute.Result, channel Channel, pdb PeeringDB) (bool, *TerminationReason, error) {
	updated, err := t.applyResult(res, channel, pdb)
	if err != nil {
		return false, nil, err
	}

	if t.state.kind != stateTerminated {
		changed, err := t.pollFinders(pdb)
		if err != nil {
			return false, nil, err
		}
		updated = updated || changed
	}

	if t.state.kind == stateTerminated {
		reason := t.state.reason
		return updated, &reason, nil
	}
	return updated, nil, nil
}

func (t *Trace) terminate(reason TerminationReason) {
	t.state = traceState{kind: stateTerminated, reason: reason}
}

// retryPing resends probes for every still-Pending hop at its original
// TTL and id.
func (t *Trace) retryPing(channel Channel) error {
	for index, hop := range t.Hops() {
		if hop.Kind != HopPending {
			continue
		}
		if err := channel.SendEcho(t.dstIP, uint8(index)+1, hop.Id); err != nil {
			return wrapErr(ErrTraceroute, err)
		}
	}
	return nil
}

// startNextHop begins probing slot index (TTL = index+1), unless
// index is already out of range, in which case it finalizes the set
// of sent requests instead.
func (t *Trace) startNextHop(index uint8, channel Channel) error {
	if int(index) >= int(t.config.MaxHops) {
		t.state = traceState{kind: stateSentAllRequests, when: time.Now(), lastRetry: time.Now()}
		return nil
	}

	var id traceroute.PacketId
	for unique := false; !unique; {
		id = traceroute.PacketId(randomPacketId())
		unique = true
		for _, h := range t.Hops() {
			if h.Kind == HopPending && h.Id == id {
				unique = false
				break
			}
		}
	}
	t.state = traceState{kind: stateOnHop, when: time.Now(), index: index}
	t.hops[index] = Hop{Kind: HopPending, Id: id}
	if index+1 > t.usedHops {
		t.usedHops = index + 1
	}
	if err := channel.SendEcho(t.dstIP, index+1, id); err != nil {
		return wrapErr(ErrTraceroute, err)
	}
	return nil
}

// pollFinders advances every FindingAsn hop's WHOIS poll by one step.
func (t *Trace) pollFinders(pdb PeeringDB) (bool, error) {
	var updated bool
	for i := range t.hops[:t.usedHops] {
		hop := &t.hops[i]
		if hop.Kind != HopFindingAsn {
			continue
		}
		changed, err := t.pollAsnFinder(hop, pdb)
		if err != nil {
			return false, err
		}
		updated = updated || changed
	}
	return updated, nil
}

// applyResult handles one capture result, or does nothing if res is nil.
func (t *Trace) applyResult(res *traceroute.Result, channel Channel, pdb PeeringDB) (bool, error) {
	if res == nil {
		return false, nil
	}

	switch res.Kind {
	case traceroute.IcmpReply, traceroute.IcmpTimeExceeded:
		return t.handleReply(res.Src, res.Id, channel, pdb)
	case traceroute.IcmpDestinationUnreachable:
		if res.Src.Equal(t.dstIP) {
			t.terminate(ReasonDestinationUnreachable)
			return true, nil
		}
		return false, nil
	default:
		return false, nil
	}
}

func (t *Trace) handleReply(src net.IP, id traceroute.PacketId, channel Channel, pdb PeeringDB) (bool, error) {
	hopIndex := -1
	for i, hop := range t.Hops() {
		if hop.Kind == HopPending && hop.Id == id {
			hopIndex = i
			break
		}
	}
	if hopIndex < 0 {
		return false, nil
	}

	isDestination := src.Equal(t.dstIP)

	newHop, err := t.resolveHop(src, pdb)
	if err != nil {
		return false, err
	}
	t.hops[hopIndex] = newHop

	if isDestination {
		t.state = traceState{kind: stateReachedDestination, when: time.Now(), lastRetry: time.Now()}
		return true, nil
	}

	if t.state.kind == stateOnHop && int(t.state.index) == hopIndex {
		if err := t.startNextHop(t.state.index+1, channel); err != nil {
			return false, err
		}
	}

	return true, nil
}

// resolveHop builds the Hop a reply from src transitions to: Done
// immediately for non-public addresses or cache hits, FindingAsn
// otherwise.
func (t *Trace) resolveHop(src net.IP, pdb PeeringDB) (Hop, error) {
	if !isPublic(src) {
		hostname, err := rdns.Lookup(src)
		if err != nil {
			return Hop{}, wrapErr(ErrRdns, err)
		}
		return Hop{Kind: HopDone, IP: src, Hostname: hostname}, nil
	}

	if cached, ok := t.asnCache.Get(src.String()); ok {
		metrics.AsnCacheHits.Inc()
		hostname, err := rdns.Lookup(src)
		if err != nil {
			return Hop{}, wrapErr(ErrRdns, err)
		}
		var info *NetworkInfo
		if cached != nil {
			var err error
			info, err = t.networkInfo(*cached, pdb)
			if err != nil {
				return Hop{}, err
			}
		}
		return Hop{Kind: HopDone, IP: src, Hostname: hostname, NetworkInfo: info}, nil
	}

	metrics.AsnCacheMisses.Inc()
	finder, err := whois.Lookup(src)
	if err != nil {
		return Hop{}, wrapErr(ErrAsnLookup, err)
	}
	return Hop{Kind: HopFindingAsn, IP: src, Finder: finder}, nil
}

func (t *Trace) pollAsnFinder(hop *Hop, pdb PeeringDB) (bool, error) {
	res, err := hop.Finder.Poll()
	if err != nil {
		return false, wrapErr(ErrAsnLookup, err)
	}

	switch res.State {
	case whois.Found:
		asn := res.Asn
		t.asnCache.Add(hop.IP.String(), &asn)
		hostname, err := rdns.Lookup(hop.IP)
		if err != nil {
			return false, wrapErr(ErrRdns, err)
		}
		info, err := t.networkInfo(asn, pdb)
		if err != nil {
			return false, err
		}
		*hop = Hop{Kind: HopDone, IP: hop.IP, Hostname: hostname, NetworkInfo: info}
		return true, nil

	case whois.NotFound:
		t.asnCache.Add(hop.IP.String(), nil)
		hostname, err := rdns.Lookup(hop.IP)
		if err != nil {
			return false, wrapErr(ErrRdns, err)
		}
		*hop = Hop{Kind: HopDone, IP: hop.IP, Hostname: hostname}
		return true, nil

	default: // whois.Pending
		return false, nil
	}
}

func (t *Trace) networkInfo(asn asnnum.Asn, pdb PeeringDB) (*NetworkInfo, error) {
	network, err := pdb.NetworkByASN(asn)
	if err != nil {
		return nil, wrapErr(ErrPeeringDb, err)
	}
	return &NetworkInfo{Asn: asn, Network: network}, nil
}

// isPublic reports whether ip is routable and not reserved for
// private, loopback, or other special-use purposes.
func isPublic(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		return !(isPrivateV4(v4) ||
			v4.IsLoopback() ||
			isBroadcastV4(v4) ||
			v4.IsMulticast() ||
			v4.IsLinkLocalUnicast() ||
			v4.IsUnspecified() ||
			isDocumentationV4(v4))
	}
	return !(ip.IsLoopback() || ip.IsMulticast() || ip.IsUnspecified())
}

func isPrivateV4(ip net.IP) bool {
	return ip[0] == 10 ||
		(ip[0] == 172 && ip[1]&0xf0 == 16) ||
		(ip[0] == 192 && ip[1] == 168)
}

func isBroadcastV4(ip net.IP) bool {
	return ip[0] == 255 && ip[1] == 255 && ip[2] == 255 && ip[3] == 255
}

func isDocumentationV4(ip net.IP) bool {
	switch {
	case ip[0] == 192 && ip[1] == 0 && ip[2] == 2:
		return true // TEST-NET-1
	case ip[0] == 198 && ip[1] == 51 && ip[2] == 100:
		return true // TEST-NET-2
	case ip[0] == 203 && ip[1] == 0 && ip[2] == 113:
		return true // TEST-NET-3
	default:
		return false
	}
}
