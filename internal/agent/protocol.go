// Package agent implements the line-delimited JSON protocol the CLI
// binary speaks over stdin/stdout: start a trace, look up an ASN, and
// receive trace lifecycle events as they happen. Framing lives here
// rather than in internal/controller since it is a consumer-side
// concern, not part of the core's contract.
package agent

import (
	"net"

	"github.com/jonsson/ktr/internal/asnnum"
	"github.com/jonsson/ktr/internal/controller"
	"github.com/jonsson/ktr/internal/peeringdb"
	"github.com/jonsson/ktr/internal/trace"
)

// CommandId is echoed back on every response to a command, letting a
// caller correlate replies that may arrive out of order relative to
// asynchronous TraceUpdate/TraceDone events.
type CommandId uint64

// Command is one line of caller input.
type Command struct {
	Kind      string    `json:"kind"`
	CommandId CommandId `json:"commandId"`

	// StartTrace
	IP net.IP `json:"ip,omitempty"`

	// LookupAsn
	Asn asnnum.Asn `json:"asn,omitempty"`
}

const (
	CmdStartTrace = "StartTrace"
	CmdLookupAsn  = "LookupAsn"
)

// Output is one line written to stdout: either a direct reply to a
// command, or an unsolicited controller event.
type Output struct {
	Kind      string                `json:"kind"`
	CommandId *CommandId            `json:"commandId,omitempty"` // StartedTrace, LookedUpAsn, CommandError
	TraceId   *controller.TraceId   `json:"traceId,omitempty"`   // StartedTrace
	Network   *peeringdbNetworkJSON `json:"network,omitempty"`   // LookedUpAsn
	Error     string                `json:"error,omitempty"`     // CommandError

	// TraceUpdate, TraceDone
	ID   *controller.TraceId `json:"id,omitempty"`
	Hops []hopJSON           `json:"hops,omitempty"`
	Done *doneJSON           `json:"done,omitempty"`
}

const (
	OutStartedTrace = "StartedTrace"
	OutLookedUpAsn  = "LookedUpAsn"
	OutTraceUpdate  = "TraceUpdate"
	OutTraceDone    = "TraceDone"
	OutCommandError = "CommandError"
)

type doneJSON struct {
	Kind   string `json:"kind"` // "Termination" or "Error"
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

func startedTrace(id CommandId, traceID controller.TraceId) Output {
	return Output{Kind: OutStartedTrace, CommandId: &id, TraceId: &traceID}
}

func commandError(id CommandId, err error) Output {
	return Output{Kind: OutCommandError, CommandId: &id, Error: err.Error()}
}

func lookedUpAsn(id CommandId, network *peeringdb.Network) Output {
	return Output{Kind: OutLookedUpAsn, CommandId: &id, Network: toNetworkJSON(network)}
}

func fromEvent(ev *controller.Event) Output {
	out := Output{ID: &ev.ID, Hops: toHopsJSON(ev.Hops)}
	switch ev.Kind {
	case controller.EventTraceUpdate:
		out.Kind = OutTraceUpdate
	case controller.EventTraceDone:
		out.Kind = OutTraceDone
		out.Done = toDoneJSON(ev.Done)
	}
	return out
}

func toDoneJSON(d controller.Done) *doneJSON {
	switch d.Kind {
	case controller.DoneError:
		return &doneJSON{Kind: "Error", Error: d.Err.Error()}
	default:
		return &doneJSON{Kind: "Termination", Reason: d.Reason.String()}
	}
}

// hopJSON mirrors trace.Hop as a tagged JSON object, since Go structs
// don't serialize tagged unions the way the design's Hop variants do.
type hopJSON struct {
	Kind        string                `json:"kind"`
	IP          net.IP                `json:"ip,omitempty"`
	Hostname    *string               `json:"hostname,omitempty"`
	Asn         *asnnum.Asn           `json:"asn,omitempty"`
	NetworkInfo *peeringdbNetworkJSON `json:"network,omitempty"`
}

func toHopsJSON(hops []trace.Hop) []hopJSON {
	out := make([]hopJSON, len(hops))
	for i, h := range hops {
		out[i] = toHopJSON(h)
	}
	return out
}

func toHopJSON(h trace.Hop) hopJSON {
	switch h.Kind {
	case trace.HopPending:
		return hopJSON{Kind: "Pending"}
	case trace.HopFindingAsn:
		return hopJSON{Kind: "FindingAsn", IP: h.IP}
	case trace.HopDone:
		out := hopJSON{Kind: "Done", IP: h.IP, Hostname: h.Hostname}
		if h.NetworkInfo != nil {
			asn := h.NetworkInfo.Asn
			out.Asn = &asn
			out.NetworkInfo = toNetworkJSON(h.NetworkInfo.Network)
		}
		return out
	default:
		return hopJSON{Kind: "Unused"}
	}
}
