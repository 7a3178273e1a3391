package agent

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/jonsson/ktr/internal/controller"
	"github.com/jonsson/ktr/internal/metrics"
)

// Loop reads Commands from lines and writes Outputs to w, stepping the
// controller's non-blocking TryNext between command reads. Lines is
// expected to be fed by a separate stdin-reading goroutine, the only
// concurrency at the agent boundary; the controller itself is driven
// exclusively from this one goroutine, per the core's single-threaded
// cooperative design.
func Loop(lines <-chan string, w io.Writer, c *controller.Controller) {
	enc := json.NewEncoder(w)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleLine(line, enc, c)
		default:
			if ev := c.TryNext(); ev != nil {
				if ev.Kind == controller.EventTraceDone {
					metrics.TracesDone.WithLabelValues(doneReasonLabel(ev.Done)).Inc()
				}
				metrics.TracesActive.Set(float64(c.Active()))
				writeOutput(enc, fromEvent(ev))
			} else {
				// Nothing to do; avoid a hot spin when every trace is
				// idle between capture reads.
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
}

func handleLine(line string, enc *json.Encoder, c *controller.Controller) {
	var cmd Command
	if err := json.Unmarshal([]byte(line), &cmd); err != nil {
		log.Printf("agent: failed to parse command: %v", err)
		return
	}

	switch cmd.Kind {
	case CmdStartTrace:
		id, err := c.StartTrace(cmd.IP, DefaultTraceConfig)
		if err != nil {
			writeOutput(enc, commandError(cmd.CommandId, err))
			return
		}
		metrics.TracesStarted.Inc()
		metrics.TracesActive.Set(float64(c.Active()))
		writeOutput(enc, startedTrace(cmd.CommandId, id))
	case CmdLookupAsn:
		network := c.LookupAsn(cmd.Asn)
		writeOutput(enc, lookedUpAsn(cmd.CommandId, network))
	default:
		log.Printf("agent: unrecognised command kind %q", cmd.Kind)
	}
}

func doneReasonLabel(d controller.Done) string {
	if d.Kind == controller.DoneError {
		return "Error"
	}
	return d.Reason.String()
}

func writeOutput(enc *json.Encoder, out Output) {
	if err := enc.Encode(out); err != nil {
		log.Printf("agent: failed to write output: %v", err)
	}
}

// ReadLines feeds each line of r into the returned channel, closing it
// on EOF or any scan error. The reading runs in a goroutine that
// ReadLines starts itself; it is the one blocking boundary in the agent.
func ReadLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			out <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("agent: stdin read error: %v", err)
		}
	}()
	return out
}
