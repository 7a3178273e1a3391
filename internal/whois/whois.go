// Package whois races several WHOIS servers over non-blocking TCP to
// resolve a router IP to its announcing ASN, following refer/whois
// redirects and returning the first definitive answer.
package whois

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jonsson/ktr/internal/asnnum"
	"github.com/jonsson/ktr/internal/metrics"
)

const (
	whoisPort      = "43"
	connectTimeout = 3 * time.Second
	pollDeadline   = 50 * time.Millisecond
)

var defaultServers = [3]string{"whois.iana.org", "whois.radb.net", "whois.cymru.com"}

// State is the outcome of one sub-source or of the aggregate resolver.
type State int

const (
	Pending State = iota
	Found
	NotFound
)

// Result is what AsnFinder.Poll returns on each call.
type Result struct {
	State State
	Asn   asnnum.Asn
}

// server is one in-flight WHOIS connection. IANA/RADB implement the
// normal "Key: Value" dialect; Cymru implements the pipe-delimited one.
type server interface {
	poll() (Result, error)
}

// AsnFinder races IANA, RADB, and Team Cymru WHOIS servers for a single
// IP. Construction never fails outright: an individual server that
// can't be reached is simply dropped, and Poll degrades gracefully to
// NotFound once every surviving source has given up.
type AsnFinder struct {
	iana  server
	radb  server
	cymru server

	started time.Time
}

// Lookup opens (soft-failing, best-effort) connections to all three
// WHOIS servers for ip. If every connection fails, the returned finder
// is still valid; its first Poll will report NotFound.
func Lookup(ip net.IP) (*AsnFinder, error) {
	f := &AsnFinder{started: time.Now()}
	if s, err := connectNormal(ip, defaultServers[0]); err == nil {
		f.iana = s
	}
	if s, err := connectNormal(ip, defaultServers[1]); err == nil {
		f.radb = s
	}
	if s, err := connectCymru(ip); err == nil {
		f.cymru = s
	}
	return f, nil
}

// Poll advances every still-alive sub-source by one non-blocking read
// pass and aggregates: any Found wins (ties broken by enumeration order
// IANA, RADB, Cymru); NotFound only once every source has given up;
// otherwise Pending.
func (f *AsnFinder) Poll() (Result, error) {
	results := [3]Result{{State: NotFound}, {State: NotFound}, {State: NotFound}}

	sources := [3]*server{&f.iana, &f.radb, &f.cymru}
	for i, src := range sources {
		if *src == nil {
			continue
		}
		r, err := (*src).poll()
		if err != nil {
			// A hard IO error (not WouldBlock/TimedOut, those are
			// handled inside poll()) degrades this source to
			// NotFound but never fails the resolver as a whole.
			*src = nil
			results[i] = Result{State: NotFound}
			continue
		}
		results[i] = r
	}

	for _, r := range results {
		if r.State == Found {
			metrics.WhoisLookupDuration.Observe(time.Since(f.started).Seconds())
			return r, nil
		}
	}
	for _, r := range results {
		if r.State != NotFound {
			return Result{State: Pending}, nil
		}
	}
	metrics.WhoisLookupDuration.Observe(time.Since(f.started).Seconds())
	return Result{State: NotFound}, nil
}

func dialWhois(server string) (net.Conn, error) {
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, whoisPort)
	}
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// readAvailableLines reads every complete line currently buffered
// without blocking past pollDeadline. *pending carries a line fragment
// across calls: if a read deadline fires mid-line, the partial bytes
// already pulled off conn are saved in *pending rather than emitted as
// a line, and prepended to whatever ReadString returns on the next
// call. A trailing line with no terminator is still flushed once eof
// is true, matching a normal line-oriented reader's end-of-stream
// behavior. Returns the collected complete lines plus whether the
// stream reached EOF.
func readAvailableLines(conn net.Conn, r *bufio.Reader, pending *string) (lines []string, eof bool, err error) {
	for {
		if dlErr := conn.SetReadDeadline(time.Now().Add(pollDeadline)); dlErr != nil {
			return lines, false, dlErr
		}
		line, rerr := r.ReadString('\n')
		*pending += line

		if rerr == nil {
			lines = append(lines, strings.TrimRight(*pending, "\r\n"))
			*pending = ""
			continue
		}
		if isTimeout(rerr) {
			// *pending keeps the fragment read so far; it is not lost,
			// just not yet a complete line.
			return lines, false, nil
		}
		if rerr == io.EOF {
			if *pending != "" {
				lines = append(lines, strings.TrimRight(*pending, "\r\n"))
				*pending = ""
			}
			return lines, true, nil
		}
		return lines, false, rerr
	}
}
