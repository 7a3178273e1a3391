package whois

import (
	"bufio"
	"net"
	"strings"

	"github.com/jonsson/ktr/internal/asnnum"
)

// cymruServer speaks Team Cymru's pipe-delimited WHOIS dialect, e.g.
// "64500 | 192.0.2.0/24 | US | arin | 2001-01-01".
type cymruServer struct {
	conn    net.Conn
	reader  *bufio.Reader
	pending string // a line fragment left over from a mid-line poll deadline
}

func connectCymru(ip net.IP) (*cymruServer, error) {
	conn, err := dialWhois("whois.cymru.com")
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte(ip.String() + "\r\n")); err != nil {
		conn.Close()
		return nil, err
	}
	return &cymruServer{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (s *cymruServer) poll() (Result, error) {
	lines, eof, err := readAvailableLines(s.conn, s.reader, &s.pending)
	if err != nil {
		return Result{}, err
	}

	for _, line := range lines {
		field, _, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		if asn, ok := asnnum.ParseUnprefixed(field); ok {
			s.conn.Close()
			return Result{State: Found, Asn: asn}, nil
		}
	}

	if eof {
		s.conn.Close()
		return Result{State: NotFound}, nil
	}
	return Result{State: Pending}, nil
}
