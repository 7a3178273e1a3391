package whois

import (
	"bufio"
	"net"
	"strings"

	"github.com/jonsson/ktr/internal/asnnum"
)

// normalServer speaks the "Key: Value" WHOIS dialect used by IANA and
// RADB, including refer/whois redirect chasing.
type normalServer struct {
	ip      net.IP
	host    string
	conn    net.Conn
	reader  *bufio.Reader
	pending string // a line fragment left over from a mid-line poll deadline

	origin *asnnum.Asn
	refer  string
	whois  string
}

func connectNormal(ip net.IP, host string) (*normalServer, error) {
	conn, err := dialWhois(host)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte(ip.String() + "\r\n")); err != nil {
		conn.Close()
		return nil, err
	}
	return &normalServer{
		ip:     ip,
		host:   host,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

func (s *normalServer) poll() (Result, error) {
	lines, eof, err := readAvailableLines(s.conn, s.reader, &s.pending)
	if err != nil {
		return Result{}, err
	}

	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case strings.EqualFold(key, "OriginAS"):
			if asn, ok := asnnum.ParseIgnorePrefix(value); ok {
				s.conn.Close()
				return Result{State: Found, Asn: asn}, nil
			}
		case strings.EqualFold(key, "origin"):
			if asn, ok := asnnum.ParseIgnorePrefix(value); ok {
				s.origin = &asn
			}
		case strings.EqualFold(key, "refer"):
			s.refer = value
		case strings.EqualFold(key, "whois"):
			s.whois = value
		}
	}

	if !eof {
		return Result{State: Pending}, nil
	}

	s.conn.Close()
	if s.origin != nil {
		return Result{State: Found, Asn: *s.origin}, nil
	}

	next := s.refer
	if next == "" {
		next = s.whois
	}
	if next == "" {
		return Result{State: NotFound}, nil
	}

	reconnected, err := connectNormal(s.ip, next)
	if err != nil {
		return Result{State: NotFound}, nil
	}
	*s = *reconnected
	return Result{State: Pending}, nil
}
