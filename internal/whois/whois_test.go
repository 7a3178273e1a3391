package whois

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// fakeWhoisServer accepts one connection and writes resp, then closes.
func fakeWhoisServer(t *testing.T, resp string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n') // consume the query line
		conn.Write([]byte(resp))
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

// fakeWhoisServerHeldOpen is like fakeWhoisServer, but keeps the
// connection open after writing resp until the test ends, so the client
// never reaches end-of-stream.
func fakeWhoisServerHeldOpen(t *testing.T, resp string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	release := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bufio.NewReader(conn).ReadString('\n') // consume the query line
		conn.Write([]byte(resp))
		<-release
	}()
	t.Cleanup(func() { close(release); ln.Close() })
	return ln.Addr().String()
}

func TestNormalServer_OriginAS(t *testing.T) {
	addr := fakeWhoisServer(t, "OriginAS: AS64500\n")
	s, err := connectNormal(net.ParseIP("192.0.2.1"), addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	var result Result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = s.poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if result.State == Found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if result.State != Found || result.Asn != 64500 {
		t.Fatalf("expected Found(AS64500), got %+v", result)
	}
}

func TestNormalServer_OriginFallbackOnClose(t *testing.T) {
	addr := fakeWhoisServer(t, "origin: AS64501\nsome-other: field\n")
	s, err := connectNormal(net.ParseIP("192.0.2.2"), addr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	var result Result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = s.poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if result.State == Found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if result.State != Found || result.Asn != 64501 {
		t.Fatalf("expected Found(AS64501) after close, got %+v", result)
	}
}

func TestCymruServer_MidStreamLine(t *testing.T) {
	addr := fakeWhoisServer(t, "Bulk mode;\n64502 | 192.0.2.0/24 | US | arin | 2001-01-01\n")
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("192.0.2.5\r\n")); err != nil {
		t.Fatalf("write query: %v", err)
	}
	s := &cymruServer{conn: conn, reader: bufio.NewReader(conn)}

	var result Result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = s.poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if result.State == Found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if result.State != Found || result.Asn != 64502 {
		t.Fatalf("expected Found(AS64502), got %+v", result)
	}
}

// TestAggregateRace reproduces scenario S4: IANA reports origin, which
// only counts on close, and its connection is held open; Cymru reports
// mid-stream before IANA closes, so Cymru's Found is the only one and
// wins.
func TestAggregateRace(t *testing.T) {
	ianaAddr := fakeWhoisServerHeldOpen(t, "origin: AS64501\n")
	cymruAddr := fakeWhoisServer(t, "64502 | 192.0.2.0/24 | US | arin | 2001-01-01\n")

	iana, err := connectNormal(net.ParseIP("192.0.2.3"), ianaAddr)
	if err != nil {
		t.Fatalf("connect iana: %v", err)
	}
	cymruConn, err := net.DialTimeout("tcp", cymruAddr, time.Second)
	if err != nil {
		t.Fatalf("dial cymru: %v", err)
	}
	if _, err := cymruConn.Write([]byte("192.0.2.3\r\n")); err != nil {
		t.Fatalf("write cymru query: %v", err)
	}
	cymru := &cymruServer{conn: cymruConn, reader: bufio.NewReader(cymruConn)}

	f := &AsnFinder{iana: iana, cymru: cymru}

	var result Result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = f.Poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if result.State == Found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if result.State != Found || result.Asn != 64502 {
		t.Fatalf("expected Cymru to win the race with AS64502, got %+v", result)
	}
}

// TestRedirect reproduces scenario S5: IANA refers elsewhere, and the
// referred server answers with OriginAS.
func TestRedirect(t *testing.T) {
	referredAddr := fakeWhoisServer(t, "OriginAS: AS64503\n")
	referrerAddr := fakeWhoisServer(t, "refer: "+referredAddr+"\n")

	s, err := connectNormal(net.ParseIP("192.0.2.4"), referrerAddr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	var result Result
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		result, err = s.poll()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if result.State == Found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if result.State != Found || result.Asn != 64503 {
		t.Fatalf("expected Found(AS64503) via redirect, got %+v", result)
	}
}
