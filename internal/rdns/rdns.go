// Package rdns resolves IP addresses to hostnames, treating "no PTR
// record" as a normal, non-error outcome.
package rdns

import (
	"errors"
	"net"
)

// Lookup returns the first hostname net.LookupAddr finds for ip, or
// (nil, nil) if the address has no PTR record. Any other resolver
// failure is returned as an error.
func Lookup(ip net.IP) (*string, error) {
	names, err := net.LookupAddr(ip.String())
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	return &names[0], nil
}
