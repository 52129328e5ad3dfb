package fetch

import (
	"context"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrBlockedHost is returned for URLs that point at loopback, private, link-local or unspecified addresses
var ErrBlockedHost = eris.New("host is not a public address")

// 100.64.0.0/10, carrier-grade NAT
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// PublicIP reports whether ip is routable on the public internet
func PublicIP(ip net.IP) bool {
	switch {
	case ip == nil,
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// checkHostLiteral rejects localhost names and non-public IP literals without resolving anything
func checkHostLiteral(host string) error {
	h := strings.TrimSuffix(strings.ToLower(host), ".")
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return eris.Wrapf(ErrBlockedHost, "%q", host)
	}
	if ip := net.ParseIP(h); ip != nil && !PublicIP(ip) {
		return eris.Wrapf(ErrBlockedHost, "%q", host)
	}
	return nil
}

// checkResolved resolves host and rejects it when any address is not public.
// Lookup failures pass; the request itself will fail on them.
func checkResolved(ctx context.Context, host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if !PublicIP(a.IP) {
			return eris.Wrapf(ErrBlockedHost, "%q resolves to %s", host, a.IP)
		}
	}
	return nil
}

// dialControl runs after name resolution, so rebinding and redirects cannot reach internal addresses
func dialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return eris.Wrapf(ErrBlockedHost, "dial %s", address)
	}
	if !PublicIP(net.ParseIP(host)) {
		return eris.Wrapf(ErrBlockedHost, "dial %s", address)
	}
	return nil
}
