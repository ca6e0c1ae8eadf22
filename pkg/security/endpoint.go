// Package security checks the URLs mnemo is configured to talk to before any
// request goes out.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type EndpointOptions struct {
	// AllowHTTP permits plain HTTP. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets as
	// well as localhost names.
	AllowLocalNetworks bool
}

// ValidateEndpoint rejects URLs with an unsupported scheme, no host, or a
// host that the options rule out. IP literals are checked without DNS.
func ValidateEndpoint(raw string, opts EndpointOptions) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid URL %q", raw)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.Errorf("%s: plain http is not allowed", raw)
		}
	default:
		return errors.Errorf("%s: unsupported scheme %q", raw, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Errorf("%s: missing host", raw)
	}

	if !opts.AllowLocalNetworks && isLocalName(host) {
		return errors.Errorf("%s: local host %q is not allowed", raw, host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// not an IP literal
		return nil
	}
	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return errors.Errorf("%s: zoned address %q is not allowed", raw, host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("%s: address %q cannot be dialed", raw, host)
	}
	if !opts.AllowLocalNetworks && isLocalAddr(addr) {
		return errors.Errorf("%s: local address %q is not allowed", raw, host)
	}
	return nil
}

func isLocalName(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

func isLocalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}
