package dns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	dnslib "github.com/miekg/dns"
	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

// Upstream answers DNS queries over one transport.
type Upstream interface {
	ID() string
	Protocol() types.Protocol
	Exchange(ctx context.Context, m *dnslib.Msg) (*dnslib.Msg, error)
}

// UpstreamFactory builds an Upstream from its configuration.
type UpstreamFactory func(cfg config.ServerConfig) (Upstream, error)

// NewUpstream picks the transport from the address scheme:
// tls://host[:port], https://host/path, or a plain host[:port] for UDP.
func NewUpstream(cfg config.ServerConfig) (Upstream, error) {
	switch cfg.Protocol() {
	case types.ProtocolDoH:
		return newDoHUpstream(cfg.Address, cfg.QueryTimeout())
	case types.ProtocolDoT:
		host := strings.TrimPrefix(cfg.Address, "tls://")
		endpoint, serverName, err := withDefaultPort(host, "853")
		if err != nil {
			return nil, fmt.Errorf("invalid DoT upstream %q: %w", cfg.Address, err)
		}
		return newTLSUpstream(cfg.Address, endpoint, serverName, cfg.QueryTimeout()), nil
	default:
		host := strings.TrimPrefix(cfg.Address, "udp://")
		endpoint, _, err := withDefaultPort(host, "53")
		if err != nil {
			return nil, fmt.Errorf("invalid UDP upstream %q: %w", cfg.Address, err)
		}
		return newUDPUpstream(cfg.Address, endpoint, cfg.QueryTimeout()), nil
	}
}

func withDefaultPort(addr, port string) (endpoint, host string, err error) {
	if addr == "" {
		return "", "", fmt.Errorf("empty address")
	}

	if h, _, err := net.SplitHostPort(addr); err == nil {
		return addr, h, nil
	}

	// bare IPv6 addresses contain colons but no port
	host = strings.Trim(addr, "[]")
	return net.JoinHostPort(host, port), host, nil
}

// newQuery builds the A query used to check whether a domain resolves.
func newQuery(domain string) *dnslib.Msg {
	m := new(dnslib.Msg)
	m.SetQuestion(dnslib.Fqdn(domain), dnslib.TypeA)
	m.RecursionDesired = true
	return m
}

// hasAnswer reports whether the response positively resolves the query.
func hasAnswer(m *dnslib.Msg) bool {
	return m != nil && m.Rcode == dnslib.RcodeSuccess && len(m.Answer) > 0
}

// errRcode turns transient server-side rcodes into errors worth retrying.
func errRcode(m *dnslib.Msg) error {
	switch m.Rcode {
	case dnslib.RcodeServerFailure, dnslib.RcodeRefused, dnslib.RcodeNotImplemented:
		return fmt.Errorf("upstream returned %s", dnslib.RcodeToString[m.Rcode])
	}
	return nil
}

func elapsedSeconds(start time.Time) float64 {
	return time.Since(start).Seconds()
}
