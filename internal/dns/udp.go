package dns

import (
	"context"
	"crypto/tls"
	"time"

	dnslib "github.com/miekg/dns"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

// exchangeUpstream speaks plain UDP (with TCP fallback on truncation) or
// DNS-over-TLS through miekg/dns.
type exchangeUpstream struct {
	id       string
	protocol types.Protocol
	endpoint string
	client   *dnslib.Client
	fallback *dnslib.Client
}

func newUDPUpstream(id, endpoint string, timeout time.Duration) *exchangeUpstream {
	return &exchangeUpstream{
		id:       id,
		protocol: types.ProtocolUDP,
		endpoint: endpoint,
		client:   &dnslib.Client{Net: "udp", Timeout: timeout},
		fallback: &dnslib.Client{Net: "tcp", Timeout: timeout},
	}
}

func newTLSUpstream(id, endpoint, serverName string, timeout time.Duration) *exchangeUpstream {
	return &exchangeUpstream{
		id:       id,
		protocol: types.ProtocolDoT,
		endpoint: endpoint,
		client: &dnslib.Client{
			Net:     "tcp-tls",
			Timeout: timeout,
			TLSConfig: &tls.Config{
				ServerName: serverName,
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

func (u *exchangeUpstream) ID() string {
	return u.id
}

func (u *exchangeUpstream) Protocol() types.Protocol {
	return u.protocol
}

func (u *exchangeUpstream) Exchange(ctx context.Context, m *dnslib.Msg) (*dnslib.Msg, error) {
	resp, _, err := u.client.ExchangeContext(ctx, m, u.endpoint)
	if err != nil {
		return nil, err
	}

	if resp.Truncated && u.fallback != nil {
		resp, _, err = u.fallback.ExchangeContext(ctx, m, u.endpoint)
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}
