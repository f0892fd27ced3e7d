package dns

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	dnslib "github.com/miekg/dns"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

const dnsMessageType = "application/dns-message"

// dohUpstream sends RFC 8484 wire-format queries over HTTPS POST.
type dohUpstream struct {
	url    string
	client *http.Client
}

func newDoHUpstream(rawURL string, timeout time.Duration) (*dohUpstream, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid DoH upstream %q", rawURL)
	}

	return &dohUpstream{
		url:    u.String(),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (u *dohUpstream) ID() string {
	return u.url
}

func (u *dohUpstream) Protocol() types.Protocol {
	return types.ProtocolDoH
}

func (u *dohUpstream) Exchange(ctx context.Context, m *dnslib.Msg) (*dnslib.Msg, error) {
	// cache friendly, the ID is carried by the HTTP exchange instead
	q := m.Copy()
	q.Id = 0

	packed, err := q.Pack()
	if err != nil {
		return nil, fmt.Errorf("failed to pack query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(packed))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", dnsMessageType)
	req.Header.Set("Accept", dnsMessageType)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DoH upstream returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, dnslib.MaxMsgSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read DoH response: %w", err)
	}

	reply := new(dnslib.Msg)
	if err := reply.Unpack(body); err != nil {
		return nil, fmt.Errorf("failed to unpack DoH response: %w", err)
	}
	reply.Id = m.Id

	return reply, nil
}
