package dns

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	dnslib "github.com/miekg/dns"
	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// answerKnown resolves ads.test and answers NXDOMAIN for everything else.
func answerKnown(q *dnslib.Msg) *dnslib.Msg {
	reply := new(dnslib.Msg)
	if len(q.Question) == 0 || q.Question[0].Name != "ads.test." {
		reply.SetRcode(q, dnslib.RcodeNameError)
		return reply
	}

	reply.SetReply(q)
	rr, _ := dnslib.NewRR("ads.test. 300 IN A 203.0.113.7")
	reply.Answer = append(reply.Answer, rr)
	return reply
}

func startUDPServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dnslib.Server{
		PacketConn: pc,
		Handler: dnslib.HandlerFunc(func(w dnslib.ResponseWriter, r *dnslib.Msg) {
			w.WriteMsg(answerKnown(r))
		}),
		NotifyStartedFunc: func() { close(started) },
	}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })

	return pc.LocalAddr().String()
}

func startDoHServer(t *testing.T) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.HideBanner = true
	e.POST("/dns-query", func(c echo.Context) error {
		if c.Request().Header.Get("Content-Type") != dnsMessageType {
			return c.NoContent(http.StatusUnsupportedMediaType)
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		q := new(dnslib.Msg)
		if err := q.Unpack(body); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		packed, err := answerKnown(q).Pack()
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, dnsMessageType, packed)
	})

	srv := httptest.NewTLSServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewUpstream(t *testing.T) {
	tests := []struct {
		address  string
		protocol types.Protocol
		endpoint string
	}{
		{"1.1.1.1", types.ProtocolUDP, "1.1.1.1:53"},
		{"udp://9.9.9.9:5353", types.ProtocolUDP, "9.9.9.9:5353"},
		{"2606:4700:4700::1111", types.ProtocolUDP, "[2606:4700:4700::1111]:53"},
		{"[::1]:5300", types.ProtocolUDP, "[::1]:5300"},
		{"tls://dns.google", types.ProtocolDoT, "dns.google:853"},
		{"tls://1.1.1.1:8853", types.ProtocolDoT, "1.1.1.1:8853"},
		{"https://cloudflare-dns.com/dns-query", types.ProtocolDoH, ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			u, err := NewUpstream(config.ServerConfig{Address: tt.address})
			require.NoError(t, err)
			assert.Equal(t, tt.protocol, u.Protocol())
			assert.Equal(t, tt.address, u.ID())

			if ex, ok := u.(*exchangeUpstream); ok {
				assert.Equal(t, tt.endpoint, ex.endpoint)
			}
		})
	}

	tlsUp, err := NewUpstream(config.ServerConfig{Address: "tls://dns.google"})
	require.NoError(t, err)
	assert.Equal(t, "dns.google", tlsUp.(*exchangeUpstream).client.TLSConfig.ServerName)

	_, err = NewUpstream(config.ServerConfig{Address: "https://"})
	assert.Error(t, err)
}

func TestUDPUpstream(t *testing.T) {
	addr := startUDPServer(t)
	u, err := NewUpstream(config.ServerConfig{Address: addr, Timeout: time.Second})
	require.NoError(t, err)

	resp, err := u.Exchange(context.Background(), newQuery("ads.test"))
	require.NoError(t, err)
	assert.True(t, hasAnswer(resp))

	resp, err = u.Exchange(context.Background(), newQuery("nonexistent-xyz123.invalid"))
	require.NoError(t, err)
	assert.False(t, hasAnswer(resp))
	assert.Equal(t, dnslib.RcodeNameError, resp.Rcode)
}

func TestDoHUpstream(t *testing.T) {
	srv := startDoHServer(t)
	u := &dohUpstream{url: srv.URL + "/dns-query", client: srv.Client()}

	q := newQuery("ads.test")
	resp, err := u.Exchange(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, hasAnswer(resp))
	assert.Equal(t, q.Id, resp.Id)

	resp, err = u.Exchange(context.Background(), newQuery("gone.test"))
	require.NoError(t, err)
	assert.False(t, hasAnswer(resp))

	missing := &dohUpstream{url: srv.URL + "/missing", client: srv.Client()}
	_, err = missing.Exchange(context.Background(), q)
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestValidatorOverUDP(t *testing.T) {
	addr := startUDPServer(t)

	cfg := config.Default().Validation
	cfg.Backoff = 0
	cfg.Pools = []config.PoolConfig{{
		Name:    "local",
		Servers: []config.ServerConfig{{Address: addr, Weight: 1, Timeout: time.Second}},
	}}

	v, err := NewValidator(cfg)
	require.NoError(t, err)
	defer v.Close()

	assert.True(t, v.Validate(context.Background(), "ads.test"))
	assert.False(t, v.Validate(context.Background(), "nonexistent-xyz123.invalid"))
}

func TestValidatorWithUnreachableServers(t *testing.T) {
	// grab a free port, then close it so nothing answers there
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	pc.Close()

	cfg := config.Default().Validation
	cfg.Backoff = 0
	cfg.Retries = 1
	cfg.Pools = []config.PoolConfig{{
		Name:    "dead",
		Servers: []config.ServerConfig{{Address: addr, Weight: 1, Timeout: 200 * time.Millisecond}},
	}}

	v, err := NewValidator(cfg)
	require.NoError(t, err)
	defer v.Close()

	r := v.Check(context.Background(), "nonexistent-xyz123.invalid")
	assert.Equal(t, types.VerdictInvalid, r.Verdict)
	assert.Equal(t, map[string]bool{addr: false}, r.PerServer)
}
