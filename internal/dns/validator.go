package dns

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"golang.org/x/exp/rand"
	"golang.org/x/net/idna"
	"golang.org/x/sync/singleflight"
)

var ErrNoServers = errors.New("validation is enabled but no upstream servers are configured")

type server struct {
	Upstream
	weight  int
	timeout time.Duration
}

type pool struct {
	name     string
	suffixes []string
	servers  []*server
}

// Validator checks that domains still resolve by asking several upstream
// servers and requiring a minimum number of them to answer.
type Validator struct {
	cfg   *config.ValidationConfig
	pools []*pool
	cache *Cache

	flights singleflight.Group
	breaker *breaker
	always  map[string]bool

	newUpstream UpstreamFactory
	now         func() time.Time
	seed        uint64

	randMu sync.Mutex
	rand   *rand.Rand

	stats struct {
		lookups   atomic.Int64
		cacheHits atomic.Int64
		overrides atomic.Int64
		valid     atomic.Int64
		invalid   atomic.Int64
	}
}

type Option func(*Validator)

// WithUpstreamFactory replaces how servers are dialed, mostly for tests.
func WithUpstreamFactory(f UpstreamFactory) Option {
	return func(v *Validator) {
		v.newUpstream = f
	}
}

// WithCache sets the result cache. The Validator takes ownership of it.
func WithCache(c *Cache) Option {
	return func(v *Validator) {
		v.cache = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithSeed makes the server order reproducible.
func WithSeed(seed uint64) Option {
	return func(v *Validator) {
		v.seed = seed
	}
}

func NewValidator(cfg *config.ValidationConfig, opts ...Option) (*Validator, error) {
	v := &Validator{
		cfg:         cfg,
		breaker:     newBreaker(),
		always:      make(map[string]bool, len(cfg.AlwaysValid)),
		newUpstream: NewUpstream,
		now:         time.Now,
		seed:        uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.rand = rand.New(rand.NewSource(v.seed))

	for _, domain := range cfg.AlwaysValid {
		v.always[canonical(domain)] = true
	}

	for _, pc := range cfg.Pools {
		p := &pool{name: pc.Name}
		for _, suffix := range pc.Suffixes {
			p.suffixes = append(p.suffixes, canonical(suffix))
		}

		seen := make(map[string]bool, len(pc.Servers))
		for _, sc := range pc.Servers {
			u, err := v.newUpstream(sc)
			if err != nil {
				return nil, fmt.Errorf("pool %s: %w", pc.Name, err)
			}
			// udp://1.1.1.1:53 and 1.1.1.1 are the same server
			if seen[u.ID()] {
				slog.Warn("Ignoring duplicate upstream", "pool", pc.Name, "server", u.ID())
				continue
			}
			seen[u.ID()] = true
			p.servers = append(p.servers, &server{
				Upstream: u,
				weight:   max(sc.Weight, 1),
				timeout:  sc.QueryTimeout(),
			})
		}

		if cfg.Threshold > len(p.servers) {
			slog.Warn("Consensus threshold exceeds pool size, no domain can validate", "pool", p.name, "threshold", cfg.Threshold, "servers", len(p.servers))
		}
		if len(p.servers) > 0 {
			v.pools = append(v.pools, p)
		}
	}

	if cfg.Enabled && len(v.pools) == 0 {
		return nil, ErrNoServers
	}

	if v.cache == nil {
		c, err := NewCache(cfg.CacheSize, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create validation cache: %w", err)
		}
		c.now = v.now
		v.cache = c
	}

	return v, nil
}

// Validate reports whether domain resolves. It is always true when
// validation is disabled.
func (v *Validator) Validate(ctx context.Context, domain string) bool {
	return v.Check(ctx, domain).Valid()
}

// Check validates domain and returns the detailed result. Cached verdicts are
// reused until they expire, and concurrent checks of the same domain share a
// single set of queries.
func (v *Validator) Check(ctx context.Context, domain string) *Result {
	domain = canonical(domain)

	if !v.cfg.Enabled {
		validations.WithLabelValues(string(types.VerdictValid), "disabled").Inc()
		return v.assume(domain)
	}

	if v.isAlwaysValid(domain) {
		v.stats.overrides.Add(1)
		validations.WithLabelValues(string(types.VerdictValid), "override").Inc()
		return v.assume(domain)
	}

	if r, ok := v.cache.Get(domain); ok {
		v.stats.cacheHits.Add(1)
		validations.WithLabelValues(string(r.Verdict), "cache").Inc()
		return r
	}

	res, _, _ := v.flights.Do(domain, func() (any, error) {
		// another flight may have finished between the lookup above & now
		if r, ok := v.cache.Get(domain); ok {
			return r, nil
		}

		r := v.resolve(ctx, domain)
		v.cache.Set(r)

		switch r.Verdict {
		case types.VerdictValid:
			v.stats.valid.Add(1)
		case types.VerdictInvalid:
			v.stats.invalid.Add(1)
		}
		validations.WithLabelValues(string(r.Verdict), "network").Inc()

		return r, nil
	})

	return res.(*Result)
}

func (v *Validator) assume(domain string) *Result {
	now := v.now()
	return &Result{
		Domain:    domain,
		Verdict:   types.VerdictValid,
		CheckedAt: now,
		ExpiresAt: now.Add(v.cfg.CacheTTL),
	}
}

func (v *Validator) resolve(ctx context.Context, domain string) *Result {
	now := v.now()
	p := v.poolFor(domain)
	perServer, successes, skipped := v.consensus(ctx, domain, v.order(p.servers))

	r := &Result{
		Domain:    domain,
		CheckedAt: now,
		ExpiresAt: now.Add(v.cfg.CacheTTL),
		PerServer: perServer,
	}
	switch {
	case successes >= v.cfg.Threshold:
		r.Verdict = types.VerdictValid
	case ctx.Err() != nil, skipped > 0:
		// some servers were never asked, so this is no proof the domain is gone
		r.Verdict = types.VerdictUnknown
	default:
		r.Verdict = types.VerdictInvalid
	}

	slog.Debug("Validated domain", "domain", domain, "pool", p.name, "verdict", r.Verdict, "successes", successes, "skipped", skipped)
	return r
}

// consensus queries servers in order, at most cfg.Concurrency at a time, and
// stops as soon as cfg.Threshold distinct servers have answered. Servers with
// an open circuit are skipped and left out of perServer.
func (v *Validator) consensus(ctx context.Context, domain string, servers []*server) (perServer map[string]bool, successes, skipped int) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type answer struct {
		id      string
		outcome queryOutcome
	}
	answers := make(chan answer, len(servers))
	sem := make(chan struct{}, max(v.cfg.Concurrency, 1))

	var agreed atomic.Int32
	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(answers)
		}()

		for _, s := range servers {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				<-sem
				return
			}

			wg.Add(1)
			go func(s *server) {
				defer wg.Done()
				defer func() { <-sem }()

				outcome := v.query(ctx, domain, s)
				// stop launching more queries before this slot frees up
				if outcome == queryAnswered && int(agreed.Add(1)) >= v.cfg.Threshold {
					cancel()
				}
				answers <- answer{id: s.ID(), outcome: outcome}
			}(s)
		}
	}()

	perServer = make(map[string]bool, len(servers))
	for a := range answers {
		if a.outcome == querySkipped {
			skipped++
			continue
		}
		if a.outcome == queryAnswered && !perServer[a.id] {
			successes++
		}
		perServer[a.id] = perServer[a.id] || a.outcome == queryAnswered
		if successes >= v.cfg.Threshold {
			break
		}
	}

	return perServer, successes, skipped
}

type queryOutcome int

const (
	queryRejected queryOutcome = iota // no answer after every attempt
	queryAnswered
	querySkipped // circuit open, nothing was sent
)

// query runs the attempt state machine against a single server.
func (v *Validator) query(ctx context.Context, domain string, s *server) queryOutcome {
	id := s.ID()
	if !v.breaker.Allow(id) {
		upstreamSkippedUnhealthy.WithLabelValues(id).Inc()
		return querySkipped
	}

	a := newAttempt(v.cfg.Retries)
	for ctx.Err() == nil {
		answered, err := v.lookup(ctx, domain, s)

		switch a.observe(answered, err) {
		case stateSuccess:
			v.breaker.Success(id)
			return queryAnswered
		case stateRetry:
			slog.Debug("Retrying upstream", "server", id, "domain", domain, "retry", a.retries, "error", err)
			if sleepContext(ctx, Backoff(v.cfg.Backoff, a.retries)) != nil {
				return queryRejected
			}
		default:
			if a.err == nil {
				v.breaker.Success(id)
			} else if ctx.Err() == nil && v.breaker.Failure(id) {
				upstreamCircuitOpened.WithLabelValues(id).Inc()
				slog.Warn("Upstream keeps failing, skipping it for a while", "server", id, "for", circuitOpenDuration, "error", a.err)
			}
			return queryRejected
		}
	}

	return queryRejected
}

func (v *Validator) lookup(ctx context.Context, domain string, s *server) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v.stats.lookups.Add(1)
	protocol := string(s.Protocol())

	start := time.Now()
	resp, err := s.Exchange(ctx, newQuery(domain))
	upstreamLatency.WithLabelValues(protocol).Observe(elapsedSeconds(start))
	if err == nil {
		err = errRcode(resp)
	}
	if err != nil {
		upstreamQueries.WithLabelValues(protocol, "error").Inc()
		return false, err
	}

	if !hasAnswer(resp) {
		upstreamQueries.WithLabelValues(protocol, "empty").Inc()
		return false, nil
	}

	upstreamQueries.WithLabelValues(protocol, "answered").Inc()
	return true, nil
}

// poolFor returns the first pool whose suffixes match domain, else the first
// pool without suffixes.
func (v *Validator) poolFor(domain string) *pool {
	var fallback *pool
	for _, p := range v.pools {
		if len(p.suffixes) == 0 {
			if fallback == nil {
				fallback = p
			}
			continue
		}

		for _, suffix := range p.suffixes {
			if isSubdomain(domain, suffix) {
				return p
			}
		}
	}

	if fallback == nil {
		return v.pools[0]
	}
	return fallback
}

// order shuffles servers, heavier ones tend to come first.
func (v *Validator) order(servers []*server) []*server {
	v.randMu.Lock()
	keys := make(map[*server]float64, len(servers))
	for _, s := range servers {
		keys[s] = math.Pow(v.rand.Float64(), 1/float64(s.weight))
	}
	v.randMu.Unlock()

	out := slices.Clone(servers)
	slices.SortStableFunc(out, func(a, b *server) int {
		return cmp.Compare(keys[b], keys[a])
	})
	return out
}

func (v *Validator) isAlwaysValid(domain string) bool {
	for d := domain; d != ""; {
		if v.always[d] {
			return true
		}
		_, parent, ok := strings.Cut(d, ".")
		if !ok {
			break
		}
		d = parent
	}
	return false
}

type Stats struct {
	Lookups   int64 `json:"lookups"`
	CacheHits int64 `json:"cache_hits"`
	Overrides int64 `json:"overrides"`
	Valid     int64 `json:"valid"`
	Invalid   int64 `json:"invalid"`
}

func (v *Validator) Stats() Stats {
	return Stats{
		Lookups:   v.stats.lookups.Load(),
		CacheHits: v.stats.cacheHits.Load(),
		Overrides: v.stats.overrides.Load(),
		Valid:     v.stats.valid.Load(),
		Invalid:   v.stats.invalid.Load(),
	}
}

func (v *Validator) CacheHits() int64 {
	return v.stats.cacheHits.Load()
}

func (v *Validator) Cache() *Cache {
	return v.cache
}

func (v *Validator) Close() error {
	return v.cache.Close()
}

func isSubdomain(domain, parent string) bool {
	return domain == parent || strings.HasSuffix(domain, "."+parent)
}

// canonical lowercases a name and converts it to its ASCII form.
func canonical(domain string) string {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if ascii, err := idna.Lookup.ToASCII(domain); err == nil {
		return ascii
	}
	return domain
}
