package classify

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/st3v3nmw/beacon-dns-lists/internal/rules"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

// Entry is one deduplicated rule in a RuleSet.
type Entry struct {
	// Normalized is the dedup identity, the domain for domain rules.
	Normalized string
	// Domain is empty for rules emitted verbatim (regexes, passthrough lines).
	Domain string
	// Text is the verbatim form, without any @@ exception marker.
	Text string
}

func (e Entry) display() string {
	if e.Domain != "" {
		return e.Domain
	}
	return e.Text
}

// RuleSet is the resolved output of a run.
type RuleSet struct {
	Block []Entry
	Allow []Entry

	// Conflicts is how many entries the precedence policy removed.
	Conflicts int
}

// Keys returns the normalized form of each entry, in order.
func Keys(entries []Entry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Normalized
	}
	return keys
}

// Classifier accumulates parsed rules into block & allow sets.
// It is safe for concurrent use.
type Classifier struct {
	mu     sync.RWMutex
	policy types.Policy
	depth  int

	block *entrySet
	allow *entrySet

	duplicates int
}

func New(policy types.Policy, depth int) *Classifier {
	if policy == "" {
		policy = types.PolicyWhitelist
	}
	return &Classifier{
		policy: policy,
		depth:  depth,
		block:  newEntrySet(),
		allow:  newEntrySet(),
	}
}

// Add routes r into the block or allow set and returns how many new entries
// it produced. Hosts lines yield one entry per listed domain. Comments and
// unparseable lines are ignored, see AddVerbatim.
func (c *Classifier) Add(r rules.Rule) int {
	var target *entrySet
	switch r.Kind {
	case types.KindBlock, types.KindHosts:
		target = c.block
	case types.KindAllow:
		target = c.allow
	case types.KindUnparseable:
		if !r.Verbatim {
			return 0
		}
		target = c.block
	default:
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r.Verbatim {
		return c.insert(target, Entry{
			Normalized: r.Normalized,
			Text:       strings.TrimPrefix(r.Raw, "@@"),
		})
	}

	added := 0
	for _, domain := range r.Targets() {
		added += c.insert(target, Entry{Normalized: domain, Domain: domain})
	}
	return added
}

// AddVerbatim stores a line the parser could not map to DNS semantics so it
// survives into the block output unchanged.
func (c *Classifier) AddVerbatim(r rules.Rule) int {
	if r.Raw == "" || r.Kind == types.KindComment {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.insert(c.block, Entry{Normalized: rules.Normalize(r.Raw), Text: r.Raw})
}

func (c *Classifier) insert(target *entrySet, e Entry) int {
	if !target.add(e) {
		c.duplicates++
		return 0
	}
	return 1
}

// Contains reports whether every target of r is already in its set.
func (c *Classifier) Contains(r rules.Rule) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	target := c.block
	if r.Kind == types.KindAllow {
		target = c.allow
	}

	keys := r.Targets()
	if r.Verbatim || len(keys) == 0 {
		keys = []string{r.Normalized}
	}
	for _, k := range keys {
		if !target.has(k) {
			return false
		}
	}
	return true
}

func (c *Classifier) Duplicates() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duplicates
}

func (c *Classifier) Len() (block, allow int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.block.len(), c.allow.len()
}

// Resolve applies the precedence policy and returns both sets sorted.
// The accumulated state is left untouched, so Resolve may be called again.
func (c *Classifier) Resolve() RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var rs RuleSet
	switch c.policy {
	case types.PolicyBlacklist:
		tree := newDomainTree()
		for e := range c.block.all() {
			if e.Domain != "" {
				tree.Insert(e.Domain)
			}
		}

		rs.Block = collect(c.block, nil)
		rs.Allow = collect(c.allow, func(e Entry) bool {
			if c.block.has(e.Normalized) {
				return true
			}
			return e.Domain != "" && tree.HasDescendant(e.Domain, c.depth)
		})
		rs.Conflicts = c.allow.len() - len(rs.Allow)
	default:
		tree := newDomainTree()
		for e := range c.allow.all() {
			if e.Domain != "" {
				tree.Insert(e.Domain)
			}
		}

		rs.Allow = collect(c.allow, nil)
		rs.Block = collect(c.block, func(e Entry) bool {
			if c.allow.has(e.Normalized) {
				return true
			}
			return e.Domain != "" && tree.HasAncestor(e.Domain, c.depth)
		})
		rs.Conflicts = c.block.len() - len(rs.Block)
	}

	return rs
}

func collect(entries *entrySet, conflicting func(Entry) bool) []Entry {
	out := make([]Entry, 0, entries.len())
	for e := range entries.all() {
		if conflicting != nil && conflicting(e) {
			continue
		}
		out = append(out, e)
	}

	slices.SortFunc(out, func(a, b Entry) int {
		x, y := a.display(), b.display()
		if n := cmp.Compare(strings.ToLower(x), strings.ToLower(y)); n != 0 {
			return n
		}
		return cmp.Compare(x, y)
	})
	return out
}
