package rules

import (
	"github.com/cespare/xxhash/v2"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
)

// Rule is one classified filter-list line.
type Rule struct {
	Raw    string
	Kind   types.Kind
	Syntax types.Syntax

	// Domain is the canonical target of a domain-level rule. Hosts lines may
	// list several names, Domain is then the first of Domains.
	Domain  string
	Domains []string

	// Normalized is the identity used for deduplication.
	Normalized string

	// Verbatim rules carry no domain and are emitted as written (regexes).
	Verbatim bool
}

func (r Rule) Fingerprint() uint64 {
	return Fingerprint(r.Normalized)
}

// Targets returns every domain the rule applies to.
func (r Rule) Targets() []string {
	if len(r.Domains) > 0 {
		return r.Domains
	}
	if r.Domain != "" {
		return []string{r.Domain}
	}
	return nil
}

// WithDomains narrows a domain rule to the given subset of its targets.
func (r Rule) WithDomains(domains []string) Rule {
	r.Domains = domains
	r.Domain, r.Normalized = "", ""
	if len(domains) > 0 {
		r.Domain = domains[0]
		r.Normalized = domains[0]
	}
	return r
}

// AsAllow turns a block, hosts or kept regex rule into an exception for the
// same targets.
func (r Rule) AsAllow() Rule {
	switch {
	case r.Kind == types.KindBlock || r.Kind == types.KindHosts:
		r.Kind = types.KindAllow
	case r.Syntax == types.SyntaxRegex && r.Verbatim:
		r.Kind = types.KindAllow
	}
	return r
}

// IsDomain reports whether the rule resolves to one or more DNS names.
func (r Rule) IsDomain() bool {
	switch r.Kind {
	case types.KindBlock, types.KindAllow, types.KindHosts:
		return r.Domain != ""
	}
	return false
}

// Fingerprint hashes a normalized rule string.
func Fingerprint(normalized string) uint64 {
	return xxhash.Sum64String(normalized)
}
