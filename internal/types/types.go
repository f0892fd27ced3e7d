package types

import "fmt"

type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// Kind is the outcome of classifying a single filter-list line.
type Kind int

const (
	KindComment Kind = iota
	KindBlock
	KindAllow
	KindHosts
	KindUnparseable
)

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindBlock:
		return "block"
	case KindAllow:
		return "allow"
	case KindHosts:
		return "hosts"
	default:
		return "unparseable"
	}
}

// Syntax records which dialect matched a line.
type Syntax int

const (
	SyntaxNone      Syntax = iota
	SyntaxDomain           // ||example.com^, example.com
	SyntaxWildcard         // *.example.com
	SyntaxHosts            // 0.0.0.0 example.com
	SyntaxRegex            // /ads?/
	SyntaxCosmetic         // ##, #@#, #?#
	SyntaxScriptlet        // #%#, $$
)

type Verdict string

const (
	VerdictValid   Verdict = "valid"
	VerdictInvalid Verdict = "invalid"
	VerdictUnknown Verdict = "unknown"
)

// Policy decides which side wins when a domain is both blocked & allowed.
type Policy string

const (
	PolicyWhitelist Policy = "whitelist" // allow wins, conflicting block entries are removed
	PolicyBlacklist Policy = "blacklist" // block wins, conflicting allow entries are removed
)

func (p *Policy) UnmarshalText(text []byte) error {
	switch Policy(text) {
	case PolicyWhitelist, "whitelist-priority":
		*p = PolicyWhitelist
	case PolicyBlacklist, "blacklist-priority":
		*p = PolicyBlacklist
	default:
		return fmt.Errorf("unknown conflict policy: %s", text)
	}
	return nil
}

type Protocol string

const (
	ProtocolUDP Protocol = "udp"
	ProtocolDoH Protocol = "https"
	ProtocolDoT Protocol = "tls"
)

type OutputFormat string

const (
	OutputFormatDomains OutputFormat = "domains"
	OutputFormatAdblock OutputFormat = "adblock"
)
