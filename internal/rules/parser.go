package rules

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"golang.org/x/net/idna"
)

var (
	validate = validator.New()

	// example.com or example.com$important
	plainDomainRegex = regexp.MustCompile(`^[a-zA-Z0-9\-.]+(\$[^$]*)?$`)

	nullRoutes = map[netip.Addr]bool{
		netip.MustParseAddr("0.0.0.0"):   true,
		netip.MustParseAddr("127.0.0.1"): true,
		netip.MustParseAddr("::"):        true,
		netip.MustParseAddr("::1"):       true,
	}

	cosmeticMarkers  = []string{"##", "#@#", "#?#", "#$#"}
	scriptletMarkers = []string{"#%#", "#@%#", "$$"}

	// lines starting with "#" are comments unless they open with a marker
	hashMarkers = []string{"##", "#@#", "#?#", "#$#", "#%#", "#@%#"}
)

// dialect pairs a syntax detector with the extractor for lines it accepts.
// Dialects are tried in order, the first match wins.
type dialect struct {
	name    string
	match   func(line string) bool
	extract func(line string) Rule
}

var dialects []dialect

func init() {
	dialects = []dialect{
		{"comment", isComment, comment},
		// before the marker dialects, hosts lines may carry "## ..." comments
		{"hosts", isHosts, parseHosts},
		{"scriptlet", containsAny(scriptletMarkers), unparseable(types.SyntaxScriptlet)},
		{"cosmetic", containsAny(cosmeticMarkers), unparseable(types.SyntaxCosmetic)},
		{"exception", hasPrefix("@@"), parseException},
		{"regex", isRegexText, parseRegex},
		{"wildcard", hasPrefix("*."), parseDomainRule(types.SyntaxWildcard)},
		{"adblock", hasPrefix("||"), parseDomainRule(types.SyntaxDomain)},
		{"domain", plainDomainRegex.MatchString, parseDomainRule(types.SyntaxDomain)},
	}
}

// Parse classifies a single line. It never fails, lines no dialect accepts
// come back as KindUnparseable.
func Parse(line string) Rule {
	line = strings.TrimSpace(line)
	for _, d := range dialects {
		if d.match(line) {
			r := d.extract(line)
			r.Raw = line
			return r
		}
	}

	return Rule{Raw: line, Kind: types.KindUnparseable}
}

func isComment(line string) bool {
	switch {
	case line == "":
		return true
	case strings.HasPrefix(line, "!"):
		return true
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		// [Adblock Plus 2.0]
		return true
	case strings.HasPrefix(line, "#"):
		for _, m := range hashMarkers {
			if strings.HasPrefix(line, m) {
				return false
			}
		}
		return true
	}
	return false
}

func comment(string) Rule {
	return Rule{Kind: types.KindComment}
}

func unparseable(syntax types.Syntax) func(string) Rule {
	return func(line string) Rule {
		return Rule{
			Kind:       types.KindUnparseable,
			Syntax:     syntax,
			Normalized: Normalize(line),
		}
	}
}

func parseException(line string) Rule {
	inner := Parse(line[2:]).AsAllow()
	if inner.Kind == types.KindAllow {
		return inner
	}

	return Rule{
		Kind:       types.KindUnparseable,
		Syntax:     inner.Syntax,
		Normalized: Normalize(line),
	}
}

func parseRegex(line string) Rule {
	end := strings.LastIndexByte(line, '/')
	r := Rule{
		Kind:       types.KindUnparseable,
		Syntax:     types.SyntaxRegex,
		Normalized: Normalize(line),
	}
	// too short to be a meaningful pattern, e.g. // or /a/
	r.Verbatim = len(line[1:end]) >= 3
	return r
}

func isHosts(line string) bool {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return false
	}
	_, err := netip.ParseAddr(fields[0])
	return err == nil
}

func parseHosts(line string) Rule {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)

	r := Rule{Kind: types.KindUnparseable, Syntax: types.SyntaxHosts}
	addr, err := netip.ParseAddr(fields[0])
	if err != nil || !nullRoutes[addr.Unmap()] {
		// hosts entries pointing at real addresses are redirects, not blocks
		return r
	}

	var domains []string
	for _, field := range fields[1:] {
		if domain, ok := canonicalDomain(field); ok && !isLocalName(domain) {
			domains = append(domains, domain)
		}
	}
	if len(domains) == 0 {
		return r
	}

	r.Kind = types.KindHosts
	return r.WithDomains(domains)
}

func parseDomainRule(syntax types.Syntax) func(string) Rule {
	return func(line string) Rule {
		domain, ok := canonicalDomain(extractDomain(line))
		if !ok {
			return Rule{
				Kind:       types.KindUnparseable,
				Syntax:     syntax,
				Normalized: Normalize(line),
			}
		}

		return Rule{
			Kind:       types.KindBlock,
			Syntax:     syntax,
			Domain:     domain,
			Normalized: domain,
		}
	}
}

// extractDomain cuts the anchor, separator and modifiers off a domain rule.
func extractDomain(s string) string {
	s = strings.TrimPrefix(s, "||")
	if i := strings.IndexAny(s, "^$"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "|")
	s = strings.TrimPrefix(s, "*.")
	return s
}

// canonicalDomain returns the lowercase ASCII form of a hostname.
func canonicalDomain(s string) (string, bool) {
	s = strings.Trim(s, ".")
	if s == "" {
		return "", false
	}

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", false
	}
	ascii = strings.ToLower(ascii)

	if err := validate.Var(ascii, "hostname_rfc1123"); err != nil {
		return "", false
	}
	// bare labels & IP literals aren't blockable names
	if !strings.Contains(ascii, ".") {
		return "", false
	}
	if _, err := netip.ParseAddr(ascii); err == nil {
		return "", false
	}

	return ascii, true
}

func isLocalName(domain string) bool {
	switch domain {
	case "localhost", "localhost.localdomain", "local", "broadcasthost", "ip6-localhost", "ip6-loopback":
		return true
	}
	return false
}

func hasPrefix(prefix string) func(string) bool {
	return func(line string) bool {
		return strings.HasPrefix(line, prefix)
	}
}

func containsAny(markers []string) func(string) bool {
	return func(line string) bool {
		for _, m := range markers {
			if strings.Contains(line, m) {
				return true
			}
		}
		return false
	}
}
