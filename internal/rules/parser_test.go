package rules

import (
	"testing"

	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    types.Kind
		syntax  types.Syntax
		domains []string
	}{
		{"blank", "   ", types.KindComment, types.SyntaxNone, nil},
		{"bang comment", "! Title: EasyList", types.KindComment, types.SyntaxNone, nil},
		{"hash comment", "# hosts file", types.KindComment, types.SyntaxNone, nil},
		{"hash comment with double hash", "# see ## below", types.KindComment, types.SyntaxNone, nil},
		{"header", "[Adblock Plus 2.0]", types.KindComment, types.SyntaxNone, nil},
		{"adblock", "||ads.example.com^", types.KindBlock, types.SyntaxDomain, []string{"ads.example.com"}},
		{"adblock modifiers", "||Ads.Example.com^$third-party,important", types.KindBlock, types.SyntaxDomain, []string{"ads.example.com"}},
		{"adblock trailing pipe", "||ads.example.com^|", types.KindBlock, types.SyntaxDomain, []string{"ads.example.com"}},
		{"plain domain", "tracker.example.org", types.KindBlock, types.SyntaxDomain, []string{"tracker.example.org"}},
		{"plain domain modifier", "tracker.example.org$important", types.KindBlock, types.SyntaxDomain, []string{"tracker.example.org"}},
		{"wildcard", "*.ads.example.com", types.KindBlock, types.SyntaxWildcard, []string{"ads.example.com"}},
		{"idn", "||bücher.example^", types.KindBlock, types.SyntaxDomain, []string{"xn--bcher-kva.example"}},
		{"idn tld", "||广告.中国^", types.KindBlock, types.SyntaxDomain, []string{"xn--4rr70v.xn--fiqs8s"}},
		{"bare unicode domain", "广告.中国", types.KindUnparseable, types.SyntaxNone, nil},
		{"hosts", "0.0.0.0 tracker.test", types.KindHosts, types.SyntaxHosts, []string{"tracker.test"}},
		{"hosts loopback", "127.0.0.1\tads.test # inline", types.KindHosts, types.SyntaxHosts, []string{"ads.test"}},
		{"hosts ipv6", "::1 ads.test", types.KindHosts, types.SyntaxHosts, []string{"ads.test"}},
		{"hosts multiple", "0.0.0.0 a.test bad_name b.test", types.KindHosts, types.SyntaxHosts, []string{"a.test", "b.test"}},
		{"hosts double hash comment", "0.0.0.0 tracker.test ## ad server", types.KindHosts, types.SyntaxHosts, []string{"tracker.test"}},
		{"hosts marker comment", "0.0.0.0 a.test b.test #@# was $$ here", types.KindHosts, types.SyntaxHosts, []string{"a.test", "b.test"}},
		{"hosts localhost", "127.0.0.1 localhost", types.KindUnparseable, types.SyntaxHosts, nil},
		{"hosts redirect", "10.0.0.1 intranet.test", types.KindUnparseable, types.SyntaxHosts, nil},
		{"exception", "@@||cdn.example.com^", types.KindAllow, types.SyntaxDomain, []string{"cdn.example.com"}},
		{"exception hosts", "@@0.0.0.0 cdn.example.com", types.KindAllow, types.SyntaxHosts, []string{"cdn.example.com"}},
		{"exception cosmetic", "@@example.com##.ad", types.KindUnparseable, types.SyntaxCosmetic, nil},
		{"cosmetic", "example.com##.banner", types.KindUnparseable, types.SyntaxCosmetic, nil},
		{"cosmetic exception", "example.com#@#.banner", types.KindUnparseable, types.SyntaxCosmetic, nil},
		{"cosmetic global", "##.ad-slot", types.KindUnparseable, types.SyntaxCosmetic, nil},
		{"scriptlet", "example.com#%#//scriptlet('abort-on-property-read', 'ads')", types.KindUnparseable, types.SyntaxScriptlet, nil},
		{"html filter", "example.com$$script[tag-content=\"ad\"]", types.KindUnparseable, types.SyntaxScriptlet, nil},
		{"url rule", "||example.com/ads/*", types.KindUnparseable, types.SyntaxDomain, nil},
		{"ip literal", "||10.0.0.1^", types.KindUnparseable, types.SyntaxDomain, nil},
		{"bare label", "localhost", types.KindUnparseable, types.SyntaxDomain, nil},
		{"garbage", "&&&&", types.KindUnparseable, types.SyntaxNone, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Parse(tt.line)
			assert.Equal(t, tt.kind, r.Kind, "kind")
			if tt.syntax != types.SyntaxNone {
				assert.Equal(t, tt.syntax, r.Syntax, "syntax")
			}
			assert.Equal(t, tt.domains, r.Targets())
			assert.False(t, r.Verbatim)
		})
	}
}

func TestParseRegex(t *testing.T) {
	tests := []struct {
		line     string
		kind     types.Kind
		verbatim bool
	}{
		{`/ads?\d+\.example\./`, types.KindUnparseable, true},
		{`/banner/$third-party`, types.KindUnparseable, true},
		{`@@/^cdn[0-9]\.example\./`, types.KindAllow, true},
		{`//`, types.KindUnparseable, false},
		{`/ab/`, types.KindUnparseable, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := Parse(tt.line)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, types.SyntaxRegex, r.Syntax)
			assert.Equal(t, tt.verbatim, r.Verbatim)
			assert.Empty(t, r.Domain)
			assert.Equal(t, tt.line, r.Raw)
		})
	}
}

func TestParseKeepsRawLine(t *testing.T) {
	r := Parse("  @@||Cdn.Example.com^$important  ")
	assert.Equal(t, "@@||Cdn.Example.com^$important", r.Raw)
	assert.Equal(t, "cdn.example.com", r.Normalized)
}

func TestHostsAndAdblockShareFingerprint(t *testing.T) {
	hosts := Parse("0.0.0.0 tracker.test")
	adblock := Parse("||tracker.test^")
	plain := Parse("TRACKER.test")

	assert.Equal(t, adblock.Fingerprint(), hosts.Fingerprint())
	assert.Equal(t, adblock.Fingerprint(), plain.Fingerprint())
}

func TestRuleAsAllow(t *testing.T) {
	r := Parse("example.com").AsAllow()
	assert.Equal(t, types.KindAllow, r.Kind)

	c := Parse("! comment").AsAllow()
	assert.Equal(t, types.KindComment, c.Kind)

	re := Parse("/ads?/").AsAllow()
	assert.Equal(t, types.KindAllow, re.Kind)
	assert.True(t, re.Verbatim)

	short := Parse("/ab/").AsAllow()
	assert.Equal(t, types.KindUnparseable, short.Kind)

	cosmetic := Parse("example.com##.banner").AsAllow()
	assert.Equal(t, types.KindUnparseable, cosmetic.Kind)
}

func TestRuleWithDomains(t *testing.T) {
	r := Parse("0.0.0.0 a.test b.test c.test").WithDomains([]string{"b.test", "c.test"})
	assert.Equal(t, "b.test", r.Domain)
	assert.Equal(t, "b.test", r.Normalized)
	assert.Equal(t, []string{"b.test", "c.test"}, r.Targets())

	empty := r.WithDomains(nil)
	assert.False(t, empty.IsDomain())
}
