package classify

import (
	"slices"
	"strings"

	"github.com/armon/go-radix"
)

// domainTree indexes domains by their reversed labels so that a domain and
// all of its subdomains share a key prefix, e.g. example.com -> com.example
type domainTree struct {
	tree *radix.Tree
}

func newDomainTree() *domainTree {
	return &domainTree{tree: radix.New()}
}

func (t *domainTree) Insert(domain string) {
	t.tree.Insert(reverseFQDN(domain), struct{}{})
}

func (t *domainTree) Len() int {
	return t.tree.Len()
}

// HasAncestor reports whether the tree holds the domain itself or a parent at
// most depth labels above it.
func (t *domainTree) HasAncestor(domain string, depth int) bool {
	key := reverseFQDN(domain)
	labels := labelCount(domain)

	found := false
	t.tree.WalkPath(key, func(k string, _ interface{}) bool {
		// com.server is a byte prefix of com.serverfault but not a parent
		if k != key && !strings.HasPrefix(key, k+".") {
			return false
		}
		if labels-labelCount(k) <= depth {
			found = true
			return true
		}
		return false
	})

	return found
}

// HasDescendant reports whether the tree holds the domain itself or a
// subdomain at most depth labels below it.
func (t *domainTree) HasDescendant(domain string, depth int) bool {
	key := reverseFQDN(domain)
	labels := labelCount(domain)

	found := false
	t.tree.WalkPrefix(key, func(k string, _ interface{}) bool {
		if k != key && !strings.HasPrefix(k, key+".") {
			return false
		}
		if labelCount(k)-labels <= depth {
			found = true
			return true
		}
		return false
	})

	return found
}

func reverseFQDN(fqdn string) string {
	parts := strings.Split(fqdn, ".")
	slices.Reverse(parts)
	return strings.Join(parts, ".")
}

func labelCount(domain string) int {
	return strings.Count(domain, ".") + 1
}
