package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseFQDN(t *testing.T) {
	assert.Equal(t, "com.example.ads", reverseFQDN("ads.example.com"))
	assert.Equal(t, "test", reverseFQDN("test"))
}

func TestDomainTree(t *testing.T) {
	tree := newDomainTree()
	tree.Insert("server.com")
	tree.Insert("a.b.example.org")

	assert.True(t, tree.HasAncestor("server.com", 0))
	assert.True(t, tree.HasAncestor("www.server.com", 1))
	assert.False(t, tree.HasAncestor("serverfault.com", 3))
	assert.False(t, tree.HasAncestor("x.y.www.server.com", 2))

	assert.True(t, tree.HasDescendant("example.org", 2))
	assert.False(t, tree.HasDescendant("example.org", 1))
	assert.False(t, tree.HasDescendant("ample.org", 3))
	assert.Equal(t, 2, tree.Len())
}
