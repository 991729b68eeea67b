package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveVectorNamespaceIsStable(t *testing.T) {
	a, err := DeriveVectorNamespace("postgres://x/y")
	require.NoError(t, err)
	b, err := DeriveVectorNamespace("postgres://x/y")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveVectorNamespaceDiffersByURL(t *testing.T) {
	a, err := DeriveVectorNamespace("postgres://x/y")
	require.NoError(t, err)
	b, err := DeriveVectorNamespace("postgres://x/z")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDeriveVectorNamespaceHasStablePrefix(t *testing.T) {
	ns, err := DeriveVectorNamespace("postgres://x/y")
	require.NoError(t, err)
	assert.Contains(t, ns, "pkgdex-")
}
