package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFactory_New(t *testing.T) {
	h := NewHashFactory(Sha256).New()
	require.Equal(t, 32, h.Size())

	h = NewHashFactory(Sha3_256).New()
	require.Equal(t, 32, h.Size())

	require.Panics(t, func() {
		NewHashFactory(HashAlgorithm(99)).New()
	})
}
