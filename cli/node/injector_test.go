package node

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReflectInjector_Resolve(t *testing.T) {
	inj := NewInjector()

	inj.Inject("abc")

	var dep string
	err := inj.Resolve(&dep)
	require.NoError(t, err)
	require.Equal(t, "abc", dep)

	var dep2 uint64
	err = inj.Resolve(&dep2)
	require.EqualError(t, err, "couldn't find dependency for 'uint64'")

	err = inj.Resolve((*interface{})(nil))
	require.EqualError(t, err, "reflect value '<nil>' is invalid")

	err = inj.Resolve(dep2)
	require.EqualError(t, err, "expect a pointer")
}

func TestReflectInjector_ResolveOrder(t *testing.T) {
	inj := NewInjector()

	buffer := new(bytes.Buffer)
	builder := new(strings.Builder)

	inj.Inject(buffer)
	inj.Inject(builder)

	// Both implement io.Writer, the first one injected wins.
	for i := 0; i < 10; i++ {
		var w io.Writer
		require.NoError(t, inj.Resolve(&w))
		require.Same(t, buffer, w)
	}

	var sb *strings.Builder
	require.NoError(t, inj.Resolve(&sb))
	require.Same(t, builder, sb)

	// A replacement of the same type keeps the rank of the previous one.
	other := new(bytes.Buffer)
	inj.Inject(other)

	var w io.Writer
	require.NoError(t, inj.Resolve(&w))
	require.Same(t, other, w)
}
