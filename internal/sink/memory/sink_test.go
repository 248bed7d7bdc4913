package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutStoresCopy(t *testing.T) {
	t.Parallel()

	sink := New()
	data := []byte{1, 2, 3}
	uri, err := sink.Put(context.Background(), "X123.webp", data)
	require.NoError(t, err)
	require.Equal(t, "memory://X123.webp", uri)

	data[0] = 9
	stored, ok := sink.Object("X123.webp")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, stored)
	require.Equal(t, 1, sink.Len())
}

func TestPutRequiresName(t *testing.T) {
	t.Parallel()

	sink := New()
	_, err := sink.Put(context.Background(), "", []byte("data"))
	require.Error(t, err)

	_, ok := sink.Object("missing.webp")
	require.False(t, ok)
}
