package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

func TestLoadReturnsCopy(t *testing.T) {
	t.Parallel()

	prev := tag.MustPrice("24")
	store := New([]tag.Product{
		{Code: "X123", CurrentPrice: tag.MustPrice("19.9"), PreviousPrice: &prev},
	})

	first, err := store.Load(context.Background())
	require.NoError(t, err)
	first[0].Code = "mutated"
	*first[0].PreviousPrice = tag.MustPrice("1")

	second, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "X123", second[0].Code)
	require.True(t, second[0].PreviousPrice.Equal(prev))
}

func TestReplaceSwapsCollection(t *testing.T) {
	t.Parallel()

	store := New([]tag.Product{{Code: "X123", CurrentPrice: tag.MustPrice("19.9")}})

	next := []tag.Product{
		{Code: "Y456", CurrentPrice: tag.MustPrice("5.25")},
		{Code: "Z789", CurrentPrice: tag.MustPrice("10")},
	}
	require.NoError(t, store.Replace(context.Background(), next))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "Y456", loaded[0].Code)
	require.Equal(t, "Z789", loaded[1].Code)
}
