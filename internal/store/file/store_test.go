package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Kokosalah45/html-to-image/internal/tag"
)

func TestLoadDecodesCollection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	doc := `[
  {
    "productCode": "X123",
    "current_price": 19.9,
    "previous_price": 24
  },
  {
    "productCode": "X123",
    "variation_suffix": "large",
    "current_price": 5.25
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	store, err := New(path)
	require.NoError(t, err)
	defer store.Close()

	products, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	require.Equal(t, "X123", products[0].Code)
	require.Empty(t, products[0].VariationSuffix)
	require.True(t, products[0].CurrentPrice.Equal(tag.MustPrice("19.9")))
	require.NotNil(t, products[0].PreviousPrice)
	require.True(t, products[0].PreviousPrice.Equal(tag.MustPrice("24")))

	require.Equal(t, "large", products[1].VariationSuffix)
	require.Nil(t, products[1].PreviousPrice)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	store, err := New(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "read products")
}

func TestLoadMalformedDocument(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"`), 0o600))

	store, err := New(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode products")
}

func TestReplaceRoundTrips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "products.json")
	store, err := New(path)
	require.NoError(t, err)

	prev := tag.MustPrice("24")
	products := []tag.Product{
		{Code: "X123", CurrentPrice: tag.MustPrice("19.9"), PreviousPrice: &prev},
		{Code: "Y456", VariationSuffix: "small", CurrentPrice: tag.MustPrice("5.25")},
	}
	require.NoError(t, store.Replace(context.Background(), products))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "[\n  {"))
	require.True(t, strings.HasSuffix(string(raw), "]\n"))
	require.NotContains(t, string(raw), `"previous_price": null`)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "X123", loaded[0].Code)
	require.True(t, loaded[0].PreviousPrice.Equal(prev))
	require.Nil(t, loaded[1].PreviousPrice)
}

func TestNewRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := New("  ")
	require.Error(t, err)
}
