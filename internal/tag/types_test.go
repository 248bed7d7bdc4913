package tag

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingSelectsChangedAndNewPrices(t *testing.T) {
	t.Parallel()

	same := MustPrice("10.00")
	products := []Product{
		{Code: "A1", CurrentPrice: same, PreviousPrice: &same},
		{Code: "B2", CurrentPrice: MustPrice("5.50")},
		{Code: "C3", CurrentPrice: MustPrice("7.00"), PreviousPrice: ptr(MustPrice("6.00"))},
		{Code: "D4", CurrentPrice: MustPrice("19.9"), PreviousPrice: ptr(MustPrice("19.90"))},
	}

	pending := Pending(products)

	require.Len(t, pending, 2)
	require.Equal(t, "B2", pending[0].Code)
	require.Equal(t, "C3", pending[1].Code)
}

func TestPendingKeepsInputOrder(t *testing.T) {
	t.Parallel()

	products := []Product{
		{Code: "z", CurrentPrice: MustPrice("1")},
		{Code: "a", CurrentPrice: MustPrice("2")},
		{Code: "m", CurrentPrice: MustPrice("3")},
	}

	pending := Pending(products)

	codes := make([]string, 0, len(pending))
	for _, p := range pending {
		codes = append(codes, p.Code)
	}
	require.Equal(t, []string{"z", "a", "m"}, codes)
}

func TestCatchUpAdvancesEveryRecord(t *testing.T) {
	t.Parallel()

	products := []Product{
		{Code: "A", CurrentPrice: MustPrice("3.33")},
		{Code: "B", CurrentPrice: MustPrice("4.44"), PreviousPrice: ptr(MustPrice("1.00"))},
	}

	updated := CatchUp(products)

	for _, p := range updated {
		require.NotNil(t, p.PreviousPrice)
		require.True(t, p.PreviousPrice.Equal(p.CurrentPrice))
	}
	// input untouched
	require.Nil(t, products[0].PreviousPrice)
}

func TestCatchUpConfirmedLeavesUnconfirmedAlone(t *testing.T) {
	t.Parallel()

	old := MustPrice("1.00")
	products := []Product{
		{Code: "A", CurrentPrice: MustPrice("3.33"), PreviousPrice: &old},
		{Code: "B", CurrentPrice: MustPrice("4.44"), PreviousPrice: &old},
	}
	confirmed := map[Key]struct{}{{Code: "B"}: {}}

	updated := CatchUpConfirmed(products, confirmed)

	require.True(t, updated[0].PreviousPrice.Equal(old))
	require.True(t, updated[1].PreviousPrice.Equal(MustPrice("4.44")))
}

func TestImageName(t *testing.T) {
	t.Parallel()

	plain := Product{Code: "X1"}
	require.Equal(t, "X1.jpg", plain.ImageName(SourceImageExt))
	require.Equal(t, "X1.webp", plain.ImageName(CaptureExt))

	variant := Product{Code: "X1", VariationSuffix: "red"}
	require.Equal(t, "X1_red.jpg", variant.ImageName(SourceImageExt))
	require.Equal(t, "X1_red.webp", variant.ImageName(CaptureExt))
}

func TestPriceJSONKeepsNumericSchema(t *testing.T) {
	t.Parallel()

	p := Product{Code: "X1", CurrentPrice: MustPrice("19.9")}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"productCode":"X1","current_price":19.9}`, string(data))

	var back Product
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, back.CurrentPrice.Equal(p.CurrentPrice))
	require.Nil(t, back.PreviousPrice)
}

func TestPriceDisplayTwoDecimals(t *testing.T) {
	t.Parallel()

	require.Equal(t, "19.90", MustPrice("19.9").Display())
	require.Equal(t, "5.00", MustPrice("5").Display())
	require.Equal(t, "0.99", MustPrice("0.99").Display())
}

func ptr(p Price) *Price {
	return &p
}
