package catalog

import (
	"testing"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Sort(t *testing.T) {
	testCases := []struct {
		name     string
		kind     SortKind
		expected []string
	}{
		{
			name:     "Relevance keeps input order",
			kind:     SortRelevance,
			expected: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"},
		},
		{
			name:     "Price ascending",
			kind:     SortPriceAsc,
			expected: []string{"Linen Shirt", "Oxford Shirt", "Court Sneaker", "Trail Runner"},
		},
		{
			name:     "Price descending",
			kind:     SortPriceDesc,
			expected: []string{"Trail Runner", "Court Sneaker", "Oxford Shirt", "Linen Shirt"},
		},
		{
			// Trail Runner and Court Sneaker share 4.5 and keep their relative order
			name:     "Rating descending is stable",
			kind:     SortRating,
			expected: []string{"Trail Runner", "Court Sneaker", "Oxford Shirt", "Linen Shirt"},
		},
		{
			name:     "Newest first",
			kind:     SortNewest,
			expected: []string{"Oxford Shirt", "Court Sneaker", "Linen Shirt", "Trail Runner"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			products := fixtureProducts()
			// when
			sorted := Sort(products, tc.kind)
			// then
			assert.Equal(t, tc.expected, names(sorted))
		})
	}
}

func Test_Sort_IdempotentAndPure(t *testing.T) {
	for _, kind := range []SortKind{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortNewest} {
		t.Run(string(kind), func(t *testing.T) {
			// given
			products := fixtureProducts()
			snapshot := append([]Product(nil), products...)
			// when
			once := Sort(products, kind)
			twice := Sort(once, kind)
			// then
			assert.Equal(t, once, twice)
			assert.Equal(t, snapshot, products, "input must not be reordered")
		})
	}
}

func Test_Sort_ReturnsNewSlice(t *testing.T) {
	products := fixtureProducts()

	sorted := Sort(products, SortRelevance)
	sorted[0].Name = "changed"

	assert.Equal(t, "Trail Runner", products[0].Name)
}

func Test_Sort_Empty(t *testing.T) {
	sorted := Sort(nil, SortPriceAsc)
	assert.NotNil(t, sorted)
	assert.Empty(t, sorted)
}

func Test_ParseSortKind(t *testing.T) {
	kind, err := ParseSortKind("")
	require.NoError(t, err)
	assert.Equal(t, SortRelevance, kind)

	kind, err = ParseSortKind("price-desc")
	require.NoError(t, err)
	assert.Equal(t, SortPriceDesc, kind)

	_, err = ParseSortKind("cheapest")
	assert.ErrorIs(t, err, perrors.ErrUnknownSort)
}

func Test_Paginate(t *testing.T) {
	products := fixtureProducts()
	testCases := []struct {
		name           string
		limit, offset  int
		expectedNames  []string
		expectedLimit  int
		expectedOffset int
	}{
		{name: "First page", limit: 2, offset: 0, expectedNames: []string{"Trail Runner", "Linen Shirt"}, expectedLimit: 2},
		{name: "Last partial page", limit: 3, offset: 3, expectedNames: []string{"Oxford Shirt"}, expectedLimit: 3, expectedOffset: 3},
		{name: "Offset past end", limit: 2, offset: 10, expectedNames: []string{}, expectedLimit: 2, expectedOffset: 10},
		{name: "Default limit", limit: 0, offset: -5, expectedNames: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"}, expectedLimit: DefaultPageLimit},
		{name: "Clamped limit", limit: 1000, offset: 0, expectedNames: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"}, expectedLimit: MaxPageLimit},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := Paginate(products, tc.limit, tc.offset)
			assert.Equal(t, tc.expectedNames, names(page.Items))
			assert.Equal(t, len(products), page.Total)
			assert.Equal(t, tc.expectedLimit, page.Limit)
			assert.Equal(t, tc.expectedOffset, page.Offset)
		})
	}
}
