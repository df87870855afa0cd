package catalog

import (
	"testing"
	"time"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vendorA   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	vendorB   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	catShoes  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	catShirts = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

func ptr[T any](v T) *T { return &v }

func fixtureProducts() []Product {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: uuid.New(), Name: "Trail Runner", Description: "Lightweight running shoe", VendorID: vendorA, CategoryID: catShoes, Price: 12000, StockQuantity: 4, Rating: 4.5, CreatedAt: base},
		{ID: uuid.New(), Name: "Linen Shirt", Description: "Breathable summer shirt", VendorID: vendorB, CategoryID: catShirts, Price: 4500, StockQuantity: 0, Rating: 3.9, CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), Name: "Court Sneaker", Description: "Classic leather shoe", VendorID: vendorB, CategoryID: catShoes, Price: 8000, StockQuantity: 12, Rating: 4.5, CreatedAt: base.Add(2 * time.Hour)},
		{ID: uuid.New(), Name: "Oxford Shirt", Description: "Button-down cotton", VendorID: vendorA, CategoryID: catShirts, Price: 5500, StockQuantity: 3, Rating: 4.1, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func names(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func Test_Search(t *testing.T) {
	products := fixtureProducts()
	testCases := []struct {
		name     string
		spec     FilterSpec
		expected []string
	}{
		{
			name:     "Empty spec - identity",
			spec:     FilterSpec{},
			expected: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"},
		},
		{
			name:     "Query matches name case-insensitively",
			spec:     FilterSpec{Query: ptr("SHIRT")},
			expected: []string{"Linen Shirt", "Oxford Shirt"},
		},
		{
			name:     "Query matches description",
			spec:     FilterSpec{Query: ptr("leather")},
			expected: []string{"Court Sneaker"},
		},
		{
			name:     "Blank query is no constraint",
			spec:     FilterSpec{Query: ptr("   ")},
			expected: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"},
		},
		{
			name:     "Category exact match",
			spec:     FilterSpec{CategoryID: ptr(catShoes)},
			expected: []string{"Trail Runner", "Court Sneaker"},
		},
		{
			name:     "Vendor and category combined",
			spec:     FilterSpec{VendorID: ptr(vendorA), CategoryID: ptr(catShirts)},
			expected: []string{"Oxford Shirt"},
		},
		{
			name:     "Rating floor is inclusive",
			spec:     FilterSpec{MinRating: ptr(4.5)},
			expected: []string{"Trail Runner", "Court Sneaker"},
		},
		{
			name:     "In stock only",
			spec:     FilterSpec{InStock: ptr(true)},
			expected: []string{"Trail Runner", "Court Sneaker", "Oxford Shirt"},
		},
		{
			name:     "InStock false imposes nothing",
			spec:     FilterSpec{InStock: ptr(false)},
			expected: []string{"Trail Runner", "Linen Shirt", "Court Sneaker", "Oxford Shirt"},
		},
		{
			name:     "Query and structural filters AND together",
			spec:     FilterSpec{Query: ptr("shoe"), MaxPrice: ptr(int64(9000))},
			expected: []string{"Court Sneaker"},
		},
		{
			name:     "Inverted price range matches nothing",
			spec:     FilterSpec{MinPrice: ptr(int64(9000)), MaxPrice: ptr(int64(1000))},
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			found := Search(products, tc.spec)
			// then
			assert.Equal(t, tc.expected, names(found))
		})
	}
}

func Test_Search_PriceBoundsInclusive(t *testing.T) {
	// given
	products := []Product{{Name: "a", Price: 100}, {Name: "b", Price: 500}, {Name: "c", Price: 1000}}
	// when
	found := Search(products, FilterSpec{MinPrice: ptr(int64(500)), MaxPrice: ptr(int64(1000))})
	// then
	require.Len(t, found, 2)
	assert.Equal(t, int64(500), found[0].Price)
	assert.Equal(t, int64(1000), found[1].Price)
}

func Test_Search_EmptyInput(t *testing.T) {
	found := Search(nil, FilterSpec{Query: ptr("anything")})
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func Test_Search_Monotonicity(t *testing.T) {
	products := fixtureProducts()
	// each step adds one populated field to the previous spec
	steps := []func(s *FilterSpec){
		func(s *FilterSpec) { s.Query = ptr("s") },
		func(s *FilterSpec) { s.InStock = ptr(true) },
		func(s *FilterSpec) { s.MinRating = ptr(4.0) },
		func(s *FilterSpec) { s.MaxPrice = ptr(int64(10000)) },
		func(s *FilterSpec) { s.VendorID = ptr(vendorB) },
		func(s *FilterSpec) { s.CategoryID = ptr(catShoes) },
		func(s *FilterSpec) { s.MinPrice = ptr(int64(8000)) },
	}

	spec := FilterSpec{}
	previous := len(Search(products, spec))
	for i, step := range steps {
		step(&spec)
		current := len(Search(products, spec))
		assert.LessOrEqual(t, current, previous, "step %d grew the result set", i)
		previous = current
	}
	assert.Equal(t, 1, previous)
}

func Test_Search_DoesNotModifyInput(t *testing.T) {
	products := fixtureProducts()
	snapshot := append([]Product(nil), products...)

	_ = Search(products, FilterSpec{InStock: ptr(true)})

	assert.Equal(t, snapshot, products)
}

func Test_FilterSpec_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		spec        FilterSpec
		expectError bool
	}{
		{name: "Empty spec", spec: FilterSpec{}},
		{name: "Equal bounds", spec: FilterSpec{MinPrice: ptr(int64(5)), MaxPrice: ptr(int64(5))}},
		{name: "Inverted bounds", spec: FilterSpec{MinPrice: ptr(int64(6)), MaxPrice: ptr(int64(5))}, expectError: true},
		{name: "Negative min", spec: FilterSpec{MinPrice: ptr(int64(-1))}, expectError: true},
		{name: "Negative max", spec: FilterSpec{MaxPrice: ptr(int64(-1))}, expectError: true},
		{name: "Rating above five", spec: FilterSpec{MinRating: ptr(5.5)}, expectError: true},
		{name: "Rating of five", spec: FilterSpec{MinRating: ptr(5.0)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.expectError {
				assert.ErrorIs(t, err, perrors.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}
