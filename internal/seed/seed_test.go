package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tree = `
categories:
  - name: Apparel
    children:
      - name: Shoes
      - name: T Shirts & Tops
  - name: Home
    slug: home
    children:
      - name: Kitchen
        children:
          - name: Knives
`

func Test_ParseAndFlatten(t *testing.T) {
	// given
	nodes, err := Parse(strings.NewReader(tree))
	require.NoError(t, err)

	// when
	categories, err := Flatten(nodes)

	// then
	require.NoError(t, err)
	slugs := make([]string, 0, len(categories))
	for _, c := range categories {
		slugs = append(slugs, c.Slug)
	}
	assert.Equal(t, []string{"apparel", "apparel-shoes", "apparel-t-shirts-tops", "home", "home-kitchen", "home-kitchen-knives"}, slugs)

	knives := categories[5]
	assert.Equal(t, 3, knives.Level)
	require.NotNil(t, knives.ParentID)
	assert.Equal(t, categories[4].ID, *knives.ParentID)
	assert.Nil(t, categories[0].ParentID)
	assert.Equal(t, 1, categories[2].Position)
	assert.Equal(t, uuid.NewSHA1(Namespace, []byte("home/home-kitchen/home-kitchen-knives")), knives.ID)

	again, err := Flatten(nodes)
	require.NoError(t, err)
	assert.Equal(t, categories, again)
}

func Test_Flatten_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		nodes []Node
	}{
		{name: "duplicate slug", nodes: []Node{{Name: "A", Slug: "x"}, {Name: "B", Slug: "x"}}},
		{name: "derived duplicate", nodes: []Node{{Name: "Shoes"}, {Name: "shoes!"}}},
		{name: "missing name", nodes: []Node{{Name: "A", Children: []Node{{Name: " "}}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Flatten(tc.nodes)
			assert.ErrorIs(t, err, perrors.ErrInvalidTree)
		})
	}
}

func Test_Parse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("categories:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}

func Test_Parse_Empty(t *testing.T) {
	nodes, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

type fakeResults struct {
	execs  int
	failAt int
	closed bool
}

func (f *fakeResults) Exec() (pgconn.CommandTag, error) {
	f.execs++
	if f.execs == f.failAt {
		return pgconn.CommandTag{}, errors.New("violates foreign key")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (f *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("unexpected query") }
func (f *fakeResults) QueryRow() pgx.Row        { return nil }
func (f *fakeResults) Close() error {
	f.closed = true
	return nil
}

type fakeSender struct {
	batches [][]*pgx.QueuedQuery
	results []*fakeResults
	failAt  int
}

func (f *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b.QueuedQueries)
	r := &fakeResults{failAt: f.failAt}
	f.results = append(f.results, r)
	return r
}

func Test_Upsert(t *testing.T) {
	// given
	nodes, err := Parse(strings.NewReader(tree))
	require.NoError(t, err)
	categories, err := Flatten(nodes)
	require.NoError(t, err)
	db := &fakeSender{}

	// when
	n, err := Upsert(context.Background(), db, categories, 4)

	// then
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.Len(t, db.batches, 2)
	assert.Len(t, db.batches[0], 4)
	assert.Len(t, db.batches[1], 2)
	assert.Equal(t, categories[0].ID, db.batches[0][0].Arguments[0])
	assert.Equal(t, "home-kitchen-knives", db.batches[1][1].Arguments[3])
	for _, r := range db.results {
		assert.True(t, r.closed)
	}
}

func Test_Upsert_Failure(t *testing.T) {
	nodes, err := Parse(strings.NewReader(tree))
	require.NoError(t, err)
	categories, err := Flatten(nodes)
	require.NoError(t, err)
	db := &fakeSender{failAt: 2}

	n, err := Upsert(context.Background(), db, categories, 10)

	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, db.results[0].closed)
}
