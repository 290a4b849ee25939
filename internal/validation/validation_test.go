package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
)

// fakeLexical returns a fixed ranking for a literal query string -- good
// enough to stand in for the FTS5 index in these golden-query fixtures.
type fakeLexical struct{ byQuery map[string]search.RankedList }

func (f fakeLexical) Search(query string, limit int) (search.RankedList, error) {
	return f.byQuery[query], nil
}

type fakeSparse struct{}

func (f fakeSparse) Search(query domain.SparseVector, limit int) search.RankedList { return nil }

type fakeFetcher struct{ resources map[string]*domain.Resource }

func (f fakeFetcher) Get(id string) (*domain.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, nil
	}
	return r, nil
}

// fakeEmbedder drives the dense leg deterministically: known query text
// maps to a fixed vector that matches the fixture DenseIndex, standing in
// for a real model placing semantically related text close in cosine
// space.
type fakeEmbedder struct{ vocab map[string][]float32 }

func (f fakeEmbedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	return f.vocab[text], nil
}

func (f fakeEmbedder) EmbedSparse(ctx context.Context, text string) (domain.SparseVector, error) {
	return nil, nil
}

func mkResource(id, title string) *domain.Resource {
	return &domain.Resource{
		ID:              id,
		Title:           title,
		Description:     title,
		IngestionStatus: domain.IngestionCompleted,
	}
}

func newFixtureEngine() *search.Engine {
	resources := map[string]*domain.Resource{
		"res-algorithms-101":    mkResource("res-algorithms-101", "Introduction to Algorithms"),
		"res-deep-learning-201": mkResource("res-deep-learning-201", "Deep Learning Foundations"),
	}

	lexical := fakeLexical{byQuery: map[string]search.RankedList{
		"introduction to algorithms": {"res-algorithms-101"},
		"ML AI":                      {"res-deep-learning-201", "res-algorithms-101"},
	}}

	embedder := fakeEmbedder{vocab: map[string][]float32{
		"how do neural networks learn": {1, 0},
	}}
	dense := search.NewDenseIndex([]string{"res-deep-learning-201"}, [][]float32{{1, 0}})

	return search.NewEngine(lexical, dense, fakeSparse{}, fakeFetcher{resources: resources}, embedder, nil)
}

func TestLoadQueriesParsesFixture(t *testing.T) {
	ResetQueries()
	cfg, err := LoadQueries()
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Tier1)
	require.NotEmpty(t, cfg.Tier2)
	require.NotEmpty(t, cfg.Negative)
}

func TestValidatorRunAllAgainstFixtureEngine(t *testing.T) {
	ResetQueries()
	v := NewValidator(newFixtureEngine())

	result := v.RunAll(context.Background())

	assert.Equal(t, result.Tier1Total, result.Tier1Pass, "tier1 golden queries should all pass against the fixture engine")
	assert.Equal(t, result.NegTotal, result.NegPass, "negative queries must degrade gracefully")
}

func TestRunQueryReportsMatchPosition(t *testing.T) {
	ResetQueries()
	v := NewValidator(newFixtureEngine())

	tr := v.RunQuery(context.Background(), QuerySpec{
		Query:    "introduction to algorithms",
		Expected: []string{"res-algorithms-101"},
		Tier:     1,
	})

	assert.True(t, tr.Passed)
	assert.Equal(t, 0, tr.MatchedAt)
}

func TestRunQueryNegativeEmptyQueryPasses(t *testing.T) {
	ResetQueries()
	v := NewValidator(newFixtureEngine())

	tr := v.RunQuery(context.Background(), QuerySpec{Query: "", Tier: 0})

	assert.True(t, tr.Passed)
	assert.Empty(t, tr.Error)
}
