package coreapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ram-tewari/neo-alexandria-sub002/internal/authority"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/config"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/domain"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/search"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/searchmetrics"
	"github.com/ram-tewari/neo-alexandria-sub002/internal/store"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	resources := store.NewResourceStore(db)
	taxonomy := store.NewTaxonomyStore(db)
	lexical := store.NewLexicalIndex(db)

	authSvc, err := authority.NewService(db, config.DefaultAuthorityConfig())
	require.NoError(t, err)

	engine := search.NewEngine(lexical, nil, nil, resources, nil, nil)
	return NewService(engine, resources, taxonomy, authSvc)
}

func seedResource(t *testing.T, svc Service, resources *store.ResourceStore, id, title, code string) {
	t.Helper()
	r := &domain.Resource{
		ID:                 id,
		Title:              title,
		Description:        title,
		IngestionStatus:    domain.IngestionCompleted,
		ClassificationCode: code,
	}
	require.NoError(t, resources.Create(r))
}

func TestSearch_StructuredModeListsAll(t *testing.T) {
	svc := newTestService(t)
	s := svc.(*service)
	seedResource(t, svc, s.resources, "r1", "Introduction to Machine Learning", authority.CodeScience)
	seedResource(t, svc, s.resources, "r2", "A History of Rome", authority.CodeHistory)

	res, err := svc.Search(context.Background(), domain.Query{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
}

func TestCompareMethods_RunsLexicalLegStandalone(t *testing.T) {
	svc := newTestService(t)
	s := svc.(*service)
	seedResource(t, svc, s.resources, "r1", "Introduction to Machine Learning", authority.CodeScience)

	cmp, err := svc.CompareMethods(context.Background(), "machine learning", 10)
	require.NoError(t, err)
	require.Equal(t, "machine learning", cmp.Query)

	var sawLexical bool
	for _, m := range cmp.Results {
		if m.Method == "lexical" {
			sawLexical = true
			require.Contains(t, m.IDs, "r1")
		}
	}
	require.True(t, sawLexical)
}

func TestEvaluate_EmptyCorpusYieldsZeroMetrics(t *testing.T) {
	svc := newTestService(t)

	metrics, err := svc.Evaluate(context.Background(), "anything", searchmetrics.Judgments{}, 10)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	require.Zero(t, metrics.NDCG)
}

func TestClassificationTree_BucketsByFixedCodes(t *testing.T) {
	svc := newTestService(t)
	s := svc.(*service)
	seedResource(t, svc, s.resources, "r1", "Intro to Go", authority.CodeGeneral)
	seedResource(t, svc, s.resources, "r2", "Intro to Go Again", authority.CodeGeneral)
	seedResource(t, svc, s.resources, "r3", "A History of Rome", authority.CodeHistory)

	buckets, err := svc.ClassificationTree(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 4)

	counts := map[string]int{}
	for _, b := range buckets {
		counts[b.Code] = b.Count
	}
	require.Equal(t, 2, counts[authority.CodeGeneral])
	require.Equal(t, 1, counts[authority.CodeHistory])
	require.Equal(t, 0, counts[authority.CodeLanguage])
}

func TestTaxonomyTree_BuildsNestedChildren(t *testing.T) {
	svc := newTestService(t)

	root := &domain.TaxonomyNode{ID: "root", Name: "Root", Slug: "root"}
	require.NoError(t, svc.CreateTaxonomyNode(context.Background(), root))
	child := &domain.TaxonomyNode{ID: "child", Name: "Child", Slug: "child", ParentID: "root"}
	require.NoError(t, svc.CreateTaxonomyNode(context.Background(), child))

	tree, err := svc.TaxonomyTree(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, "root", tree[0].Node.ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "child", tree[0].Children[0].Node.ID)
}

func TestCreateTaxonomyNode_RejectsEmptyID(t *testing.T) {
	svc := newTestService(t)
	err := svc.CreateTaxonomyNode(context.Background(), &domain.TaxonomyNode{Name: "No ID"})
	require.Error(t, err)
}

func TestMoveAndDeleteTaxonomyNode(t *testing.T) {
	svc := newTestService(t)

	a := &domain.TaxonomyNode{ID: "a", Name: "A", Slug: "a"}
	b := &domain.TaxonomyNode{ID: "b", Name: "B", Slug: "b"}
	require.NoError(t, svc.CreateTaxonomyNode(context.Background(), a))
	require.NoError(t, svc.CreateTaxonomyNode(context.Background(), b))

	require.NoError(t, svc.MoveTaxonomyNode(context.Background(), "b", "a"))
	require.NoError(t, svc.DeleteTaxonomyNode(context.Background(), "b", false))
}
