package pagination

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
	"github.com/hadi77ir/go-docpager/stores/memory"
)

// countingStore counts the queries issued against the wrapped store.
type countingStore struct {
	store.Store

	mu       sync.Mutex
	finds    int
	findOnes int
	counts   int
}

func newCountingStore(docs []bson.M) *countingStore {
	return &countingStore{Store: memory.New(docs, nil)}
}

func (s *countingStore) Find(ctx context.Context, filter query.Node, opts *query.FindOptions) ([]bson.M, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.Store.Find(ctx, filter, opts)
}

func (s *countingStore) FindOne(ctx context.Context, filter query.Node, opts *query.FindOneOptions) (bson.M, error) {
	s.mu.Lock()
	s.findOnes++
	s.mu.Unlock()
	return s.Store.FindOne(ctx, filter, opts)
}

func (s *countingStore) CountDocuments(ctx context.Context, filter query.Node) (int64, error) {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	return s.Store.CountDocuments(ctx, filter)
}

func (s *countingStore) totals() (finds, findOnes, counts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds, s.findOnes, s.counts
}

// sequence returns documents with ids 1..n.
func sequence(n int) []bson.M {
	docs := make([]bson.M, n)
	for i := range docs {
		docs[i] = bson.M{"_id": i + 1}
	}
	return docs
}

// ids extracts the node ids of a page as ints.
func ids(t *testing.T, p Page) []int {
	t.Helper()
	edges, err := p.Edges(context.Background())
	require.NoError(t, err)
	out := make([]int, len(edges))
	for i, e := range edges {
		switch v := e.Node["_id"].(type) {
		case int:
			out[i] = v
		case int32:
			out[i] = int(v)
		case int64:
			out[i] = int(v)
		default:
			t.Fatalf("unexpected id type %T", v)
		}
	}
	return out
}

func pageInfo(t *testing.T, p Page) PageInfo {
	t.Helper()
	res, err := Resolve(context.Background(), p, false)
	require.NoError(t, err)
	return res.PageInfo
}
