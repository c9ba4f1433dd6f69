// Package memory implements store.Store over documents held in process
// memory. It evaluates the same predicate trees the paginators send to the
// document store, which makes it the reference back end for tests and for
// paginating already-loaded result sets.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/internal/telemetry"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

// DataSourceFunc returns the documents to query. It is called on every read,
// allowing the data to change between queries.
type DataSourceFunc func() []bson.M

// Store executes reads on in-memory documents
type Store struct {
	mu         sync.RWMutex
	docs       []bson.M
	dataSource DataSourceFunc
	options    *query.Options
}

var _ store.Store = (*Store)(nil)

// New creates a store holding docs
func New(docs []bson.M, opts *query.Options) *Store {
	if opts == nil {
		opts = query.DefaultOptions()
	}
	s := &Store{options: opts}
	s.docs = append(s.docs, docs...)
	s.dataSource = s.snapshot
	return s
}

// NewWithDataSource creates a store reading from a dynamic data source.
// Insert is not supported on such a store.
func NewWithDataSource(dataSource DataSourceFunc, opts *query.Options) *Store {
	if opts == nil {
		opts = query.DefaultOptions()
	}
	return &Store{dataSource: dataSource, options: opts}
}

// Insert appends documents to a store created with New
func (s *Store) Insert(docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
}

func (s *Store) snapshot() []bson.M {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bson.M(nil), s.docs...)
}

// Find returns copies of the documents matching filter
func (s *Store) Find(ctx context.Context, filter query.Node, opts *query.FindOptions) ([]bson.M, error) {
	defer observe("find", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &query.FindOptions{}
	}

	matched, err := s.filter(filter, opts.Collation)
	if err != nil {
		return nil, err
	}

	if len(opts.Sort) > 0 {
		sortDocs(matched, opts.Sort, NewComparer(opts.Collation))
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]bson.M, 0, len(matched))
	for _, doc := range matched {
		projected, err := Project(doc, opts.Projection, s.options.GetIDFieldName())
		if err != nil {
			return nil, query.NewExecutionError("project", err)
		}
		out = append(out, projected)
	}
	return out, nil
}

// FindOne returns the first matching document, or nil when none match
func (s *Store) FindOne(ctx context.Context, filter query.Node, opts *query.FindOneOptions) (bson.M, error) {
	if opts == nil {
		opts = &query.FindOneOptions{}
	}
	docs, err := s.Find(ctx, filter, &query.FindOptions{
		Sort:       opts.Sort,
		Limit:      1,
		Projection: opts.Projection,
		Collation:  opts.Collation,
	})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// CountDocuments returns the number of documents matching filter
func (s *Store) CountDocuments(ctx context.Context, filter query.Node) (int64, error) {
	defer observe("count", time.Now())
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matched, err := s.filter(filter, nil)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Name returns the store name
func (s *Store) Name() string {
	return "memory"
}

func (s *Store) filter(filter query.Node, collation *query.Collation) ([]bson.M, error) {
	docs := s.dataSource()
	if filter == nil {
		return append([]bson.M(nil), docs...), nil
	}

	matcher := NewMatcher(collation)
	filtered := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		match, err := matcher.Matches(filter, doc)
		if err != nil {
			// If error is already an ExecutionError, preserve it
			var execErr *query.ExecutionError
			if errors.As(err, &execErr) {
				return nil, err
			}
			return nil, query.NewExecutionError("evaluate filter", err)
		}
		if match {
			filtered = append(filtered, doc)
		}
	}
	return filtered, nil
}

// sortDocs orders docs by a compound sort. Missing fields sort as null.
func sortDocs(docs []bson.M, by query.Sort, cmp *Comparer) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range by {
			d := cmp.Compare(objectpath.Value(docs[i], f.Field), objectpath.Value(docs[j], f.Field))
			if d == 0 {
				continue
			}
			if f.Order < 0 {
				return d > 0
			}
			return d < 0
		}
		return false
	})
}

func observe(operation string, start time.Time) {
	telemetry.StoreQueryDuration.WithLabelValues("memory", operation).
		Observe(float64(time.Since(start).Milliseconds()))
}
