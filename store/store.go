package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

// Store is the interface that all document store back ends must implement.
// A nil filter matches every document.
type Store interface {
	// Find returns the documents matching filter, ordered and limited by opts.
	// Example: docs, err := s.Find(ctx, query.Compare("_id", query.OpGreaterThan, id), &query.FindOptions{Limit: 11})
	Find(ctx context.Context, filter query.Node, opts *query.FindOptions) ([]bson.M, error)

	// FindOne returns the first document matching filter, or nil when none match.
	// A miss is not an error.
	FindOne(ctx context.Context, filter query.Node, opts *query.FindOneOptions) (bson.M, error)

	// CountDocuments returns the total number of documents matching filter.
	// This does not apply pagination - it counts all matching items
	CountDocuments(ctx context.Context, filter query.Node) (int64, error)

	// Name returns the name of this store
	Name() string
}
