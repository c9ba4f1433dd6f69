// Package mongodb implements store.Store over a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hadi77ir/go-docpager/internal/telemetry"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

var tracer = telemetry.Tracer("stores/mongodb")

// Store is the MongoDB implementation of the store interface
type Store struct {
	collection *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New creates a new MongoDB store over collection
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

// Name returns the name of this store
func (s *Store) Name() string {
	return "mongodb"
}

// Find runs a find command and decodes every document
func (s *Store) Find(ctx context.Context, filter query.Node, opts *query.FindOptions) (docs []bson.M, err error) {
	ctx, span := s.startSpan(ctx, "find")
	defer func() { endSpan(span, err) }()
	defer observe("find", time.Now())

	f, err := BuildFilter(filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if opts != nil {
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort.BSON())
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
			span.SetAttributes(attribute.Int64("db.limit", opts.Limit))
		}
		if len(opts.Projection) > 0 {
			findOpts.SetProjection(opts.Projection)
		}
		if opts.Collation != nil {
			findOpts.SetCollation(collation(opts.Collation))
		}
	}

	cur, err := s.collection.Find(ctx, f, findOpts)
	if err != nil {
		return nil, query.NewExecutionError("execute query", err)
	}
	defer cur.Close(ctx)

	docs = []bson.M{}
	for cur.Next(ctx) {
		doc, err := decodeDocument(cur.Current)
		if err != nil {
			return nil, query.NewExecutionError("decode result", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, query.NewExecutionError("fetch results", err)
	}
	span.SetAttributes(attribute.Int("db.documents", len(docs)))
	return docs, nil
}

// FindOne returns the first matching document, or nil when none match
func (s *Store) FindOne(ctx context.Context, filter query.Node, opts *query.FindOneOptions) (doc bson.M, err error) {
	ctx, span := s.startSpan(ctx, "find_one")
	defer func() { endSpan(span, err) }()
	defer observe("find_one", time.Now())

	f, err := BuildFilter(filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.FindOne()
	if opts != nil {
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort.BSON())
		}
		if len(opts.Projection) > 0 {
			findOpts.SetProjection(opts.Projection)
		}
		if opts.Collation != nil {
			findOpts.SetCollation(collation(opts.Collation))
		}
	}

	raw, err := s.collection.FindOne(ctx, f, findOpts).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, query.NewExecutionError("find one", err)
	}
	doc, err = decodeDocument(raw)
	if err != nil {
		return nil, query.NewExecutionError("decode result", err)
	}
	return doc, nil
}

// decodeDocument decodes a top-level document into bson.M while keeping every
// embedded document as an ordered bson.D. Compound identifiers compare field by
// field in order, so cursors and reference lookups must not lose it.
func decodeDocument(raw bson.Raw) (bson.M, error) {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(raw))
	if err != nil {
		return nil, err
	}
	dec.DefaultDocumentD()

	var doc bson.M
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CountDocuments counts the documents matching filter
func (s *Store) CountDocuments(ctx context.Context, filter query.Node) (n int64, err error) {
	ctx, span := s.startSpan(ctx, "count")
	defer func() { endSpan(span, err) }()
	defer observe("count", time.Now())

	f, err := BuildFilter(filter)
	if err != nil {
		return 0, err
	}
	n, err = s.collection.CountDocuments(ctx, f)
	if err != nil {
		return 0, query.NewExecutionError("count documents", err)
	}
	return n, nil
}

func (s *Store) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mongodb."+operation, trace.WithAttributes(
		attribute.String("db.system", "mongodb"),
		attribute.String("db.operation", operation),
		attribute.String("db.collection", s.collection.Name()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func collation(c *query.Collation) *options.Collation {
	return &options.Collation{
		Locale:          c.Locale,
		Strength:        c.Strength,
		CaseLevel:       c.CaseLevel,
		NumericOrdering: c.NumericOrdering,
	}
}

func observe(operation string, start time.Time) {
	telemetry.StoreQueryDuration.WithLabelValues("mongodb", operation).
		Observe(float64(time.Since(start).Milliseconds()))
}
