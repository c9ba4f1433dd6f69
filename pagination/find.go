// Package pagination implements relay-style cursor pagination over a
// document store, in live-query mode (one store query per page) and in
// materialized mode (over documents already in memory).
package pagination

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/logger"
	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

// Paginator reads pages from one store.
type Paginator struct {
	store   store.Store
	options *query.Options
	logger  logger.Logger
	loader  ReferenceLoader
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Paginator) {
		p.logger = l
	}
}

// WithLoader makes cursor reference lookups go through l. Loaders are request
// scoped, so a Paginator using one should be too.
func WithLoader(l ReferenceLoader) Option {
	return func(p *Paginator) {
		p.loader = l
	}
}

// New creates a Paginator over s.
func New(s store.Store, opts *query.Options, options ...Option) *Paginator {
	if opts == nil {
		opts = query.DefaultOptions()
	}
	p := &Paginator{
		store:   s,
		options: opts,
		logger:  logger.NewNoopLogger(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Find validates req and returns its page. Validation and cursor decoding
// happen before any I/O. A compound-sort cursor costs one reference lookup
// here; the page itself is only queried when an accessor is first read.
func (p *Paginator) Find(ctx context.Context, req Request) (*Connection, error) {
	pl, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	pl.cursor, err = BuildCursorQuery(ctx, p.store, CursorInput{
		Cursor:    strings.TrimSpace(req.Cursor),
		Direction: pl.direction,
		Sort:      pl.sort,
		Loader:    p.loader,
	})
	if err != nil {
		return nil, err
	}

	return &Connection{store: p.store, plan: pl, logger: p.logger}, nil
}

func (p *Paginator) prepare(req Request) (*plan, error) {
	direction, err := ParseDirection(string(req.Direction))
	if err != nil {
		return nil, err
	}
	req.Direction = direction
	req.Sort.Field = strings.TrimSpace(req.Sort.Field)

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := checkCursor(req.Cursor); err != nil {
		return nil, err
	}

	sort := query.NewSortDescriptor(req.Sort.Field, req.Sort.Order, p.options)
	if !sort.IsIDSort() && !p.options.IsFieldAllowed(sort.Field()) {
		return nil, query.FieldNotAllowedError(sort.Field())
	}

	pl := &plan{
		query:      req.Query,
		sort:       sort,
		limit:      p.options.ValidatePageSize(req.Limit),
		direction:  direction,
		projection: normalizeProjection(req.Projection, req.ExcludeProjection, sort.Field(), sort.IDField()),
	}
	if req.Collate || req.Collation != nil {
		collation := sort.WithCollation(req.Collation).Collation()
		pl.collation = &collation
	}
	return pl, nil
}

// normalizeProjection forces the id and the sort field's top-level segment
// into a restricted projection, then removes the excluded fields. A nil
// projection selects every field and is returned as is.
func normalizeProjection(projection bson.M, exclude []string, sortField, idField string) bson.M {
	if len(projection) == 0 {
		return nil
	}
	out := make(bson.M, len(projection)+2)
	for k, v := range projection {
		out[k] = v
	}
	out[idField] = 1

	top := objectpath.TopLevel(sortField)
	if _, ok := out[top]; !ok {
		for k := range out {
			if objectpath.IsDescendant(k, top) {
				delete(out, k)
			}
		}
		out[top] = 1
	}

	for _, k := range exclude {
		delete(out, k)
	}
	return out
}
