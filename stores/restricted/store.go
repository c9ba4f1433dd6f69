// Package restricted wraps a store and confines every query it forwards to a
// list of allowed fields.
package restricted

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
	"github.com/hadi77ir/go-docpager/stores/memory"
)

// Store wraps another store and rejects any filter, sort or projection that
// references a field outside its allowed list. A field is allowed when it, or
// one of its ancestors, is listed. The id field is always allowed.
//
// Wrapping a restricted store again narrows the list to the intersection.
type Store struct {
	inner         store.Store
	allowedFields []string
	idField       string
}

var _ store.Store = (*Store)(nil)

// New wraps inner. An empty allowedFields list imposes no restriction.
func New(inner store.Store, allowedFields []string, opts *query.Options) *Store {
	return &Store{
		inner:         inner,
		allowedFields: allowedFields,
		idField:       opts.GetIDFieldName(),
	}
}

// Name returns the name of this store
func (s *Store) Name() string {
	return "restricted"
}

// Find checks every referenced field before delegating to the inner store.
func (s *Store) Find(ctx context.Context, filter query.Node, opts *query.FindOptions) ([]bson.M, error) {
	if err := s.validateFilterFields(filter); err != nil {
		return nil, err
	}
	if opts != nil {
		if err := s.validateSort(opts.Sort); err != nil {
			return nil, err
		}
		if err := s.validateProjection(opts.Projection); err != nil {
			return nil, err
		}
	}
	return s.inner.Find(ctx, filter, opts)
}

// FindOne checks every referenced field before delegating to the inner store.
func (s *Store) FindOne(ctx context.Context, filter query.Node, opts *query.FindOneOptions) (bson.M, error) {
	if err := s.validateFilterFields(filter); err != nil {
		return nil, err
	}
	if opts != nil {
		if err := s.validateSort(opts.Sort); err != nil {
			return nil, err
		}
		if err := s.validateProjection(opts.Projection); err != nil {
			return nil, err
		}
	}
	return s.inner.FindOne(ctx, filter, opts)
}

// CountDocuments checks the filter fields before delegating to the inner store.
func (s *Store) CountDocuments(ctx context.Context, filter query.Node) (int64, error) {
	if err := s.validateFilterFields(filter); err != nil {
		return 0, err
	}
	return s.inner.CountDocuments(ctx, filter)
}

// validateFilterFields walks the predicate tree. Native filters are parsed so
// their field references are checked too; a native filter outside the
// understood subset is rejected.
func (s *Store) validateFilterFields(node query.Node) error {
	switch n := node.(type) {
	case nil:
		return nil
	case *query.BinaryOpNode:
		if err := s.validateFilterFields(n.Left); err != nil {
			return err
		}
		return s.validateFilterFields(n.Right)
	case *query.ComparisonNode:
		if !s.isFieldAllowed(n.Field) {
			return query.FieldNotAllowedError(n.Field)
		}
		return nil
	case *query.RawNode:
		parsed, err := memory.ParseFilter(n.Filter)
		if err != nil {
			return err
		}
		return s.validateFilterFields(parsed)
	default:
		return fmt.Errorf("%w: unknown node type", query.ErrInvalidQuery)
	}
}

func (s *Store) validateSort(sort query.Sort) error {
	for _, f := range sort {
		if !s.isFieldAllowed(f.Field) {
			return query.FieldNotAllowedError(f.Field)
		}
	}
	return nil
}

func (s *Store) validateProjection(projection bson.M) error {
	for field := range projection {
		if !s.isFieldAllowed(field) {
			return query.FieldNotAllowedError(field)
		}
	}
	return nil
}

// isFieldAllowed checks if a field is covered by the allowed fields list.
// Returns true if allowedFields is empty (no restriction).
func (s *Store) isFieldAllowed(field string) bool {
	if len(s.allowedFields) == 0 {
		return true
	}
	field = strings.TrimSpace(field)
	if field == s.idField {
		return true
	}
	return slices.ContainsFunc(s.allowedFields, func(allowed string) bool {
		return field == allowed || objectpath.IsDescendant(field, allowed)
	})
}
