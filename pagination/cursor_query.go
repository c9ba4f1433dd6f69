package pagination

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/loader"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

// ReferenceLoader fetches the document a cursor points at. *loader.Loader
// satisfies it.
type ReferenceLoader interface {
	Load(ctx context.Context, p loader.Params) (bson.M, error)
}

// CursorQuery is the range predicate positioning a page relative to a cursor.
// It is kept structural so its complement can be derived without touching the
// caller's filter.
type CursorQuery struct {
	// Field is the sort field; equal to IDField for a primary key sort.
	Field   string
	IDField string
	// Operator is the strict comparison walking away from the cursor.
	Operator query.ComparisonOperator
	// Value is the sort value of the referenced document.
	Value interface{}
	// ID is the decoded cursor.
	ID interface{}
}

// IsCompound reports whether the predicate carries a tie-break on the id.
func (q *CursorQuery) IsCompound() bool {
	return q.Field != q.IDField
}

// Node renders the predicate:
//
//	id <op> cursor                                   (primary key sort)
//	field <op> v OR (field == v AND id <op> cursor)  (compound sort)
func (q *CursorQuery) Node() query.Node {
	if q == nil {
		return nil
	}
	return q.render(q.Operator, q.Operator)
}

// Complement renders the predicate selecting every document at or on the
// other side of the cursor: each range operator is swapped for its inclusive
// complement holding the same boundary. Only this predicate is rewritten.
func (q *CursorQuery) Complement() query.Node {
	if q == nil {
		return nil
	}
	op := q.Operator.Complement()
	return q.render(op.Strict(), op)
}

func (q *CursorQuery) render(fieldOp, idOp query.ComparisonOperator) query.Node {
	if !q.IsCompound() {
		return query.Compare(q.IDField, idOp, q.ID)
	}
	return query.Or(
		query.Compare(q.Field, fieldOp, q.Value),
		query.And(
			query.Compare(q.Field, query.OpEqual, q.Value),
			query.Compare(q.IDField, idOp, q.ID),
		),
	)
}

// arrayIndexPattern matches sort fields addressing one array element, e.g.
// "ratings.0".
var arrayIndexPattern = regexp.MustCompile(`^(.+)\.(\d+)$`)

// CursorInput is the input of BuildCursorQuery.
type CursorInput struct {
	Cursor    string
	Direction Direction
	Sort      *query.SortDescriptor
	// Loader, when set, fetches the referenced document so concurrent page
	// requests share one lookup.
	Loader ReferenceLoader
}

// BuildCursorQuery decodes the cursor and builds its range predicate. An empty
// cursor yields nil. A compound sort fetches the referenced document to learn
// its sort value; a missing document is a NotFoundError.
func BuildCursorQuery(ctx context.Context, s store.Store, in CursorInput) (*CursorQuery, error) {
	if in.Cursor == "" {
		return nil, nil
	}
	id, err := cursor.Decode(in.Cursor)
	if err != nil {
		return nil, err
	}

	sort := in.Sort
	q := &CursorQuery{
		Field:    sort.Field(),
		IDField:  sort.IDField(),
		Operator: query.RangeOperator(sort.Order() * in.Direction.Sign()),
		ID:       id,
	}
	if !q.IsCompound() {
		return q, nil
	}

	value, err := referenceValue(ctx, s, in.Loader, q.IDField, q.Field, id)
	if err != nil {
		return nil, err
	}
	q.Value = value
	return q, nil
}

// referenceValue reads field from the document whose id is id. Array element
// fields are fetched with $slice so only the addressed element is returned.
func referenceValue(ctx context.Context, s store.Store, l ReferenceLoader, idField, field string, id interface{}) (interface{}, error) {
	var (
		doc bson.M
		err error
	)
	match := arrayIndexPattern.FindStringSubmatch(field)

	if l != nil {
		// loader projections are field lists, so fetch the whole array
		path := field
		if match != nil {
			path = match[1]
		}
		doc, err = l.Load(ctx, loader.Params{
			ForeignField: idField,
			Value:        id,
			Projection:   bson.M{path: 1},
			Strict:       true,
		})
		if err != nil {
			return nil, err
		}
		return objectpath.Value(doc, field), nil
	}

	projection := bson.M{idField: 1, field: 1}
	valuePath := field
	if match != nil {
		index, err := strconv.Atoi(match[2])
		if err != nil {
			return nil, query.InvalidFieldNameError(field)
		}
		projection = bson.M{idField: 1, match[1]: bson.M{"$slice": bson.A{index, 1}}}
		valuePath = match[1] + ".0"
	}

	doc, err = s.FindOne(ctx, query.Compare(idField, query.OpEqual, id), &query.FindOneOptions{Projection: projection})
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, query.NewNotFoundError("document", fmt.Sprintf("%s:%v", idField, id))
	}
	return objectpath.Value(doc, valuePath), nil
}
