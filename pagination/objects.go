package pagination

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/internal/objectpath"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/stores/memory"
)

// DocumentSource produces the collection a materialized page is cut from.
type DocumentSource func(ctx context.Context) ([]bson.M, error)

// StaticDocuments is a DocumentSource over docs.
func StaticDocuments(docs []bson.M) DocumentSource {
	return func(context.Context) ([]bson.M, error) {
		return docs, nil
	}
}

// ObjectsRequest is one materialized page request.
type ObjectsRequest struct {
	// IDPath addresses the identifier of each document. Defaults to the
	// configured ID field.
	IDPath string `json:"idPath,omitempty" validate:"omitempty,fieldpath"`
	// Query is a filter in the subset understood by memory.ParseFilter.
	Query bson.M `json:"query,omitempty"`
	// Sort is applied in order, then by IDPath in the direction of the last
	// key unless IDPath is already one of the keys.
	Sort      []SortParams `json:"sort,omitempty" validate:"dive"`
	Limit     int          `json:"limit,omitempty" validate:"gte=-1"`
	Cursor    string       `json:"cursor,omitempty"`
	Direction Direction    `json:"direction,omitempty" validate:"omitempty,oneof=AFTER BEFORE"`
}

// ObjectConnection is the materialized Page. Everything is computed up
// front, so its accessors never fail.
type ObjectConnection struct {
	edges           []Edge
	hasNextPage     bool
	hasPreviousPage bool
	totalCount      int64
}

var _ Page = (*ObjectConnection)(nil)

type sortKeyField struct {
	path  string
	order int
}

type sortable struct {
	edge Edge
	keys []interface{}
}

// FindObjects filters, sorts and slices the documents of src.
func FindObjects(ctx context.Context, src DocumentSource, req ObjectsRequest, opts *query.Options) (*ObjectConnection, error) {
	if opts == nil {
		opts = query.DefaultOptions()
	}
	direction, err := ParseDirection(string(req.Direction))
	if err != nil {
		return nil, err
	}
	req.Direction = direction
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	idPath := strings.TrimSpace(req.IDPath)
	if idPath == "" {
		idPath = opts.GetIDFieldName()
	}
	fields, err := objectSortFields(req.Sort, idPath)
	if err != nil {
		return nil, err
	}
	after, err := canonicalCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	filter, err := memory.ParseFilter(req.Query)
	if err != nil {
		return nil, err
	}

	docs, err := src(ctx)
	if err != nil {
		return nil, err
	}

	matcher := memory.NewMatcher(nil)
	items := make([]sortable, 0, len(docs))
	for _, doc := range docs {
		ok, err := matcher.Matches(filter, doc)
		if err != nil {
			return nil, query.NewExecutionError("evaluate filter", err)
		}
		if !ok {
			continue
		}
		id, found := objectpath.Get(doc, idPath)
		if !found || id == nil {
			return nil, query.NewValidationError("idPath", fmt.Sprintf("unable to extract a node ID using path %s", idPath))
		}
		c, err := cursor.Encode(id)
		if err != nil {
			return nil, query.NewExecutionError("encode cursor", err)
		}
		items = append(items, sortable{
			edge: Edge{Node: doc, Cursor: c},
			keys: sortValues(doc, fields),
		})
	}

	cmp := memory.NewComparer(nil)
	slices.SortStableFunc(items, func(a, b sortable) int {
		for i, f := range fields {
			if r := cmp.Compare(a.keys[i], b.keys[i]); r != 0 {
				return r * f.order
			}
		}
		return 0
	})

	all := make([]Edge, len(items))
	for i, it := range items {
		all[i] = it.edge
	}

	w := newWindow(direction, after, opts.ValidatePageSize(req.Limit))
	return &ObjectConnection{
		edges:           w.edges(all),
		hasNextPage:     w.hasNextPage(all),
		hasPreviousPage: w.hasPreviousPage(all),
		totalCount:      int64(len(all)),
	}, nil
}

func objectSortFields(params []SortParams, idPath string) ([]sortKeyField, error) {
	fields := make([]sortKeyField, 0, len(params)+1)
	hasID := false
	order := 1
	for i, p := range params {
		path := strings.TrimSpace(p.Field)
		if path == "" {
			return nil, query.NewValidationError(fmt.Sprintf("sort[%d].field", i), "is required")
		}
		hasID = hasID || path == idPath
		order = query.ParseOrder(p.Order)
		fields = append(fields, sortKeyField{path: path, order: order})
	}
	if !hasID {
		fields = append(fields, sortKeyField{path: idPath, order: order})
	}
	return fields, nil
}

func sortValues(doc bson.M, fields []sortKeyField) []interface{} {
	keys := make([]interface{}, len(fields))
	for i, f := range fields {
		v := objectpath.Value(doc, f.path)
		if s, ok := v.(string); ok {
			v = sortKey(s)
		}
		keys[i] = v
	}
	return keys
}

// canonicalCursor decodes c and re-encodes it, so that padding and
// surrounding space do not defeat the positional lookup.
func canonicalCursor(c string) (string, error) {
	c = strings.TrimSpace(c)
	if c == "" {
		return "", nil
	}
	id, err := cursor.Decode(c)
	if err != nil {
		return "", err
	}
	return cursor.Encode(id)
}

// Edges returns the page's edges in display order.
func (c *ObjectConnection) Edges(context.Context) ([]Edge, error) {
	return c.edges, nil
}

// HasNextPage reports whether documents follow the page.
func (c *ObjectConnection) HasNextPage(context.Context) (bool, error) {
	return c.hasNextPage, nil
}

// HasPreviousPage reports whether documents precede the page.
func (c *ObjectConnection) HasPreviousPage(context.Context) (bool, error) {
	return c.hasPreviousPage, nil
}

// StartCursor returns the cursor of the first edge, or "".
func (c *ObjectConnection) StartCursor(context.Context) (string, error) {
	if len(c.edges) == 0 {
		return "", nil
	}
	return c.edges[0].Cursor, nil
}

// EndCursor returns the cursor of the last edge, or "".
func (c *ObjectConnection) EndCursor(context.Context) (string, error) {
	if len(c.edges) == 0 {
		return "", nil
	}
	return c.edges[len(c.edges)-1].Cursor, nil
}

// TotalCount is the number of documents matching the query.
func (c *ObjectConnection) TotalCount(context.Context) (int64, error) {
	return c.totalCount, nil
}
