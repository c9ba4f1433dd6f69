package pagination

import (
	"context"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/internal/logger"
	"github.com/hadi77ir/go-docpager/query"
	"github.com/hadi77ir/go-docpager/store"
)

// Edge is a result document paired with its cursor.
type Edge struct {
	Node   bson.M `json:"node"`
	Cursor string `json:"cursor"`
}

// PageInfo is the resolved pagination metadata of a page.
type PageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
}

// Page is the lazily evaluated response of a paginated read. Every accessor
// may be called any number of times and in any order.
type Page interface {
	Edges(ctx context.Context) ([]Edge, error)
	HasNextPage(ctx context.Context) (bool, error)
	HasPreviousPage(ctx context.Context) (bool, error)
	StartCursor(ctx context.Context) (string, error)
	EndCursor(ctx context.Context) (string, error)
	TotalCount(ctx context.Context) (int64, error)
}

// Result is a fully resolved page.
type Result struct {
	Edges      []Edge   `json:"edges"`
	PageInfo   PageInfo `json:"pageInfo"`
	TotalCount *int64   `json:"totalCount,omitempty"`
}

// Resolve reads every accessor of p. The count is read only when withCount is
// set.
func Resolve(ctx context.Context, p Page, withCount bool) (*Result, error) {
	var (
		out Result
		err error
	)
	if out.Edges, err = p.Edges(ctx); err != nil {
		return nil, err
	}
	if out.PageInfo.HasNextPage, err = p.HasNextPage(ctx); err != nil {
		return nil, err
	}
	if out.PageInfo.HasPreviousPage, err = p.HasPreviousPage(ctx); err != nil {
		return nil, err
	}
	if out.PageInfo.StartCursor, err = p.StartCursor(ctx); err != nil {
		return nil, err
	}
	if out.PageInfo.EndCursor, err = p.EndCursor(ctx); err != nil {
		return nil, err
	}
	if withCount {
		n, err := p.TotalCount(ctx)
		if err != nil {
			return nil, err
		}
		out.TotalCount = &n
	}
	return &out, nil
}

// plan is a validated, normalized page request.
type plan struct {
	query      bson.M
	sort       *query.SortDescriptor
	limit      int
	direction  Direction
	cursor     *CursorQuery
	projection bson.M
	collation  *query.Collation
	legacy     bool
}

// findOptions prepares the primary query: the reversed sort when reading
// BEFORE, and one peek row unless the page is unbounded.
func (p *plan) findOptions() *query.FindOptions {
	opts := &query.FindOptions{
		Sort:       p.sort.Value(),
		Projection: p.projection,
		Collation:  p.collation,
	}
	if p.direction == DirectionBefore {
		opts.Sort = p.sort.ValueReversed()
	}
	if p.limit != query.NoLimit {
		opts.Limit = int64(p.limit) + 1
	}
	return opts
}

// filter ANDs the cursor predicate with the caller's query.
func (p *plan) filter() query.Node {
	return query.And(p.cursor.Node(), query.Raw(p.query))
}

type pageResult struct {
	edges   []Edge
	hasMore bool
}

// Connection is the live-query Page. The primary query runs at most once,
// on the first accessor call; every accessor reads the same snapshot. The
// count and the existence probe are separate queries, each also run at most
// once and only when asked for.
//
// Memoized results keep the context of the call that triggered them.
type Connection struct {
	store  store.Store
	plan   *plan
	logger logger.Logger

	once   sync.Once
	result *pageResult
	err    error

	probeOnce sync.Once
	probe     bool
	probeErr  error

	countOnce sync.Once
	count     int64
	countErr  error
}

var _ Page = (*Connection)(nil)

func (c *Connection) run(ctx context.Context) (*pageResult, error) {
	c.once.Do(func() {
		c.result, c.err = c.execute(ctx)
	})
	return c.result, c.err
}

func (c *Connection) execute(ctx context.Context) (*pageResult, error) {
	p := c.plan
	opts := p.findOptions()
	c.logger.DebugWithContext(ctx, "paginate",
		zap.String("store", c.store.Name()),
		zap.String("sort_field", p.sort.Field()),
		zap.Int("sort_order", p.sort.Order()),
		zap.String("direction", string(p.direction)),
		zap.Int64("limit", opts.Limit),
		zap.Bool("cursor", p.cursor != nil),
	)

	docs, err := c.store.Find(ctx, p.filter(), opts)
	if err != nil {
		return nil, err
	}

	if p.direction == DirectionBefore {
		slices.Reverse(docs)
	}
	hasMore := p.limit != query.NoLimit && len(docs) > p.limit
	if hasMore {
		// drop the peek row, which lies furthest from the cursor
		if p.direction == DirectionBefore {
			docs = docs[1:]
		} else {
			docs = docs[:p.limit]
		}
	}

	edges, err := buildEdges(docs, p.sort.IDField())
	if err != nil {
		return nil, err
	}
	return &pageResult{edges: edges, hasMore: hasMore}, nil
}

func buildEdges(docs []bson.M, idField string) ([]Edge, error) {
	edges := make([]Edge, len(docs))
	for i, doc := range docs {
		c, err := cursor.Encode(doc[idField])
		if err != nil {
			return nil, query.NewExecutionError("encode cursor", err)
		}
		edges[i] = Edge{Node: doc, Cursor: c}
	}
	return edges, nil
}

// Edges returns the page's edges in display order.
func (c *Connection) Edges(ctx context.Context) ([]Edge, error) {
	res, err := c.run(ctx)
	if err != nil {
		return nil, err
	}
	return res.edges, nil
}

// HasNextPage reports whether documents follow the page.
func (c *Connection) HasNextPage(ctx context.Context) (bool, error) {
	if c.plan.direction == DirectionAfter {
		res, err := c.run(ctx)
		if err != nil {
			return false, err
		}
		return res.hasMore, nil
	}
	return c.hasAnotherPage(ctx)
}

// HasPreviousPage reports whether documents precede the page.
func (c *Connection) HasPreviousPage(ctx context.Context) (bool, error) {
	if c.plan.direction == DirectionBefore {
		res, err := c.run(ctx)
		if err != nil {
			return false, err
		}
		return res.hasMore, nil
	}
	if c.plan.legacy {
		return false, nil
	}
	return c.hasAnotherPage(ctx)
}

// hasAnotherPage probes for a document on the far side of the cursor, i.e.
// matching the complement of the cursor predicate and the caller's query.
func (c *Connection) hasAnotherPage(ctx context.Context) (bool, error) {
	p := c.plan
	if p.cursor == nil {
		return false, nil
	}
	res, err := c.run(ctx)
	if err != nil {
		return false, err
	}
	if len(res.edges) == 0 {
		return false, nil
	}

	c.probeOnce.Do(func() {
		var doc bson.M
		doc, c.probeErr = c.store.FindOne(ctx,
			query.And(p.cursor.Complement(), query.Raw(p.query)),
			&query.FindOneOptions{
				Sort:       p.sort.Value(),
				Projection: bson.M{p.sort.IDField(): 1},
				Collation:  p.collation,
			})
		c.probe = doc != nil
	})
	return c.probe, c.probeErr
}

// StartCursor returns the cursor of the first edge, or "" for an empty page.
func (c *Connection) StartCursor(ctx context.Context) (string, error) {
	res, err := c.run(ctx)
	if err != nil || len(res.edges) == 0 {
		return "", err
	}
	return res.edges[0].Cursor, nil
}

// EndCursor returns the cursor of the last edge, or "" for an empty page.
func (c *Connection) EndCursor(ctx context.Context) (string, error) {
	res, err := c.run(ctx)
	if err != nil || len(res.edges) == 0 {
		return "", err
	}
	if c.plan.legacy && !res.hasMore {
		return "", nil
	}
	return res.edges[len(res.edges)-1].Cursor, nil
}

// TotalCount counts every document matching the caller's query, ignoring the
// pagination window.
func (c *Connection) TotalCount(ctx context.Context) (int64, error) {
	c.countOnce.Do(func() {
		c.count, c.countErr = c.store.CountDocuments(ctx, query.Raw(c.plan.query))
	})
	return c.count, c.countErr
}
