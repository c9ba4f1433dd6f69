package pagination

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

// AfterRequest is a forward-only page request.
type AfterRequest struct {
	Query bson.M     `json:"query,omitempty"`
	Sort  SortParams `json:"sort"`
	// Limit is the page size; 0 returns every matching document.
	Limit             int              `json:"limit,omitempty" validate:"gte=0"`
	After             string           `json:"after,omitempty"`
	Projection        bson.M           `json:"projection,omitempty"`
	ExcludeProjection []string         `json:"excludeProjection,omitempty" validate:"dive,fieldpath"`
	Collate           bool             `json:"collate,omitempty"`
	Collation         *query.Collation `json:"collation,omitempty"`
}

// FindAfter reads the page following req.After. It never probes backwards:
// HasPreviousPage is always false and EndCursor is empty unless another page
// follows.
func (p *Paginator) FindAfter(ctx context.Context, req AfterRequest) (*Connection, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = query.NoLimit
	}
	conn, err := p.Find(ctx, Request{
		Query:             req.Query,
		Sort:              req.Sort,
		Limit:             limit,
		Cursor:            req.After,
		Direction:         DirectionAfter,
		Projection:        req.Projection,
		ExcludeProjection: req.ExcludeProjection,
		Collate:           req.Collate,
		Collation:         req.Collation,
	})
	if err != nil {
		return nil, err
	}
	conn.plan.legacy = true
	return conn, nil
}
