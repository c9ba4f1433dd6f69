package query

import (
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// SortField is one key of a compound sort.
type SortField struct {
	Field string
	Order int
}

// Sort is an ordered compound sort.
type Sort []SortField

// Reverse returns a copy of the sort with every direction flipped.
func (s Sort) Reverse() Sort {
	out := make(Sort, len(s))
	for i, f := range s {
		order := 1
		if f.Order == 1 {
			order = -1
		}
		out[i] = SortField{Field: f.Field, Order: order}
	}
	return out
}

// BSON renders the sort as an ordered document.
func (s Sort) BSON() bson.D {
	d := make(bson.D, 0, len(s))
	for _, f := range s {
		d = append(d, bson.E{Key: f.Field, Value: f.Order})
	}
	return d
}

// Collation describes locale-aware string comparison rules for a sort.
type Collation struct {
	Locale          string `json:"locale,omitempty"`
	Strength        int    `json:"strength,omitempty"`
	CaseLevel       bool   `json:"caseLevel,omitempty"`
	NumericOrdering bool   `json:"numericOrdering,omitempty"`
}

// merge lays the non-zero fields of c over base.
func (c *Collation) merge(base Collation) Collation {
	out := base
	if c == nil {
		return out
	}
	if c.Locale != "" {
		out.Locale = c.Locale
	}
	if c.Strength != 0 {
		out.Strength = c.Strength
	}
	out.CaseLevel = out.CaseLevel || c.CaseLevel
	out.NumericOrdering = out.NumericOrdering || c.NumericOrdering
	return out
}

// SortDescriptor is the normalized form of a requested sort. Its comparator
// always ends with a tie-break on the primary key in the same direction, so the
// resulting order is total even when sort values repeat.
type SortDescriptor struct {
	field     string
	order     int
	idField   string
	collation Collation
}

// NewSortDescriptor normalizes a requested field and order. The order accepts
// signed integers, SortOrder, "asc"/"desc" and numeric-like strings; anything
// unrecognized sorts ascending.
func NewSortDescriptor(field string, order interface{}, opts *Options) *SortDescriptor {
	if opts == nil {
		opts = DefaultOptions()
	}
	s := &SortDescriptor{
		idField:   opts.GetIDFieldName(),
		order:     ParseOrder(order),
		collation: Collation{Locale: opts.Locale()},
	}
	field = strings.TrimSpace(field)
	if opts.ResolvesToID(field) {
		s.field = s.idField
	} else {
		s.field = field
	}
	return s
}

// WithCollation merges a caller-supplied collation over the default locale.
func (s *SortDescriptor) WithCollation(c *Collation) *SortDescriptor {
	s.collation = c.merge(s.collation)
	return s
}

// Field returns the resolved sort field.
func (s *SortDescriptor) Field() string { return s.field }

// Order returns 1 or -1.
func (s *SortDescriptor) Order() int { return s.order }

// IDField returns the primary key used as tie-break.
func (s *SortDescriptor) IDField() string { return s.idField }

// IsIDSort reports whether the descriptor sorts on the primary key alone.
func (s *SortDescriptor) IsIDSort() bool { return s.field == s.idField }

// Collation returns the merged collation.
func (s *SortDescriptor) Collation() Collation { return s.collation }

// Value returns the compound sort {field: order, id: order}.
func (s *SortDescriptor) Value() Sort {
	if s.IsIDSort() {
		return Sort{{Field: s.idField, Order: s.order}}
	}
	return Sort{
		{Field: s.field, Order: s.order},
		{Field: s.idField, Order: s.order},
	}
}

// ValueReversed returns Value with every direction flipped.
func (s *SortDescriptor) ValueReversed() Sort {
	return s.Value().Reverse()
}

// ParseOrder resolves a sort order value to 1 or -1.
func ParseOrder(order interface{}) int {
	switch v := order.(type) {
	case nil:
		return 1
	case SortOrder:
		return v.Int()
	case int:
		return signOf(int64(v))
	case int8:
		return signOf(int64(v))
	case int16:
		return signOf(int64(v))
	case int32:
		return signOf(int64(v))
	case int64:
		return signOf(v)
	case float32:
		return signOf(int64(math.Trunc(float64(v))))
	case float64:
		return signOf(int64(math.Trunc(v)))
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "asc", "":
			return 1
		case "desc":
			return -1
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return signOf(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return signOf(int64(math.Trunc(f)))
		}
		return 1
	default:
		return 1
	}
}

// signOf maps exactly -1 to descending and everything else to ascending.
func signOf(n int64) int {
	if n == -1 {
		return -1
	}
	return 1
}
