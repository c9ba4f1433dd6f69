package memory

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hadi77ir/go-docpager/query"
)

// ParseFilter converts a native filter document into a predicate tree. Only
// the subset of the filter language the paginators emit and callers commonly
// pass is understood: $and, $or, implicit equality and the field operators
// $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin, $exists and $regex (with
// $options). An empty filter yields nil, which matches every document.
func ParseFilter(filter bson.M) (query.Node, error) {
	if len(filter) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]query.Node, 0, len(keys))
	for _, key := range keys {
		val := filter[key]
		switch key {
		case "$and", "$or":
			node, err := parseLogical(key, val)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			if strings.HasPrefix(key, "$") {
				return nil, query.NewFieldError(key, fmt.Errorf("%w: unsupported top-level operator", query.ErrInvalidQuery))
			}
			node, err := parseField(key, val)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
	return query.And(nodes...), nil
}

func parseLogical(key string, val interface{}) (query.Node, error) {
	items, ok := asArray(val)
	if !ok || len(items) == 0 {
		return nil, query.NewFieldError(key, fmt.Errorf("%w: expected a non-empty array", query.ErrInvalidQuery))
	}

	children := make([]query.Node, 0, len(items))
	for _, item := range items {
		doc, ok := asDoc(item)
		if !ok {
			return nil, query.NewFieldError(key, fmt.Errorf("%w: expected an array of documents", query.ErrInvalidQuery))
		}
		child, err := ParseFilter(doc)
		if err != nil {
			return nil, err
		}
		if child == nil && key == "$or" {
			// an empty branch matches everything
			return nil, nil
		}
		children = append(children, child)
	}

	if key == "$or" {
		return query.Or(children...), nil
	}
	return query.And(children...), nil
}

func parseField(field string, val interface{}) (query.Node, error) {
	if re, ok := val.(primitive.Regex); ok {
		return query.Compare(field, query.OpRegex, query.RegexValue{Pattern: re.Pattern, Options: re.Options}), nil
	}

	ops, ok := operatorDoc(val)
	if !ok {
		return query.Compare(field, query.OpEqual, val), nil
	}

	var (
		nodes   []query.Node
		regex   *query.RegexValue
		options string
	)
	for _, e := range ops {
		switch e.Key {
		case "$options":
			s, ok := e.Value.(string)
			if !ok {
				return nil, query.NewFieldError(field, fmt.Errorf("%w: $options must be a string", query.ErrInvalidQuery))
			}
			options = s
			continue
		case "$regex":
			switch p := e.Value.(type) {
			case string:
				regex = &query.RegexValue{Pattern: p}
			case primitive.Regex:
				regex = &query.RegexValue{Pattern: p.Pattern, Options: p.Options}
			default:
				return nil, query.NewFieldError(field, fmt.Errorf("%w: $regex must be a string", query.ErrInvalidQuery))
			}
			continue
		}

		op, ok := query.ParseComparisonOperator(e.Key)
		if !ok {
			return nil, query.NewFieldError(field, fmt.Errorf("%w: unsupported operator %s", query.ErrInvalidQuery, e.Key))
		}
		value := e.Value
		switch op {
		case query.OpIn, query.OpNotIn:
			arr, ok := asArray(value)
			if !ok {
				return nil, query.NewFieldError(field, fmt.Errorf("%w: %s expects an array", query.ErrInvalidQuery, e.Key))
			}
			value = query.ArrayValue(arr)
		case query.OpExists:
			value = truthy(value)
		}
		nodes = append(nodes, query.Compare(field, op, value))
	}

	if regex != nil {
		if options != "" {
			regex.Options = options
		}
		nodes = append(nodes, query.Compare(field, query.OpRegex, *regex))
	} else if options != "" {
		return nil, query.NewFieldError(field, fmt.Errorf("%w: $options without $regex", query.ErrInvalidQuery))
	}
	return query.And(nodes...), nil
}

// operatorDoc returns the entries of val when it is a document made of
// operators only. Mixing operators and plain keys is rejected as equality on a
// literal document, which never matches an operator-looking field anyway.
func operatorDoc(val interface{}) (bson.D, bool) {
	var d bson.D
	switch v := val.(type) {
	case bson.D:
		d = v
	case bson.M, map[string]interface{}:
		d = entries(v)
	default:
		return nil, false
	}
	if len(d) == 0 {
		return nil, false
	}
	for _, e := range d {
		if !strings.HasPrefix(e.Key, "$") {
			return nil, false
		}
	}
	return d, true
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return bson.M(d), true
	case bson.D:
		return d.Map(), true
	default:
		return nil, false
	}
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []interface{}:
		return a, true
	case query.ArrayValue:
		return a, true
	case []bson.M:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []string:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []primitive.ObjectID:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	default:
		return nil, false
	}
}

// truthy follows the store's projection and $exists semantics: false, nil and
// numeric zero are false, everything else is true.
func truthy(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	if n, ok := number(v); ok {
		return n != 0
	}
	return true
}
