package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

// BuildFilter converts a predicate tree into a native filter document. A nil
// node renders as the empty filter. Raw nodes are embedded verbatim.
func BuildFilter(node query.Node) (bson.M, error) {
	if node == nil {
		return bson.M{}, nil
	}
	switch n := node.(type) {
	case *query.BinaryOpNode:
		left, err := BuildFilter(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := BuildFilter(n.Right)
		if err != nil {
			return nil, err
		}

		if n.Operator == query.BinaryOpAnd {
			return bson.M{"$and": bson.A{left, right}}, nil
		} else if n.Operator == query.BinaryOpOr {
			return bson.M{"$or": bson.A{left, right}}, nil
		}
		return nil, query.ErrInvalidQuery

	case *query.RawNode:
		return n.Filter, nil

	case *query.ComparisonNode:
		if n.Field == "" {
			return nil, query.InvalidFieldNameError(n.Field)
		}
		field := n.Field
		switch n.Operator {
		case query.OpEqual, query.OpNotEqual,
			query.OpGreaterThan, query.OpGreaterThanOrEqual,
			query.OpLessThan, query.OpLessThanOrEqual:
			// explicit $eq keeps literal documents from being read as operators
			return bson.M{field: bson.M{n.Operator.Native(): n.Value}}, nil
		case query.OpRegex:
			switch v := n.Value.(type) {
			case query.RegexValue:
				return bson.M{field: bson.M{"$regex": v.Pattern, "$options": v.Options}}, nil
			case string:
				return bson.M{field: bson.M{"$regex": v, "$options": ""}}, nil
			}
			return nil, query.NewFieldError(field, query.ErrInvalidQuery)
		case query.OpIn, query.OpNotIn:
			arr := arrayValue(n.Value)
			return bson.M{field: bson.M{n.Operator.Native(): arr}}, nil
		case query.OpExists:
			exists, ok := n.Value.(bool)
			if !ok {
				return nil, query.NewFieldError(field, query.ErrInvalidQuery)
			}
			return bson.M{field: bson.M{"$exists": exists}}, nil
		default:
			return nil, query.ErrInvalidQuery
		}

	default:
		return nil, query.ErrInvalidQuery
	}
}

// arrayValue renders an $in or $nin operand as a BSON array. A scalar
// operand becomes a one-element array.
func arrayValue(val interface{}) bson.A {
	switch arr := val.(type) {
	case query.ArrayValue:
		return bson.A(arr)
	case bson.A:
		return arr
	case []interface{}:
		return bson.A(arr)
	}
	return bson.A{val}
}
