package query

import "go.mongodb.org/mongo-driver/bson"

// NodeType represents the type of AST node
type NodeType int

const (
	NodeTypeBinaryOp NodeType = iota
	NodeTypeComparison
	NodeTypeRaw
)

// Node is the interface that all predicate nodes implement
type Node interface {
	Type() NodeType
}

// BinaryOperator represents a binary logical operator
type BinaryOperator int

const (
	// BinaryOpAnd represents the AND operator
	BinaryOpAnd BinaryOperator = iota
	// BinaryOpOr represents the OR operator
	BinaryOpOr
)

// String returns the string representation of BinaryOperator
func (bo BinaryOperator) String() string {
	switch bo {
	case BinaryOpAnd:
		return "and"
	case BinaryOpOr:
		return "or"
	default:
		return "and" // Default to and
	}
}

// BinaryOpNode represents a binary operation (AND, OR)
type BinaryOpNode struct {
	Operator BinaryOperator
	Left     Node
	Right    Node
}

func (n *BinaryOpNode) Type() NodeType { return NodeTypeBinaryOp }

// ComparisonNode represents a comparison of a document field against a value
type ComparisonNode struct {
	Field    string
	Operator ComparisonOperator
	Value    interface{}
}

func (n *ComparisonNode) Type() NodeType { return NodeTypeComparison }

// RawNode carries a caller-supplied native filter document. It is passed to
// the store untouched and is never rewritten by this package.
type RawNode struct {
	Filter bson.M
}

func (n *RawNode) Type() NodeType { return NodeTypeRaw }

// Compare builds a ComparisonNode.
func Compare(field string, op ComparisonOperator, value interface{}) *ComparisonNode {
	return &ComparisonNode{Field: field, Operator: op, Value: value}
}

// Raw wraps a native filter. An empty or nil filter yields nil, which And and
// Or treat as "no condition".
func Raw(filter bson.M) Node {
	if len(filter) == 0 {
		return nil
	}
	return &RawNode{Filter: filter}
}

// And folds nodes into a left-deep AND chain, skipping nil nodes.
func And(nodes ...Node) Node {
	return fold(BinaryOpAnd, nodes)
}

// Or folds nodes into a left-deep OR chain, skipping nil nodes.
func Or(nodes ...Node) Node {
	return fold(BinaryOpOr, nodes)
}

func fold(op BinaryOperator, nodes []Node) Node {
	var out Node
	for _, n := range nodes {
		if isNilNode(n) {
			continue
		}
		if out == nil {
			out = n
			continue
		}
		out = &BinaryOpNode{Operator: op, Left: out, Right: n}
	}
	return out
}

func isNilNode(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case *BinaryOpNode:
		return v == nil
	case *ComparisonNode:
		return v == nil
	case *RawNode:
		return v == nil
	}
	return false
}

// SortOrder represents the sort order direction
type SortOrder int

const (
	// SortOrderAsc sorts in ascending order
	SortOrderAsc SortOrder = iota
	// SortOrderDesc sorts in descending order
	SortOrderDesc
)

// String returns the string representation of SortOrder
func (so SortOrder) String() string {
	switch so {
	case SortOrderDesc:
		return "desc"
	default:
		return "asc" // Default to asc
	}
}

// Int returns the store-native direction: 1 for ascending, -1 for descending.
func (so SortOrder) Int() int {
	if so == SortOrderDesc {
		return -1
	}
	return 1
}
