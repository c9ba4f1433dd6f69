package query

import "strings"

// ComparisonOperator represents a comparison operator
type ComparisonOperator int

const (
	// Comparison operators
	OpEqual ComparisonOperator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual

	// String matching operators
	OpRegex

	// Array/Set operators
	OpIn
	OpNotIn

	// Presence operators
	OpExists
)

// String returns the string representation of ComparisonOperator
func (co ComparisonOperator) String() string {
	switch co {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpRegex:
		return "REGEX"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpExists:
		return "EXISTS"
	default:
		return "=" // Default to equal
	}
}

// Native returns the document-store operator name (e.g. "$gt").
func (co ComparisonOperator) Native() string {
	switch co {
	case OpNotEqual:
		return "$ne"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterThanOrEqual:
		return "$gte"
	case OpLessThan:
		return "$lt"
	case OpLessThanOrEqual:
		return "$lte"
	case OpRegex:
		return "$regex"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$nin"
	case OpExists:
		return "$exists"
	default:
		return "$eq"
	}
}

// IsRange reports whether the operator is one of the four ordering comparisons.
func (co ComparisonOperator) IsRange() bool {
	switch co {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	}
	return false
}

// IsStrict reports whether the operator is a strict ordering comparison.
func (co ComparisonOperator) IsStrict() bool {
	return co == OpGreaterThan || co == OpLessThan
}

// Complement returns the inclusive-complementary range operator, holding the
// same boundary: > becomes <=, < becomes >=, and vice versa. Non-range
// operators are returned unchanged.
func (co ComparisonOperator) Complement() ComparisonOperator {
	switch co {
	case OpGreaterThan:
		return OpLessThanOrEqual
	case OpLessThanOrEqual:
		return OpGreaterThan
	case OpLessThan:
		return OpGreaterThanOrEqual
	case OpGreaterThanOrEqual:
		return OpLessThan
	default:
		return co
	}
}

// Strict returns the strict form of a range operator (>= becomes >, <= becomes <).
func (co ComparisonOperator) Strict() ComparisonOperator {
	switch co {
	case OpGreaterThanOrEqual:
		return OpGreaterThan
	case OpLessThanOrEqual:
		return OpLessThan
	default:
		return co
	}
}

// RangeOperator picks the strict operator for walking a sort in a direction:
// a positive sign yields OpGreaterThan, anything else OpLessThan.
func RangeOperator(sign int) ComparisonOperator {
	if sign > 0 {
		return OpGreaterThan
	}
	return OpLessThan
}

// ParseComparisonOperator parses a string into a ComparisonOperator enum value.
// Both symbolic ("<=") and native ("$lte") spellings are accepted.
func ParseComparisonOperator(s string) (ComparisonOperator, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "=", "$eq":
		return OpEqual, true
	case "!=", "$ne":
		return OpNotEqual, true
	case ">", "$gt":
		return OpGreaterThan, true
	case ">=", "$gte":
		return OpGreaterThanOrEqual, true
	case "<", "$lt":
		return OpLessThan, true
	case "<=", "$lte":
		return OpLessThanOrEqual, true
	case "regex", "$regex":
		return OpRegex, true
	case "in", "$in":
		return OpIn, true
	case "not in", "$nin":
		return OpNotIn, true
	case "exists", "$exists":
		return OpExists, true
	default:
		return OpEqual, false
	}
}

// ArrayValue represents an array of values
type ArrayValue []interface{}

// RegexValue is the value of an OpRegex comparison.
type RegexValue struct {
	Pattern string
	Options string
}
