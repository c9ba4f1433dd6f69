package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonOperator_Complement(t *testing.T) {
	tests := []struct {
		op       ComparisonOperator
		expected ComparisonOperator
	}{
		{OpGreaterThan, OpLessThanOrEqual},
		{OpLessThan, OpGreaterThanOrEqual},
		{OpGreaterThanOrEqual, OpLessThan},
		{OpLessThanOrEqual, OpGreaterThan},
		{OpEqual, OpEqual},
		{OpIn, OpIn},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.op.Complement())
			if tt.op.IsRange() {
				// complementing twice restores the operator
				assert.Equal(t, tt.op, tt.op.Complement().Complement())
			}
		})
	}
}

func TestComparisonOperator_Strict(t *testing.T) {
	assert.Equal(t, OpGreaterThan, OpGreaterThanOrEqual.Strict())
	assert.Equal(t, OpLessThan, OpLessThanOrEqual.Strict())
	assert.Equal(t, OpGreaterThan, OpGreaterThan.Strict())
	assert.True(t, OpLessThan.IsStrict())
	assert.False(t, OpLessThanOrEqual.IsStrict())
}

func TestRangeOperator(t *testing.T) {
	assert.Equal(t, OpGreaterThan, RangeOperator(1))
	assert.Equal(t, OpLessThan, RangeOperator(-1))
}

func TestParseComparisonOperator(t *testing.T) {
	tests := []struct {
		input    string
		expected ComparisonOperator
		ok       bool
	}{
		{"$gt", OpGreaterThan, true},
		{">", OpGreaterThan, true},
		{"$gte", OpGreaterThanOrEqual, true},
		{"$lt", OpLessThan, true},
		{"$lte", OpLessThanOrEqual, true},
		{"$eq", OpEqual, true},
		{"$ne", OpNotEqual, true},
		{"$in", OpIn, true},
		{"$nin", OpNotIn, true},
		{"$exists", OpExists, true},
		{"$regex", OpRegex, true},
		{"$where", OpEqual, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			op, ok := ParseComparisonOperator(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, op)
			if ok && tt.input[0] == '$' {
				assert.Equal(t, tt.input, op.Native())
			}
		})
	}
}

func TestAndOr(t *testing.T) {
	a := Compare("a", OpEqual, 1)
	b := Compare("b", OpGreaterThan, 2)

	assert.Nil(t, And())
	assert.Nil(t, And(nil, Raw(nil)))
	assert.Equal(t, a, And(nil, a))
	assert.Equal(t, &BinaryOpNode{Operator: BinaryOpAnd, Left: a, Right: b}, And(a, nil, b))
	assert.Equal(t, &BinaryOpNode{Operator: BinaryOpOr, Left: a, Right: b}, Or(a, b))

	var typedNil *ComparisonNode
	assert.Equal(t, b, And(typedNil, b))
}
