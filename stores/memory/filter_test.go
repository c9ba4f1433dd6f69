package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hadi77ir/go-docpager/query"
)

func TestParseFilter(t *testing.T) {
	t.Run("empty filter matches everything", func(t *testing.T) {
		node, err := ParseFilter(bson.M{})
		require.NoError(t, err)
		assert.Nil(t, node)
	})

	t.Run("implicit equality", func(t *testing.T) {
		node, err := ParseFilter(bson.M{"brand": "Sony"})
		require.NoError(t, err)
		assert.Equal(t, query.Compare("brand", query.OpEqual, "Sony"), node)
	})

	t.Run("operators", func(t *testing.T) {
		node, err := ParseFilter(bson.M{"price": bson.D{{Key: "$gt", Value: 1}, {Key: "$lte", Value: 5}}})
		require.NoError(t, err)
		assert.Equal(t, query.And(
			query.Compare("price", query.OpGreaterThan, 1),
			query.Compare("price", query.OpLessThanOrEqual, 5),
		), node)
	})

	t.Run("regex", func(t *testing.T) {
		node, err := ParseFilter(bson.M{"name": bson.M{"$regex": "^a", "$options": "i"}})
		require.NoError(t, err)
		assert.Equal(t, query.Compare("name", query.OpRegex, query.RegexValue{Pattern: "^a", Options: "i"}), node)

		node, err = ParseFilter(bson.M{"name": primitive.Regex{Pattern: "b$"}})
		require.NoError(t, err)
		assert.Equal(t, query.Compare("name", query.OpRegex, query.RegexValue{Pattern: "b$"}), node)
	})

	t.Run("or with an empty branch matches everything", func(t *testing.T) {
		node, err := ParseFilter(bson.M{"$or": bson.A{bson.M{"a": 1}, bson.M{}}})
		require.NoError(t, err)
		assert.Nil(t, node)
	})

	t.Run("literal document equality", func(t *testing.T) {
		node, err := ParseFilter(bson.M{"meta": bson.M{"color": "black"}})
		require.NoError(t, err)
		assert.Equal(t, query.Compare("meta", query.OpEqual, bson.M{"color": "black"}), node)
	})
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		filter bson.M
	}{
		{"unsupported top-level operator", bson.M{"$nor": bson.A{}}},
		{"or is not an array", bson.M{"$or": bson.M{"a": 1}}},
		{"empty and", bson.M{"$and": bson.A{}}},
		{"unsupported field operator", bson.M{"a": bson.M{"$size": 1}}},
		{"in without array", bson.M{"a": bson.M{"$in": 1}}},
		{"options without regex", bson.M{"a": bson.M{"$options": "i"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, query.ErrInvalidQuery)
		})
	}
}
