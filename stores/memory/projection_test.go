package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/query"
)

func TestProject(t *testing.T) {
	doc := bson.M{
		"_id":   1,
		"name":  "Widget",
		"price": 10,
		"meta":  bson.M{"color": "red", "size": "L"},
		"sizes": bson.A{"S", "M", "L", "XL"},
	}

	tests := []struct {
		name       string
		projection bson.M
		expected   bson.M
	}{
		{
			name:       "empty projection copies",
			projection: nil,
			expected:   doc,
		},
		{
			name:       "inclusion keeps id",
			projection: bson.M{"name": 1},
			expected:   bson.M{"_id": 1, "name": "Widget"},
		},
		{
			name:       "inclusion without id",
			projection: bson.M{"name": true, "_id": 0},
			expected:   bson.M{"name": "Widget"},
		},
		{
			name:       "nested inclusion",
			projection: bson.M{"meta.color": 1},
			expected:   bson.M{"_id": 1, "meta": bson.M{"color": "red"}},
		},
		{
			name:       "exclusion",
			projection: bson.M{"meta": 0, "sizes": 0},
			expected:   bson.M{"_id": 1, "name": "Widget", "price": 10},
		},
		{
			name:       "slice with skip and limit",
			projection: bson.M{"_id": 1, "sizes": bson.M{"$slice": bson.A{2, 1}}},
			expected:   bson.M{"_id": 1, "sizes": bson.A{"L"}},
		},
		{
			name:       "slice alone keeps other fields",
			projection: bson.M{"sizes": bson.M{"$slice": -1}},
			expected: bson.M{
				"_id":   1,
				"name":  "Widget",
				"price": 10,
				"meta":  bson.M{"color": "red", "size": "L"},
				"sizes": bson.A{"XL"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Project(doc, tt.projection, "_id")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}

	assert.Equal(t, bson.A{"S", "M", "L", "XL"}, doc["sizes"], "source must not change")
}

func TestProject_Invalid(t *testing.T) {
	_, err := Project(bson.M{"a": 1}, bson.M{"a": 1, "b": 0}, "_id")
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	_, err = Project(bson.M{"a": bson.A{1}}, bson.M{"a": bson.M{"$slice": "x"}}, "_id")
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	_, err = Project(bson.M{"a": 1}, bson.M{"a": bson.M{"$elemMatch": bson.M{}}}, "_id")
	assert.ErrorIs(t, err, query.ErrInvalidQuery)
}
