package objectpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestGet(t *testing.T) {
	doc := bson.M{
		"name": "Widget",
		"address": bson.M{
			"city": "Austin",
			"geo":  map[string]interface{}{"lat": 30.2},
		},
		"tags":   bson.A{"a", "b", bson.M{"label": "c"}},
		"list":   []interface{}{int32(1), int32(2)},
		"order":  bson.D{{Key: "first", Value: 1}},
		"absent": nil,
	}

	tests := []struct {
		path     string
		expected interface{}
		found    bool
	}{
		{"name", "Widget", true},
		{"address.city", "Austin", true},
		{"address.geo.lat", 30.2, true},
		{"tags.1", "b", true},
		{"tags.2.label", "c", true},
		{"tags.9", nil, false},
		{"tags.x", nil, false},
		{"list.0", int32(1), true},
		{"order.first", 1, true},
		{"order.second", nil, false},
		{"absent", nil, true},
		{"missing", nil, false},
		{"name.length", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := Get(doc, tt.path)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, v)
		})
	}

	assert.Equal(t, "Austin", Value(doc, "address.city"))
	assert.Nil(t, Value(nil, "a"))
}

func TestSetAndDelete(t *testing.T) {
	doc := bson.M{"a": "scalar"}

	Set(doc, "b.c.d", 1)
	assert.Equal(t, bson.M{"a": "scalar", "b": bson.M{"c": bson.M{"d": 1}}}, doc)

	Set(doc, "a.x", 2)
	assert.Equal(t, bson.M{"x": 2}, doc["a"])

	Set(doc, "b.c.e", 3)
	assert.Equal(t, 3, Value(doc, "b.c.e"))

	Delete(doc, "b.c.d")
	_, ok := Get(doc, "b.c.d")
	assert.False(t, ok)

	Delete(doc, "nope.nothing")
	Delete(doc, "a")
	assert.NotContains(t, doc, "a")
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "a", TopLevel("a.b.c"))
	assert.Equal(t, "a", TopLevel("a"))
	assert.True(t, IsDescendant("a.b", "a"))
	assert.False(t, IsDescendant("ab", "a"))
	assert.False(t, IsDescendant("a", "a"))
}
