package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/hadi77ir/go-docpager/query"
)

func getTestData() []bson.M {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []bson.M{
		{"_id": 1, "name": "Wireless Mouse", "price": 29.99, "stock": int32(100), "category": "electronics", "brand": "Logitech", "featured": true, "tags": bson.A{"wireless", "mouse"}, "createdAt": baseTime},
		{"_id": 2, "name": "Mechanical Keyboard", "price": 89.99, "stock": int32(50), "category": "electronics", "brand": "Corsair", "featured": false, "tags": bson.A{"keyboard"}, "createdAt": baseTime.Add(24 * time.Hour)},
		{"_id": 3, "name": "USB Cable", "price": 9.99, "stock": int32(200), "category": "accessories", "brand": "Anker", "featured": false, "createdAt": baseTime.Add(48 * time.Hour)},
		{"_id": 4, "name": "Wireless Headphones", "price": 199.99, "stock": int32(30), "category": "electronics", "brand": "Sony", "featured": true, "tags": bson.A{"wireless", "audio"}, "createdAt": baseTime.Add(72 * time.Hour)},
		{"_id": 5, "name": "Gaming Mouse Pad", "price": 19.99, "stock": int32(75), "category": "accessories", "brand": "Razer", "featured": false, "createdAt": baseTime.Add(96 * time.Hour)},
		{"_id": 6, "name": "Wireless Charger", "price": 39.99, "stock": int32(60), "category": "accessories", "brand": "Anker", "featured": true, "tags": bson.A{"wireless"}, "createdAt": baseTime.Add(120 * time.Hour)},
		{"_id": 7, "name": "USB Hub", "price": 24.99, "stock": int32(90), "category": "accessories", "brand": "Anker", "featured": false, "createdAt": baseTime.Add(144 * time.Hour)},
		{"_id": 8, "name": "Bluetooth Speaker", "price": 49.99, "stock": int32(45), "category": "electronics", "brand": "JBL", "featured": true, "tags": bson.A{"audio"}, "createdAt": baseTime.Add(168 * time.Hour)},
		{"_id": 9, "name": "Webcam HD", "price": 69.99, "stock": int32(35), "category": "electronics", "brand": "Logitech", "featured": false, "createdAt": baseTime.Add(192 * time.Hour)},
		{"_id": 10, "name": "Monitor Stand", "price": 34.99, "stock": int32(55), "category": "accessories", "brand": "AmazonBasics", "featured": false, "meta": bson.M{"color": "black"}, "createdAt": baseTime.Add(216 * time.Hour)},
	}
}

func ids(docs []bson.M) []interface{} {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d["_id"]
	}
	return out
}

func TestStore_BasicComparisons(t *testing.T) {
	s := New(getTestData(), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		filter   query.Node
		expected []interface{}
	}{
		{
			name:     "equals",
			filter:   query.Compare("brand", query.OpEqual, "Logitech"),
			expected: []interface{}{1, 9},
		},
		{
			name:     "not equals",
			filter:   query.Compare("category", query.OpNotEqual, "electronics"),
			expected: []interface{}{3, 5, 6, 7, 10},
		},
		{
			name:     "greater than",
			filter:   query.Compare("price", query.OpGreaterThan, 50),
			expected: []interface{}{2, 4, 9},
		},
		{
			name:     "greater than or equal",
			filter:   query.Compare("price", query.OpGreaterThanOrEqual, 49.99),
			expected: []interface{}{2, 4, 8, 9},
		},
		{
			name:     "less than across int widths",
			filter:   query.Compare("stock", query.OpLessThan, int64(45)),
			expected: []interface{}{4, 9},
		},
		{
			name:     "range does not cross type brackets",
			filter:   query.Compare("name", query.OpGreaterThan, 0),
			expected: []interface{}{},
		},
		{
			name:     "in",
			filter:   query.Compare("_id", query.OpIn, query.ArrayValue{int32(2), int64(4), 99}),
			expected: []interface{}{2, 4},
		},
		{
			name:     "not in",
			filter:   query.Compare("brand", query.OpNotIn, query.ArrayValue{"Anker", "Logitech", "Corsair"}),
			expected: []interface{}{4, 5, 8, 10},
		},
		{
			name:     "exists",
			filter:   query.Compare("meta", query.OpExists, true),
			expected: []interface{}{10},
		},
		{
			name:     "array element equality",
			filter:   query.Compare("tags", query.OpEqual, "audio"),
			expected: []interface{}{4, 8},
		},
		{
			name:     "nested path",
			filter:   query.Compare("meta.color", query.OpEqual, "black"),
			expected: []interface{}{10},
		},
		{
			name:     "regex with options",
			filter:   query.Compare("name", query.OpRegex, query.RegexValue{Pattern: "^usb", Options: "i"}),
			expected: []interface{}{3, 7},
		},
		{
			name: "and / or",
			filter: query.And(
				query.Compare("featured", query.OpEqual, true),
				query.Or(
					query.Compare("brand", query.OpEqual, "Sony"),
					query.Compare("price", query.OpLessThan, 30),
				),
			),
			expected: []interface{}{1, 4},
		},
		{
			name:     "missing field equals null",
			filter:   query.Compare("meta", query.OpEqual, nil),
			expected: []interface{}{1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Find(ctx, tt.filter, &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(docs))
		})
	}
}

func TestStore_RawFilter(t *testing.T) {
	s := New(getTestData(), nil)
	ctx := context.Background()

	raw := query.Raw(bson.M{
		"category": "accessories",
		"$or": bson.A{
			bson.M{"brand": "Razer"},
			bson.M{"price": bson.M{"$gte": 30, "$lt": 40}},
		},
	})
	docs, err := s.Find(ctx, raw, &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{5, 6, 10}, ids(docs))

	// raw filters compose with structural predicates
	docs, err = s.Find(ctx, query.And(query.Compare("_id", query.OpGreaterThan, 5), raw), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{6, 10}, ids(docs))
}

func TestStore_SortAndLimit(t *testing.T) {
	s := New(getTestData(), nil)
	ctx := context.Background()

	docs, err := s.Find(ctx, nil, &query.FindOptions{
		Sort:  query.Sort{{Field: "brand", Order: 1}, {Field: "_id", Order: -1}},
		Limit: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{10, 7, 6, 3}, ids(docs))

	docs, err = s.Find(ctx, nil, &query.FindOptions{Sort: query.Sort{{Field: "price", Order: -1}}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{4, 2}, ids(docs))
}

func TestStore_SortMissingFieldsFirst(t *testing.T) {
	s := New([]bson.M{
		{"_id": 1, "rank": 2},
		{"_id": 2},
		{"_id": 3, "rank": 1},
	}, nil)

	docs, err := s.Find(context.Background(), nil, &query.FindOptions{Sort: query.Sort{{Field: "rank", Order: 1}, {Field: "_id", Order: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2, 3, 1}, ids(docs))
}

func TestStore_Collation(t *testing.T) {
	s := New([]bson.M{
		{"_id": 1, "name": "banana"},
		{"_id": 2, "name": "Apple"},
		{"_id": 3, "name": "cherry"},
	}, nil)
	ctx := context.Background()

	docs, err := s.Find(ctx, nil, &query.FindOptions{Sort: query.Sort{{Field: "name", Order: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2, 1, 3}, ids(docs), "code point order puts upper case first")

	s.Insert(bson.M{"_id": 4, "name": "apple"})
	docs, err = s.Find(ctx, query.Compare("name", query.OpEqual, "APPLE"), &query.FindOptions{
		Sort:      query.Sort{{Field: "_id", Order: 1}},
		Collation: &query.Collation{Locale: "en", Strength: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2, 4}, ids(docs))
}

func TestStore_FindOne(t *testing.T) {
	s := New(getTestData(), nil)
	ctx := context.Background()

	doc, err := s.FindOne(ctx, query.Compare("brand", query.OpEqual, "Anker"), &query.FindOneOptions{
		Sort:       query.Sort{{Field: "price", Order: -1}},
		Projection: bson.M{"_id": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": 6}, doc)

	doc, err = s.FindOne(ctx, query.Compare("brand", query.OpEqual, "Nobody"), nil)
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestStore_CountDocuments(t *testing.T) {
	s := New(getTestData(), nil)

	n, err := s.CountDocuments(context.Background(), query.Compare("category", query.OpEqual, "electronics"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = s.CountDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestStore_ResultsAreCopies(t *testing.T) {
	data := getTestData()
	s := New(data, nil)

	docs, err := s.Find(context.Background(), query.Compare("_id", query.OpEqual, 10), nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	docs[0]["meta"].(bson.M)["color"] = "white"

	assert.Equal(t, "black", data[9]["meta"].(bson.M)["color"])
}

func TestStore_DataSource(t *testing.T) {
	products := []bson.M{{"_id": 1, "price": 10}}
	s := NewWithDataSource(func() []bson.M { return products }, nil)
	ctx := context.Background()

	n, err := s.CountDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	products = append(products, bson.M{"_id": 2, "price": 5})
	docs, err := s.Find(ctx, nil, &query.FindOptions{Sort: query.Sort{{Field: "price", Order: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2, 1}, ids(docs))
	assert.Equal(t, 1, products[0]["_id"], "sorting must not reorder the source")
}

func TestStore_Errors(t *testing.T) {
	s := New(getTestData(), nil)
	ctx := context.Background()

	_, err := s.Find(ctx, query.Raw(bson.M{"price": bson.M{"$elemMatch": bson.M{}}}), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, query.ErrInvalidQuery)
	assert.ErrorIs(t, err, query.ErrExecutionFailed)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Find(cancelled, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ObjectIDs(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	s := New([]bson.M{{"_id": b}, {"_id": a}}, nil)

	docs, err := s.Find(context.Background(), query.Compare("_id", query.OpGreaterThanOrEqual, a), &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{a, b}, ids(docs))
}

func TestName(t *testing.T) {
	assert.Equal(t, "memory", New(nil, nil).Name())
}
