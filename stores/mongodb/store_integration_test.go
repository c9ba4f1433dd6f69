package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hadi77ir/go-docpager/internal/cursor"
	"github.com/hadi77ir/go-docpager/query"
)

func setupMongoContainer(t *testing.T) *mongo.Collection {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongoC.Terminate(context.Background()) })

	host, err := mongoC.Host(ctx)
	require.NoError(t, err)
	port, err := mongoC.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+host+":"+port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, client.Ping(ctx, nil))

	collection := client.Database("testdb").Collection("products")
	seedMongoTestData(t, collection)
	return collection
}

func seedMongoTestData(t *testing.T, collection *mongo.Collection) {
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []interface{}{
		bson.M{"_id": 1, "name": "Wireless Mouse", "price": 29.99, "brand": "Logitech", "sizes": bson.A{"S", "M"}, "createdAt": baseTime},
		bson.M{"_id": 2, "name": "Mechanical Keyboard", "price": 89.99, "brand": "Corsair", "createdAt": baseTime.Add(24 * time.Hour)},
		bson.M{"_id": 3, "name": "USB Cable", "price": 9.99, "brand": "Anker", "createdAt": baseTime.Add(48 * time.Hour)},
		bson.M{"_id": 4, "name": "Wireless Headphones", "price": 199.99, "brand": "Sony", "createdAt": baseTime.Add(72 * time.Hour)},
		bson.M{"_id": 5, "name": "usb hub", "price": 24.99, "brand": "Anker", "createdAt": baseTime.Add(96 * time.Hour)},
	}
	_, err := collection.InsertMany(context.Background(), products)
	require.NoError(t, err)
}

func TestStore_Integration(t *testing.T) {
	s := New(setupMongoContainer(t))
	ctx := context.Background()

	t.Run("find with sort, limit and projection", func(t *testing.T) {
		docs, err := s.Find(ctx, query.Compare("price", query.OpGreaterThan, 20), &query.FindOptions{
			Sort:       query.Sort{{Field: "price", Order: -1}},
			Limit:      2,
			Projection: bson.M{"name": 1},
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, bson.M{"_id": int32(4), "name": "Wireless Headphones"}, docs[0])
		assert.Equal(t, int32(2), docs[1]["_id"])
	})

	t.Run("raw filter", func(t *testing.T) {
		docs, err := s.Find(ctx, query.Raw(bson.M{"brand": "Anker"}), &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, int32(3), docs[0]["_id"])
	})

	t.Run("collation", func(t *testing.T) {
		docs, err := s.Find(ctx, query.Compare("name", query.OpEqual, "USB HUB"), &query.FindOptions{
			Collation: &query.Collation{Locale: "en_US", Strength: 2},
		})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, int32(5), docs[0]["_id"])
	})

	t.Run("find one miss is not an error", func(t *testing.T) {
		doc, err := s.FindOne(ctx, query.Compare("brand", query.OpEqual, "Nobody"), nil)
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("find one with slice projection", func(t *testing.T) {
		doc, err := s.FindOne(ctx, query.Compare("_id", query.OpEqual, 1), &query.FindOneOptions{
			Projection: bson.M{"sizes": bson.M{"$slice": bson.A{1, 1}}},
		})
		require.NoError(t, err)
		assert.Equal(t, bson.A{"M"}, doc["sizes"])
	})

	t.Run("count", func(t *testing.T) {
		n, err := s.CountDocuments(ctx, query.Compare("brand", query.OpEqual, "Anker"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("driver errors are execution errors", func(t *testing.T) {
		_, err := s.Find(ctx, query.Raw(bson.M{"price": bson.M{"$bogus": 1}}), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, query.ErrExecutionFailed)
	})

	t.Run("compound ids keep their field order", func(t *testing.T) {
		orders := New(s.collection.Database().Collection("orders"))
		compound := func(seq int32) bson.D {
			return bson.D{{Key: "z", Value: "acme"}, {Key: "a", Value: seq}, {Key: "m", Value: bson.D{{Key: "y", Value: int32(1)}, {Key: "b", Value: int32(2)}}}}
		}
		_, err := orders.collection.InsertMany(ctx, []interface{}{
			bson.D{{Key: "_id", Value: compound(1)}, {Key: "total", Value: 10}},
			bson.D{{Key: "_id", Value: compound(2)}, {Key: "total", Value: 20}},
			bson.D{{Key: "_id", Value: compound(3)}, {Key: "total", Value: 30}},
		})
		require.NoError(t, err)

		docs, err := orders.Find(ctx, nil, &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, compound(1), docs[0]["_id"])

		first, err := cursor.Encode(docs[1]["_id"])
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := cursor.Encode(docs[1]["_id"])
			require.NoError(t, err)
			require.Equal(t, first, again)
		}

		id, err := cursor.Decode(first)
		require.NoError(t, err)
		ref, err := orders.FindOne(ctx, query.Compare("_id", query.OpEqual, id), nil)
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, int32(20), ref["total"])

		after, err := orders.Find(ctx, query.Compare("_id", query.OpGreaterThan, id), &query.FindOptions{Sort: query.Sort{{Field: "_id", Order: 1}}})
		require.NoError(t, err)
		require.Len(t, after, 1)
		assert.Equal(t, compound(3), after[0]["_id"])
	})
}
