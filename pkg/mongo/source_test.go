package mongo_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/togglekit/pkg/feature"
	mongosource "github.com/dmitrymomot/togglekit/pkg/mongo"
)

// fakeCollection keeps raw documents in memory, keyed by _id.
type fakeCollection struct {
	mu   sync.Mutex
	docs map[string]bson.Raw
	err  error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: make(map[string]bson.Raw)}
}

func idOf(filter any) string {
	d := filter.(bson.D)
	return d[0].Value.(string)
}

func (c *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, c.err, nil)
	}
	raw, ok := c.docs[idOf(filter)]
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(raw, nil, nil)
}

func (c *fakeCollection) Find(_ context.Context, _ any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	docs := make([]any, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, bson.D{{Key: "_id", Value: id}})
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (c *fakeCollection) ReplaceOne(_ context.Context, filter, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	raw, err := bson.Marshal(replacement)
	if err != nil {
		return nil, err
	}
	c.docs[idOf(filter)] = raw
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *fakeCollection) DeleteOne(_ context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	delete(c.docs, idOf(filter))
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (c *fakeCollection) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func TestSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("ReadMissing", func(t *testing.T) {
		t.Parallel()

		src := mongosource.NewSource(newFakeCollection())
		state, err := src.Read(ctx, "MISSING")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()

		src := mongosource.NewSource(newFakeCollection(), mongosource.WithClock(func() time.Time { return now }))
		in := feature.NewState("CHECKOUT").
			Enable().
			SetStrategyID(feature.StrategyGradual).
			SetParameter(feature.ParamPercentage, "25")
		require.NoError(t, src.Write(ctx, in))

		out, err := src.Read(ctx, "CHECKOUT")
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.True(t, in.Equal(out), "got %s", out)
	})

	t.Run("DocumentLayout", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		src := mongosource.NewSource(coll, mongosource.WithClock(func() time.Time { return now }))
		require.NoError(t, src.Write(ctx, feature.NewState("PLAIN").Enable()))

		raw := coll.docs["PLAIN"]
		require.NotNil(t, raw)

		var doc bson.M
		require.NoError(t, bson.Unmarshal(raw, &doc))
		assert.Equal(t, "PLAIN", doc["_id"])
		assert.Equal(t, true, doc["enabled"])
		assert.NotContains(t, doc, "strategy")
		assert.NotContains(t, doc, "parameters")
		assert.Contains(t, doc, "updated_at")
	})

	t.Run("OverwriteReplacesParameters", func(t *testing.T) {
		t.Parallel()

		src := mongosource.NewSource(newFakeCollection())
		require.NoError(t, src.Write(ctx, feature.NewState("F").
			Enable().
			SetStrategyID(feature.StrategyUsername).
			SetParameter(feature.ParamUsers, "alice")))
		require.NoError(t, src.Write(ctx, feature.NewState("F")))

		out, err := src.Read(ctx, "F")
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.False(t, out.Enabled())
		assert.Empty(t, out.StrategyID())
		assert.Empty(t, out.ParameterNames())
	})

	t.Run("DeleteAndFeatures", func(t *testing.T) {
		t.Parallel()

		src := mongosource.NewSource(newFakeCollection())
		for _, f := range []feature.Feature{"B", "A", "C"} {
			require.NoError(t, src.Write(ctx, feature.NewState(f)))
		}
		require.NoError(t, src.Delete(ctx, "B"))

		features, err := src.Features(ctx)
		require.NoError(t, err)
		assert.Equal(t, []feature.Feature{"A", "C"}, features)

		state, err := src.Read(ctx, "B")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("InvalidWrite", func(t *testing.T) {
		t.Parallel()

		src := mongosource.NewSource(newFakeCollection())
		err := src.Write(ctx, nil)
		assert.ErrorIs(t, err, feature.ErrInvalidState)
	})

	t.Run("DriverErrors", func(t *testing.T) {
		t.Parallel()

		coll := newFakeCollection()
		coll.fail(errors.New("connection reset"))
		src := mongosource.NewSource(coll)

		_, err := src.Read(ctx, "F")
		assert.ErrorIs(t, err, feature.ErrStorageUnavailable)

		err = src.Write(ctx, feature.NewState("F"))
		assert.ErrorIs(t, err, feature.ErrStorageUnavailable)

		err = src.Delete(ctx, "F")
		assert.ErrorIs(t, err, feature.ErrStorageUnavailable)

		_, err = src.Features(ctx)
		assert.ErrorIs(t, err, feature.ErrStorageUnavailable)
	})

	t.Run("WithManager", func(t *testing.T) {
		t.Parallel()

		manager := feature.NewManager(mongosource.NewSource(newFakeCollection()))
		require.NoError(t, manager.SetState(ctx, feature.NewState("BETA").
			Enable().
			SetStrategyID(feature.StrategyUsername).
			SetParameter(feature.ParamUsers, "alice,bob")))

		active, err := manager.IsActive(ctx, "BETA", feature.User{Name: "bob"})
		require.NoError(t, err)
		assert.True(t, active)

		active, err = manager.IsActive(ctx, "BETA", feature.User{Name: "carol"})
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("NilCollectionPanics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { mongosource.NewSource(nil) })
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := mongosource.New(context.Background(), mongosource.Config{})
	assert.ErrorIs(t, err, mongosource.ErrFailedToConnectToMongo)
	assert.ErrorIs(t, err, mongosource.ErrEmptyConnectionURL)

	_, _, err = mongosource.NewSourceFromConfig(context.Background(), mongosource.Config{})
	assert.ErrorIs(t, err, mongosource.ErrEmptyConnectionURL)
}
