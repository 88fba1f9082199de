package xmongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type fakeOps struct {
	pingErr     error
	pings       int
	disconnects int
}

func (f *fakeOps) Ping(context.Context, *readpref.ReadPref) error {
	f.pings++
	return f.pingErr
}

func (f *fakeOps) Disconnect(context.Context) error {
	f.disconnects++
	return nil
}

func (f *fakeOps) NumberSessionsInProgress() int { return 2 }

type fakeFinder struct {
	doc   any
	err   error
	delay time.Duration
	got   any
}

func (f *fakeFinder) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	time.Sleep(f.delay)
	f.got = filter
	return mongo.NewSingleResultFromDocument(f.doc, f.err, nil)
}

type product struct {
	ID   int64  `bson:"_id"`
	Name string `bson:"name"`
}

func newTestCollection(c *Client, f *fakeFinder) *Collection {
	coll := c.Collection("shop", "item")
	coll.finder = f
	return coll
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = Connect(Config{})
	assert.ErrorIs(t, err, ErrEmptyURI)
}

func TestCollection_FindOne_Decodes(t *testing.T) {
	// Given
	c := newClient(&fakeOps{})
	finder := &fakeFinder{doc: bson.D{{Key: "_id", Value: int64(7)}, {Key: "name", Value: "widget"}}}
	coll := newTestCollection(c, finder)

	// When
	var p product
	err := coll.FindOne(context.Background(), bson.D{{Key: "_id", Value: int64(7)}}, &p)

	// Then
	require.NoError(t, err)
	assert.Equal(t, product{ID: 7, Name: "widget"}, p)
	assert.Equal(t, bson.D{{Key: "_id", Value: int64(7)}}, finder.got)
}

func TestCollection_FindOne_NoDocuments(t *testing.T) {
	c := newClient(&fakeOps{})
	coll := newTestCollection(c, &fakeFinder{doc: bson.D{}, err: mongo.ErrNoDocuments})

	var p product
	err := coll.FindOne(context.Background(), bson.D{}, &p)

	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestCollection_FindOne_SlowQuery(t *testing.T) {
	// Given
	var infos []SlowQueryInfo
	c := newClient(&fakeOps{},
		WithSlowQueryThreshold(time.Millisecond),
		WithSlowQueryHook(func(_ context.Context, info SlowQueryInfo) { infos = append(infos, info) }),
	)
	coll := newTestCollection(c, &fakeFinder{doc: bson.D{{Key: "_id", Value: int64(1)}}, delay: 5 * time.Millisecond})

	// When
	var p product
	require.NoError(t, coll.FindOne(context.Background(), bson.D{}, &p))

	// Then
	require.Len(t, infos, 1)
	assert.Equal(t, "shop", infos[0].Database)
	assert.Equal(t, "item", infos[0].Collection)
	assert.Equal(t, "findOne", infos[0].Operation)
	assert.Equal(t, int64(1), c.Stats().SlowQueries)
}

func TestClient_Health(t *testing.T) {
	ops := &fakeOps{}
	c := newClient(ops)

	require.NoError(t, c.Health(context.Background()))
	ops.pingErr = errors.New("server selection timeout")
	assert.Error(t, c.Health(context.Background()))

	s := c.Stats()
	assert.Equal(t, int64(2), s.PingCount)
	assert.Equal(t, int64(1), s.PingErrors)
	assert.Equal(t, 2, s.InUseSessions)
}

func TestClient_Close(t *testing.T) {
	ops := &fakeOps{}
	c := newClient(ops)
	coll := newTestCollection(c, &fakeFinder{})

	require.NoError(t, c.Close(context.Background()))
	assert.ErrorIs(t, c.Close(context.Background()), ErrClosed)
	assert.Equal(t, 1, ops.disconnects)
	assert.ErrorIs(t, c.Health(context.Background()), ErrClosed)
	assert.ErrorIs(t, coll.FindOne(context.Background(), bson.D{}, &product{}), ErrClosed)
}
