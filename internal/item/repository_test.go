package item

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/mock/gomock"

	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"7", 7, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1.5", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// ClickHouse
// =============================================================================

func TestNewClickHouseRepository_Nil(t *testing.T) {
	_, err := NewClickHouseRepository(nil)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestClickHouseRepository_Get_ScansRow(t *testing.T) {
	// Given
	ctrl := gomock.NewController(t)
	db := NewMockRowQuerier(ctrl)
	row := NewMockRow(ctrl)
	ctx := context.Background()

	db.EXPECT().QueryRow(ctx, selectItemSQL, int64(7)).Return(row)
	row.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(dest ...any) error {
			*dest[0].(*int64) = 7
			*dest[1].(*string) = "widget"
			*dest[2].(*float64) = 9.5
			*dest[3].(*int64) = 3
			return nil
		})
	repo, err := NewClickHouseRepository(db)
	require.NoError(t, err)

	// When
	it, err := repo.Get(ctx, 7)

	// Then
	require.NoError(t, err)
	assert.Equal(t, Item{ID: 7, Name: "widget", Price: 9.5, Stock: 3}, it)
}

func TestClickHouseRepository_Get_NoRows_IsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := NewMockRowQuerier(ctrl)
	row := NewMockRow(ctrl)
	db.EXPECT().QueryRow(gomock.Any(), selectItemSQL, int64(404)).Return(row)
	row.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sql.ErrNoRows)
	repo, err := NewClickHouseRepository(db)
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), 404)

	assert.ErrorIs(t, err, xstampede.ErrNotFound)
	assert.Contains(t, err.Error(), "item 404")
}

func TestClickHouseRepository_Get_DriverError(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := NewMockRowQuerier(ctrl)
	row := NewMockRow(ctrl)
	driverErr := errors.New("code: 210, connection refused")
	db.EXPECT().QueryRow(gomock.Any(), gomock.Any(), gomock.Any()).Return(row)
	row.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(driverErr)
	repo, err := NewClickHouseRepository(db)
	require.NoError(t, err)

	_, err = repo.Get(context.Background(), 1)

	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, xstampede.ErrNotFound)
}

// =============================================================================
// MongoDB
// =============================================================================

type fakeFinder struct {
	doc    Item
	err    error
	filter any
}

func (f *fakeFinder) FindOne(_ context.Context, filter, out any) error {
	f.filter = filter
	if f.err != nil {
		return f.err
	}
	*out.(*Item) = f.doc
	return nil
}

func TestNewMongoRepository_Nil(t *testing.T) {
	_, err := NewMongoRepository(nil)
	assert.ErrorIs(t, err, ErrNilBackend)
}

func TestMongoRepository_Get(t *testing.T) {
	// Given
	finder := &fakeFinder{doc: Item{ID: 3, Name: "gadget", Price: 1.25, Stock: 10}}
	repo, err := NewMongoRepository(finder)
	require.NoError(t, err)

	// When
	it, err := repo.Get(context.Background(), 3)

	// Then
	require.NoError(t, err)
	assert.Equal(t, "gadget", it.Name)
	assert.Equal(t, bson.D{{Key: "_id", Value: int64(3)}}, finder.filter)
}

func TestMongoRepository_Get_Errors(t *testing.T) {
	repo, err := NewMongoRepository(&fakeFinder{err: mongo.ErrNoDocuments})
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), 9)
	assert.ErrorIs(t, err, xstampede.ErrNotFound)

	timeout := errors.New("server selection error")
	repo, err = NewMongoRepository(&fakeFinder{err: timeout})
	require.NoError(t, err)
	_, err = repo.Get(context.Background(), 9)
	assert.ErrorIs(t, err, timeout)
	assert.NotErrorIs(t, err, xstampede.ErrNotFound)
}
