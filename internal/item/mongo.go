package item

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

// DocumentFinder 单文档查询，*xmongo.Collection 满足。
type DocumentFinder interface {
	FindOne(ctx context.Context, filter, out any) error
}

// MongoRepository 从 MongoDB 集合读取商品，文档 _id 即商品 id。
type MongoRepository struct {
	coll DocumentFinder
}

// NewMongoRepository 创建 MongoDB 仓储
func NewMongoRepository(coll DocumentFinder) (*MongoRepository, error) {
	if coll == nil {
		return nil, ErrNilBackend
	}
	return &MongoRepository{coll: coll}, nil
}

// Get 按 _id 查询
func (r *MongoRepository) Get(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}, &it)
	switch {
	case err == nil:
		return it, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return Item{}, fmt.Errorf("item %d: %w", id, xstampede.ErrNotFound)
	default:
		return Item{}, fmt.Errorf("item %d: mongo: %w", id, err)
	}
}
