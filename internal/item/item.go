package item

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Item 商品只读投影
type Item struct {
	ID    int64   `json:"id" bson:"_id"`
	Name  string  `json:"name" bson:"name"`
	Price float64 `json:"price" bson:"price"`
	Stock int64   `json:"stock" bson:"stock"`
}

// Repository 商品后端仓储。
// 商品不存在时返回的错误满足 errors.Is(err, xstampede.ErrNotFound)。
type Repository interface {
	Get(ctx context.Context, id int64) (Item, error)
}

var (
	// ErrInvalidID id 不是正整数
	ErrInvalidID = errors.New("item: id must be a positive integer")

	// ErrNilBackend 仓储的底层连接为 nil
	ErrNilBackend = errors.New("item: nil backend")
)

// ParseID 解析路径中的商品 id
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}
