package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/omeyang/itemcache/pkg/storage/xstampede"
)

//go:generate mockgen -source=clickhouse.go -destination=mock_querier_test.go -package=item
//go:generate mockgen -destination=mock_row_test.go -package=item github.com/ClickHouse/clickhouse-go/v2/lib/driver Row

const selectItemSQL = "SELECT id, name, price, stock FROM item WHERE id = ?"

// RowQuerier 单行查询，*xclickhouse.Client 满足。
type RowQuerier interface {
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// ClickHouseRepository 从 ClickHouse item 表读取商品。
// 表结构：id Int64, name String, price Float64, stock Int64。
type ClickHouseRepository struct {
	db RowQuerier
}

// NewClickHouseRepository 创建 ClickHouse 仓储
func NewClickHouseRepository(db RowQuerier) (*ClickHouseRepository, error) {
	if db == nil {
		return nil, ErrNilBackend
	}
	return &ClickHouseRepository{db: db}, nil
}

// Get 按主键查询
func (r *ClickHouseRepository) Get(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := r.db.QueryRow(ctx, selectItemSQL, id).Scan(&it.ID, &it.Name, &it.Price, &it.Stock)
	switch {
	case err == nil:
		return it, nil
	case errors.Is(err, sql.ErrNoRows):
		return Item{}, fmt.Errorf("item %d: %w", id, xstampede.ErrNotFound)
	default:
		return Item{}, fmt.Errorf("item %d: clickhouse: %w", id, err)
	}
}
