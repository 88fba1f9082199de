package xstampede

import (
	"encoding/json"
	"time"
)

// entry 是写入缓存的条目，值整体替换，从不局部更新。
type entry[V any] struct {
	Value V `json:"v"`
	// LogicalExpireAt 逻辑过期时间（Unix 毫秒），仅 ModeLogicalTTL 写入。
	LogicalExpireAt int64 `json:"lx,omitempty"`
}

// fresh 判断条目在 now 时刻是否逻辑新鲜。
// 没有逻辑过期时间的条目只受物理过期约束。
func (e *entry[V]) fresh(now time.Time) bool {
	return e.LogicalExpireAt == 0 || now.UnixMilli() < e.LogicalExpireAt
}

func encodeEntry[V any](e entry[V]) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry[V any](data []byte) (entry[V], error) {
	var e entry[V]
	err := json.Unmarshal(data, &e)
	return e, err
}
