package storageopt

import "sync/atomic"

// HealthCounter 健康检查计数器
type HealthCounter struct {
	pingCount  atomic.Int64
	pingErrors atomic.Int64
}

func (h *HealthCounter) IncPing()          { h.pingCount.Add(1) }
func (h *HealthCounter) IncPingError()     { h.pingErrors.Add(1) }
func (h *HealthCounter) PingCount() int64  { return h.pingCount.Load() }
func (h *HealthCounter) PingErrors() int64 { return h.pingErrors.Load() }

// QueryCounter 查询计数器。未命中的单行查询不计为错误，由调用方决定。
type QueryCounter struct {
	queryCount  atomic.Int64
	queryErrors atomic.Int64
}

func (q *QueryCounter) IncQuery()          { q.queryCount.Add(1) }
func (q *QueryCounter) IncQueryError()     { q.queryErrors.Add(1) }
func (q *QueryCounter) QueryCount() int64  { return q.queryCount.Load() }
func (q *QueryCounter) QueryErrors() int64 { return q.queryErrors.Load() }
