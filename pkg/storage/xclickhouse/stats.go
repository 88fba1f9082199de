package xclickhouse

// Stats 包装器统计
type Stats struct {
	PingCount   int64
	PingErrors  int64
	QueryCount  int64
	QueryErrors int64
	SlowQueries int64
	Pool        PoolStats
}

// PoolStats 连接池状态
type PoolStats struct {
	Open  int
	Idle  int
	InUse int
}
