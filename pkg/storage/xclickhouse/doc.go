// Package xclickhouse 封装 clickhouse-go 连接，为点查提供统一的观测能力。
//
// 每次 QueryRow 都会开启 xmetrics span、累计查询计数，耗时超过阈值时触发慢查询钩子。
// Health 使用 Ping 检测连接，供 /healthz 与启动重试使用。
//
//	ch, err := xclickhouse.Open(xclickhouse.Config{Addrs: []string{"127.0.0.1:9000"}},
//		xclickhouse.WithSlowQueryThreshold(200*time.Millisecond))
//	row := ch.QueryRow(ctx, "SELECT id, name, price, stock FROM item WHERE id = ?", 7)
package xclickhouse
