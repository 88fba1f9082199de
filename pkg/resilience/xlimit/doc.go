// Package xlimit 提供按键限流，用于保护绕过缓存直连后端存储的接口。
//
// 两种后端：
//   - [NewRedis]：基于 redis_rate（GCRA），多实例共享配额
//   - [NewLocal]：进程内令牌桶，没有 Redis 时使用
//
// Redis 出错时限流器放行请求（fail-open），错误通过返回值交给调用方记录。
//
//	limiter, _ := xlimit.NewRedis(rdb, xlimit.Rule{Rate: 10, Burst: 10, Period: time.Second})
//	mux.Handle("GET /items/{id}/db", xlimit.HTTPMiddleware(limiter)(dbHandler))
package xlimit
