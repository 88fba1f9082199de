// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 非阻塞的分布式锁，支持 Redis、etcd 与进程内后端
package distributed
