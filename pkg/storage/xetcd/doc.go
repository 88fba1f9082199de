// Package xetcd 创建供分布式锁使用的 etcd 客户端。
//
// 只负责连接管理：配置校验、gRPC keepalive、可选的启动健康检查和运行期 Health。
// KV 与租约操作直接使用 RawClient 返回的 *clientv3.Client。
package xetcd
