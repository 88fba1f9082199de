// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xjson: JSON 输出工具，Pretty 格式化与 HTTP 响应
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
package util
