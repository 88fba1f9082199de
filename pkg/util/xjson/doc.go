// Package xjson 提供 JSON 输出工具：HTTP 响应写入与命令行格式化输出。
//
// 遵循 encoding/json 默认行为，HTML 特殊字符会被转义。
package xjson
