// Package xconf 基于 koanf 加载 YAML/JSON 配置，支持文件热重载。
//
// 只负责加载、反序列化与重载。必填校验与默认值由调用方的配置结构体处理。
//
//	cfg, err := xconf.New("/etc/itemcache/config.yaml")
//	var c app.Config
//	err = cfg.Unmarshal("", &c)
//
// 时间字段使用 Go duration 字符串（"120s"），实现 encoding.TextUnmarshaler
// 的类型（如 xlog.Level）直接从字符串解码。
//
// # 热重载
//
// [Watch] 监视配置文件所在目录（编辑器常以 rename 方式原子写入），
// 防抖后调用 Reload 并回调。Reload 解析失败时保留旧配置。
package xconf
