// Package app 按配置装配 itemcache 服务：日志、OTel、缓存存储、分布式锁、
// 商品仓储、熔断、限流与 HTTP 接口，并负责运行与有序关闭。
//
// 配置加载顺序为 DefaultConfig 之上叠加配置文件，见 Load。
package app
