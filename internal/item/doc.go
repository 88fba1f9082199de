// Package item 是商品读取服务的领域层：商品模型、后端仓储、回源函数与 HTTP 接口。
//
// GET /items/{id} 经 xstampede.Controller 读取；GET /items/{id}/db 绕过缓存直读仓储，
// 并受 xlimit 限流保护。仓储调用外层包一个熔断器，未找到不计为失败。
package item
