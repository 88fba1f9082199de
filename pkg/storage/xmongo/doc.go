// Package xmongo 封装 MongoDB 客户端，为按主键的单文档读取提供统一观测。
//
// Collection.FindOne 开启 xmetrics span，耗时超过阈值时触发慢查询钩子；
// mongo.ErrNoDocuments 原样返回且不视为失败。
package xmongo
