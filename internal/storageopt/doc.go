// Package storageopt 是 xclickhouse、xmongo、xetcd 共享的健康检查超时、计数器与慢查询检测。
package storageopt
