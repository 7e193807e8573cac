// Package api 暴露注册表、载荷构建与桥接回执的 REST 接口。
package api
