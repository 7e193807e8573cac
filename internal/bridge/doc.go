// Package bridge 是链下锚定客户端：构造规范载荷，记录提交回执，
// 通过队列异步把载荷摘要提交到注册表，并支持事后核验。
package bridge
