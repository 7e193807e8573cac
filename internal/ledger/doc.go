// Package ledger 扮演宿主账本：串行化执行消息，为每次调用提供区块高度，
// 并把调用方身份传递给边界处理器。
package ledger
