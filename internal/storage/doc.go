// Package storage 定义锚定注册表依赖的事务型键值存储能力。
// 具体实现位于 memory、mysql 与 redis 子包，均保证 Update 的全有或全无语义。
package storage
