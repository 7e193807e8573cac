// Package redis 提供基于 Redis 的事务型键值存储实现。Update 使用
// WATCH/MULTI/EXEC 乐观事务，冲突时有限次重试。
package redis
