// Package mysql 提供基于 MySQL 的事务型键值存储实现，并负责执行
// deploy/migrations 中嵌入的建表脚本。
package mysql
