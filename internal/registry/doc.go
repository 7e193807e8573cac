// Package registry 实现锚定注册表：三个相互隔离的命名空间将 32 字节摘要映射为
// 不可变的登记条目，另有一个全局配置单例记录管理员与累计锚定数量。
//
// 注册表只依赖 storage.Backend；条目写入与计数器递增在同一个存储事务中完成。
package registry
