package migrations

import "embed"

// Files 包含注册表键值表与桥接回执表的建表脚本，按文件名前缀的版本号顺序执行。
//
//go:embed *.sql
var Files embed.FS
