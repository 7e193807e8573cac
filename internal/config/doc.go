// Package config 负责加载 anchord 的配置文件（JSON 或 YAML），填充默认值，
// 解析相对路径并应用环境变量覆盖。
package config
