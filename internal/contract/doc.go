// Package contract 是注册表的边界层：解码实例化、执行与查询消息，完成形状校验后
// 调用 registry，并将结果转换为带属性的响应或 JSON 查询结果。
package contract
