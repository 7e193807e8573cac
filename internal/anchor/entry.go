package anchor

// Entry 是一次成功注册后写入的不可变记录。
type Entry struct {
	HashHex      string `json:"hash_hex"`
	AnchorType   Type   `json:"anchor_type"`
	RegisteredAt uint64 `json:"registered_at"`
	Registrant   string `json:"registrant"`
}

// Config 是注册表的全局配置与计数器。
type Config struct {
	Admin        string `json:"admin"`
	TotalAnchors uint64 `json:"total_anchors"`
}

// VerifyResponse 是按命名空间校验哈希时的响应结构。
type VerifyResponse struct {
	Exists  bool   `json:"exists"`
	HashHex string `json:"hash_hex"`
	Entry   *Entry `json:"entry"`
}

// ConfigResponse 是 get_config 查询的响应结构。
type ConfigResponse struct {
	Admin        string `json:"admin"`
	TotalAnchors uint64 `json:"total_anchors"`
}
