package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xerrors "ProjectAnchor/internal/errors"
	"ProjectAnchor/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "ANCHOR_CONFIG"

// DefaultPath 是未设置环境变量时使用的配置文件。
const DefaultPath = "configs/anchor.yaml"

// Config 描述了 anchord 在启动阶段需要加载的全部配置。
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Ledger   LedgerConfig   `json:"ledger" yaml:"ledger"`
	Web3     Web3Config     `json:"web3" yaml:"web3"`
	Bridge   BridgeConfig   `json:"bridge" yaml:"bridge"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Alerting AlertingConfig `json:"alerting" yaml:"alerting"`
	Logging  logger.Config  `json:"logging" yaml:"logging"`
	Runtime  RuntimeConfig  `json:"runtime" yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与超时。
type ServerConfig struct {
	Address         string   `json:"address" yaml:"address"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StorageConfig 选择注册表使用的键值存储。
type StorageConfig struct {
	Driver string      `json:"driver" yaml:"driver"`
	MySQL  MySQLConfig `json:"mysql" yaml:"mysql"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
}

// MySQLConfig 描述 MySQL 连接参数。
type MySQLConfig struct {
	DSN             string   `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int      `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int      `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Address    string `json:"address" yaml:"address"`
	Password   string `json:"password" yaml:"password"`
	DB         int    `json:"db" yaml:"db"`
	Prefix     string `json:"prefix" yaml:"prefix"`
	MaxRetries int    `json:"max_retries" yaml:"max_retries"`
}

// RegistryConfig 控制启动时的初始化行为。
type RegistryConfig struct {
	// AutoInstantiate 为 true 时，若注册表尚未初始化则以 Admin 身份初始化。
	AutoInstantiate bool   `json:"auto_instantiate" yaml:"auto_instantiate"`
	Admin           string `json:"admin" yaml:"admin"`
}

// LedgerConfig 选择区块高度来源。
type LedgerConfig struct {
	Clock   string `json:"clock" yaml:"clock"`
	Chain   string `json:"chain" yaml:"chain"`
	ChainID string `json:"chain_id" yaml:"chain_id"`
}

// Web3Config 包含访问区块链节点所需的配置。
type Web3Config struct {
	ChainConfig  string `json:"chain_config" yaml:"chain_config"`
	DefaultChain string `json:"default_chain" yaml:"default_chain"`
	RPCURL       string `json:"rpc_url" yaml:"rpc_url"`
}

// BridgeConfig 描述链下锚定客户端。
type BridgeConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Submitter    string            `json:"submitter" yaml:"submitter"`
	Network      string            `json:"network" yaml:"network"`
	Networks     map[string]string `json:"networks" yaml:"networks"`
	Token        string            `json:"token" yaml:"token"`
	Workers      int               `json:"workers" yaml:"workers"`
	MaxAttempts  int               `json:"max_attempts" yaml:"max_attempts"`
	Timeout      Duration          `json:"timeout" yaml:"timeout"`
	ReceiptStore string            `json:"receipt_store" yaml:"receipt_store"`
	Queue        QueueConfig       `json:"queue" yaml:"queue"`
	EVMChain     string            `json:"evm_chain" yaml:"evm_chain"`
}

// QueueConfig 选择桥接任务队列。
type QueueConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	Name     string `json:"name" yaml:"name"`
	URL      string `json:"url" yaml:"url"`
	Size     int    `json:"size" yaml:"size"`
	Prefetch int    `json:"prefetch" yaml:"prefetch"`
}

// AuthConfig 将 API 令牌映射为调用方身份。
type AuthConfig struct {
	Enabled  bool              `json:"enabled" yaml:"enabled"`
	Operator string            `json:"operator" yaml:"operator"`
	Tokens   map[string]string `json:"tokens" yaml:"tokens"`
	ReadOnly []string          `json:"read_only" yaml:"read_only"`
}

// AlertingConfig 控制桥接失败告警。
type AlertingConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Webhook string   `json:"webhook" yaml:"webhook"`
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// ResolvePath 返回配置文件路径：优先环境变量，其次默认值。
func ResolvePath() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	return DefaultPath
}

// Load 解析指定路径的配置文件，按扩展名选择 JSON 或 YAML。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取配置文件失败", xerrors.WithMetadata("path", path))
	}

	cfg, err := Parse(content, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 解码配置内容，不填充默认值。
func Parse(content []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析 JSON 配置失败")
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析 YAML 配置失败")
		}
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的配置文件格式", xerrors.WithMetadata("ext", ext))
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	return cfg
}

// applyEnv 应用少量常用的环境变量覆盖。
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ANCHOR_LISTEN")); v != "" {
		c.Server.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("ANCHOR_STORAGE_DRIVER")); v != "" {
		c.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("ANCHOR_MYSQL_DSN")); v != "" {
		c.Storage.MySQL.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("ANCHOR_REDIS_ADDR")); v != "" {
		c.Storage.Redis.Address = v
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(5 * time.Second)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "anchor:kv:"
	}

	c.Ledger.Clock = strings.ToLower(strings.TrimSpace(c.Ledger.Clock))
	if c.Ledger.Clock == "" {
		c.Ledger.Clock = "sequence"
	}
	if c.Ledger.ChainID == "" {
		c.Ledger.ChainID = "anchor-local"
	}

	if c.Web3.ChainConfig != "" && !filepath.IsAbs(c.Web3.ChainConfig) {
		c.Web3.ChainConfig = filepath.Join(baseDir, c.Web3.ChainConfig)
	}

	if c.Bridge.Submitter == "" {
		c.Bridge.Submitter = "host"
	}
	if c.Bridge.Network == "" {
		c.Bridge.Network = "local"
	}
	if c.Bridge.Workers <= 0 {
		c.Bridge.Workers = 2
	}
	if c.Bridge.MaxAttempts <= 0 {
		c.Bridge.MaxAttempts = 3
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = Duration(30 * time.Second)
	}
	if c.Bridge.ReceiptStore == "" {
		c.Bridge.ReceiptStore = "memory"
	}
	if c.Bridge.Queue.Driver == "" {
		c.Bridge.Queue.Driver = "memory"
	}
	if c.Bridge.Queue.Name == "" {
		c.Bridge.Queue.Name = "anchor.bridge"
	}

	if c.Auth.Operator == "" {
		c.Auth.Operator = "operator"
	}
	if c.Registry.Admin == "" {
		c.Registry.Admin = c.Auth.Operator
	}

	if c.Alerting.Timeout == 0 {
		c.Alerting.Timeout = Duration(5 * time.Second)
	}

	if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}

// Validate 检查枚举取值与必填项。
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.MySQL.DSN) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "storage.mysql.dsn 不能为空")
		}
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Address) == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "storage.redis.address 不能为空")
		}
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, "未知的存储驱动", xerrors.WithMetadata("driver", c.Storage.Driver))
	}

	switch c.Ledger.Clock {
	case "sequence", "chain":
	default:
		return xerrors.New(xerrors.CodeInvalidArgument, "未知的区块高度来源", xerrors.WithMetadata("clock", c.Ledger.Clock))
	}

	if c.Bridge.Enabled {
		switch c.Bridge.Submitter {
		case "host", "http", "dry_run", "evm":
		default:
			return xerrors.New(xerrors.CodeInvalidArgument, "未知的桥接提交方式", xerrors.WithMetadata("submitter", c.Bridge.Submitter))
		}
		switch c.Bridge.Queue.Driver {
		case "memory", "redis", "rabbitmq":
		default:
			return xerrors.New(xerrors.CodeInvalidArgument, "未知的桥接队列", xerrors.WithMetadata("driver", c.Bridge.Queue.Driver))
		}
		switch c.Bridge.ReceiptStore {
		case "memory", "mysql":
		default:
			return xerrors.New(xerrors.CodeInvalidArgument, "未知的回执存储", xerrors.WithMetadata("store", c.Bridge.ReceiptStore))
		}
		if c.Bridge.ReceiptStore == "mysql" && c.Storage.MySQL.DSN == "" {
			return xerrors.New(xerrors.CodeInvalidArgument, "mysql 回执存储需要 storage.mysql.dsn")
		}
	}
	return nil
}
