package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Config 描述了 AgentLink 在启动阶段需要加载的核心配置。
type Config struct {
	Logger  LoggerConfig  `json:"logger"`
	Bus     BusConfig     `json:"bus"`
	Archive ArchiveConfig `json:"archive"`
	Web3    Web3Config    `json:"web3"`
	Agents  AgentsConfig  `json:"agents"`
}

// LoggerConfig 控制日志输出的级别与格式。
type LoggerConfig struct {
	Level       string      `json:"level"`
	Format      string      `json:"format"`
	OutputPaths []string    `json:"output_paths"`
	Audit       AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志的落盘与滚动策略。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// BusConfig 选择消息总线的驱动。核心实现是进程内的内存总线，
// redis 和 rabbitmq 属于跨进程部署时的可选驱动。
type BusConfig struct {
	Driver   string            `json:"driver"`
	Redis    RedisBusConfig    `json:"redis"`
	RabbitMQ RabbitMQBusConfig `json:"rabbitmq"`
}

// RedisBusConfig 描述 Redis 总线驱动的连接参数。
type RedisBusConfig struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	KeyPrefix        string `json:"key_prefix"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQBusConfig 描述 RabbitMQ 总线驱动的连接参数。
type RabbitMQBusConfig struct {
	URL         string `json:"url"`
	QueuePrefix string `json:"queue_prefix"`
	Prefetch    int    `json:"prefetch"`
	Durable     bool   `json:"durable"`
	AutoDelete  bool   `json:"auto_delete"`
}

// ArchiveConfig 描述会话归档的存储后端。
type ArchiveConfig struct {
	Driver     string `json:"driver"`
	DSN        string `json:"dsn"`
	MaxRecords int    `json:"max_records"`
}

// Web3Config 包含访问区块链节点与代币合约所需的信息。
// 私钥永远不会写进配置文件，只通过 PrivateKeyEnv 指定的环境变量传入。
type Web3Config struct {
	Enabled        bool   `json:"enabled"`
	RPCURL         string `json:"rpc_url"`
	ChainsFile     string `json:"chains_file"`
	DefaultChain   string `json:"default_chain"`
	TokenAddress   string `json:"token_address"`
	AccountAddress string `json:"account_address"`
	PrivateKeyEnv  string `json:"private_key_env"`
}

// AgentsConfig 描述互相接线的两个智能体以及它们的行为参数。
type AgentsConfig struct {
	First    AgentConfig    `json:"first"`
	Second   AgentConfig    `json:"second"`
	Random   RandomConfig   `json:"random"`
	Balance  BalanceConfig  `json:"balance"`
	Transfer TransferConfig `json:"transfer"`
}

// AgentConfig 目前只包含名称，后续可以扩展独立的行为开关。
type AgentConfig struct {
	Name string `json:"name"`
}

// RandomConfig 控制随机消息行为：执行间隔与注入的词表。
type RandomConfig struct {
	IntervalSeconds int      `json:"interval_seconds"`
	Words           []string `json:"words"`
}

// BalanceConfig 控制余额轮询行为的执行间隔。
type BalanceConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// TransferConfig 控制转账处理器：消息未携带目标地址时的兜底地址。
type TransferConfig struct {
	DefaultTarget string `json:"default_target"`
}

// defaultWords 是随机消息行为的默认词表。
var defaultWords = []string{
	"hello", "sun", "world", "space", "moon",
	"crypto", "sky", "ocean", "universe", "human",
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}

	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Redis.KeyPrefix == "" {
		c.Bus.Redis.KeyPrefix = "agentlink:bus"
	}
	if c.Bus.RabbitMQ.QueuePrefix == "" {
		c.Bus.RabbitMQ.QueuePrefix = "agentlink.bus"
	}

	if c.Archive.Driver == "" {
		c.Archive.Driver = "memory"
	}
	if c.Archive.MaxRecords <= 0 {
		c.Archive.MaxRecords = 4096
	}

	if c.Web3.PrivateKeyEnv == "" {
		c.Web3.PrivateKeyEnv = "AGENTLINK_PRIVATE_KEY"
	}
	if c.Web3.ChainsFile != "" && !filepath.IsAbs(c.Web3.ChainsFile) {
		c.Web3.ChainsFile = filepath.Join(baseDir, c.Web3.ChainsFile)
	}

	if c.Agents.First.Name == "" {
		c.Agents.First.Name = "Agent1"
	}
	if c.Agents.Second.Name == "" {
		c.Agents.Second.Name = "Agent2"
	}
	if c.Agents.Random.IntervalSeconds <= 0 {
		c.Agents.Random.IntervalSeconds = 2
	}
	if len(c.Agents.Random.Words) == 0 {
		c.Agents.Random.Words = append([]string(nil), defaultWords...)
	}
	if c.Agents.Balance.IntervalSeconds <= 0 {
		c.Agents.Balance.IntervalSeconds = 10
	}
	if c.Agents.Transfer.DefaultTarget == "" {
		c.Agents.Transfer.DefaultTarget = "0x0123456789012345678901234567890123456789"
	}
}
