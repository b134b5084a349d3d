package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 为所有环境变量覆盖项的前缀，例如 MEREM_SERVER_ADDRESS。
const EnvPrefix = "MEREM"

// Config 描述了 Merem 在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Agent     AgentConfig     `mapstructure:"agent"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Web3      Web3Config      `mapstructure:"web3"`
	Birdeye   BirdeyeConfig   `mapstructure:"birdeye"`
	News      NewsConfig      `mapstructure:"news"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address  string `mapstructure:"address" validate:"required"`
	APIToken string `mapstructure:"api_token"`
}

// AgentConfig 描述智能体的人设与运行参数。
type AgentConfig struct {
	ID          string        `mapstructure:"id"`
	Name        string        `mapstructure:"name" validate:"required"`
	Bio         []string      `mapstructure:"bio"`
	Lore        []string      `mapstructure:"lore"`
	Topics      []string      `mapstructure:"topics"`
	MemoryDepth int           `mapstructure:"memory_depth" validate:"gte=1"`
	Timeout     time.Duration `mapstructure:"timeout"`
	FactEvery   int           `mapstructure:"fact_every" validate:"gte=1"`
}

// LLMConfig 用于配置大模型推理的调用方式。
type LLMConfig struct {
	Provider  string             `mapstructure:"provider" validate:"oneof=openai anthropic gemini ollama python_bridge"`
	APIKey    string             `mapstructure:"api_key"`
	APIKeyEnv string             `mapstructure:"api_key_env"`
	BaseURL   string             `mapstructure:"base_url"`
	Models    ModelsConfig       `mapstructure:"models"`
	Timeout   time.Duration      `mapstructure:"timeout"`
	Python    PythonBridgeConfig `mapstructure:"python_bridge"`
}

// ModelsConfig 将模型等级映射为具体模型名。
type ModelsConfig struct {
	Small  string `mapstructure:"small"`
	Medium string `mapstructure:"medium"`
	Large  string `mapstructure:"large"`
}

// PythonBridgeConfig 描述通过 Python 脚本完成推理时所需的信息。
type PythonBridgeConfig struct {
	PythonExecutable string `mapstructure:"python_executable"`
	ScriptPath       string `mapstructure:"script_path"`
	WorkingDir       string `mapstructure:"working_dir"`
}

// MemoryConfig 描述记忆存储后端。
type MemoryConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=file mysql postgres redis mongo"`
	DSN      string `mapstructure:"dsn" validate:"required_unless=Driver file"`
	DataDir  string `mapstructure:"data_dir"`
	Database string `mapstructure:"database"`
}

// QueueConfig 描述异步消息队列。
type QueueConfig struct {
	Driver   string         `mapstructure:"driver" validate:"oneof=memory redis rabbitmq"`
	Workers  int            `mapstructure:"workers" validate:"gte=1"`
	Buffer   int            `mapstructure:"buffer"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// RedisConfig 对应 redis 队列的连接参数。
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// RabbitMQConfig 对应 rabbitmq 队列的连接参数。
type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// Web3Config 包含链配置文件以及 Solana 钱包凭证。
type Web3Config struct {
	ChainConfig  string       `mapstructure:"chain_config"`
	DefaultChain string       `mapstructure:"default_chain"`
	Solana       SolanaConfig `mapstructure:"solana"`
}

// SolanaConfig 为 SolanaTools 动作提供钱包凭证。
type SolanaConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"`
	PublicKey  string `mapstructure:"public_key"`
}

// BirdeyeConfig 描述 Birdeye 行情接口。
type BirdeyeConfig struct {
	APIKey  string            `mapstructure:"api_key"`
	BaseURL string            `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Tokens  map[string]string `mapstructure:"tokens"`
}

// NewsConfig 描述 NewsAPI 接口。
type NewsConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PluginsConfig 指向插件管理器的 YAML 配置。
type PluginsConfig struct {
	Config  string   `mapstructure:"config"`
	Enabled []string `mapstructure:"enabled"`
}

// KnowledgeConfig 指向静态知识库文件。
type KnowledgeConfig struct {
	Path       string `mapstructure:"path"`
	MaxResults int    `mapstructure:"max_results" validate:"gte=0"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level      string   `mapstructure:"level"`
	Format     string   `mapstructure:"format" validate:"omitempty,oneof=json text console"`
	Outputs    []string `mapstructure:"outputs"`
	MaxSizeMB  int      `mapstructure:"max_size_mb"`
	MaxBackups int      `mapstructure:"max_backups"`
	MaxAgeDays int      `mapstructure:"max_age_days"`
	AuditPath  string   `mapstructure:"audit_path"`
}

// MetricsConfig 控制 /metrics 端点。
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AlertingConfig 控制告警的投递方式。
type AlertingConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// 兼容原有插件使用的环境变量名。
var legacyEnv = map[string]string{
	"llm.api_key":             "OPENAI_API_KEY",
	"birdeye.api_key":         "BIRDEYE_API_KEY",
	"news.api_key":            "NEWS_API_KEY",
	"web3.solana.rpc_url":     "SOLANA_RPC_URL",
	"web3.solana.private_key": "SOLANA_PRIVATE_KEY",
	"web3.solana.public_key":  "SOLANA_PUBLIC_KEY",
}

// Load 负责解析指定路径的配置文件（YAML/JSON），并合并 .env 与环境变量。
// path 为空时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	baseDir := "."
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("打开配置文件失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := loadDotEnv(baseDir); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(baseDir string) error {
	candidate := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	// godotenv.Load 不覆盖已存在的环境变量。
	if err := godotenv.Load(candidate); err != nil {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.api_token", "")
	v.SetDefault("agent.id", "")
	v.SetDefault("agent.name", "Merem")
	v.SetDefault("agent.memory_depth", 20)
	v.SetDefault("agent.timeout", "60s")
	v.SetDefault("agent.fact_every", 10)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.models.small", "")
	v.SetDefault("llm.models.medium", "")
	v.SetDefault("llm.models.large", "")
	v.SetDefault("llm.python_bridge.python_executable", "python3")
	v.SetDefault("llm.python_bridge.script_path", "")
	v.SetDefault("memory.driver", "file")
	v.SetDefault("memory.dsn", "")
	v.SetDefault("memory.data_dir", "")
	v.SetDefault("memory.database", "merem")
	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.buffer", 64)
	v.SetDefault("queue.redis.address", "127.0.0.1:6379")
	v.SetDefault("queue.redis.password", "")
	v.SetDefault("queue.redis.db", 0)
	v.SetDefault("queue.redis.key", "merem:inbox")
	v.SetDefault("queue.rabbitmq.url", "")
	v.SetDefault("queue.rabbitmq.queue", "merem.inbox")
	v.SetDefault("web3.chain_config", "")
	v.SetDefault("web3.default_chain", "solana-mainnet")
	v.SetDefault("web3.solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("web3.solana.private_key", "")
	v.SetDefault("web3.solana.public_key", "")
	v.SetDefault("birdeye.api_key", "")
	v.SetDefault("birdeye.base_url", "https://public-api.birdeye.so")
	v.SetDefault("birdeye.timeout", "10s")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.base_url", "https://newsapi.org")
	v.SetDefault("news.timeout", "10s")
	v.SetDefault("plugins.config", "")
	v.SetDefault("plugins.enabled", []string{"merem", "test"})
	v.SetDefault("knowledge.path", "")
	v.SetDefault("knowledge.max_results", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.outputs", []string{"stdout"})
	v.SetDefault("log.audit_path", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("alerting.webhook_url", "")
	v.SetDefault("alerting.timeout", "5s")
}

// applyDefaults 处理无法通过 viper 默认值表达的字段，例如相对路径。
func (c *Config) applyDefaults(baseDir string) {
	if c.LLM.APIKey == "" && c.LLM.APIKeyEnv != "" {
		c.LLM.APIKey = os.Getenv(c.LLM.APIKeyEnv)
	}

	if c.LLM.Python.WorkingDir == "" {
		c.LLM.Python.WorkingDir = baseDir
	} else if !filepath.IsAbs(c.LLM.Python.WorkingDir) {
		c.LLM.Python.WorkingDir = filepath.Join(baseDir, c.LLM.Python.WorkingDir)
	}

	if c.Memory.DataDir == "" {
		c.Memory.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Memory.DataDir) {
		c.Memory.DataDir = filepath.Join(baseDir, c.Memory.DataDir)
	}

	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	c.Plugins.Config = resolve(baseDir, c.Plugins.Config)
	c.Knowledge.Path = resolve(baseDir, c.Knowledge.Path)
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate 使用 validator 校验配置字段。
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}
