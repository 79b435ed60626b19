package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 采集服务配置
type Config struct {
	System struct {
		LogLevel string `yaml:"log_level"` // debug/info/warn/error
		LogDir   string `yaml:"log_dir"`   // DEBUG 级别时的日志目录，默认 logs
		Timezone string `yaml:"timezone"`  // 时区，如 "Asia/Shanghai"
		Language string `yaml:"language"`  // 报警文案语言，如 "zh-CN" 或 "en-US"
	} `yaml:"system"`

	// 数据库配置（支持 SQLite、PostgreSQL、MySQL）
	Database struct {
		Type            string `yaml:"type"`              // sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn"`               // 默认 ./data/leadwatch.db
		MaxOpenConns    int    `yaml:"max_open_conns"`    // 最大打开连接数，默认20（sqlite 固定为1）
		MaxIdleConns    int    `yaml:"max_idle_conns"`    // 最大空闲连接数，默认5
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // 连接最大生命周期（秒），默认3600
		LogLevel        string `yaml:"log_level"`         // silent, error, warn, info，默认 error
	} `yaml:"database"`

	// OKX 公共接口
	OKX struct {
		BaseURL   string  `yaml:"base_url"`   // 默认 https://www.okx.com
		Timeout   int     `yaml:"timeout"`    // 单次请求超时（秒），默认10
		RateLimit float64 `yaml:"rate_limit"` // 每秒请求数，默认5
		Burst     int     `yaml:"burst"`      // 突发请求数，默认2
		UserAgent string  `yaml:"user_agent"`
	} `yaml:"okx"`

	Collector struct {
		Interval       int     `yaml:"interval"`        // 采集间隔（秒），默认300
		Offset         int     `yaml:"offset"`          // 桶边界后延迟（秒），默认5
		RunOnStart     bool    `yaml:"run_on_start"`    // 启动时立即采集一次
		EnableAlerting *bool   `yaml:"enable_alerting"` // 异动检测与通知，默认 true
		AccurateAsset  *bool   `yaml:"accurate_asset"`  // 使用 trade-data 的带单员资产，默认 true
		Concurrency    int     `yaml:"concurrency"`     // 并发请求数，默认2
		ChunkSize      int     `yaml:"chunk_size"`      // 每批语句数，默认90
		Threshold      float64 `yaml:"threshold"`       // 报警阈值（0.05 表示 5%）
		LockTTL        int     `yaml:"lock_ttl"`        // 采集锁过期时间（秒），默认240
	} `yaml:"collector"`

	// 分布式锁配置（多实例部署）
	DistributedLock struct {
		Enabled bool   `yaml:"enabled"` // 默认 false（进程内锁）
		Type    string `yaml:"type"`    // 默认 redis
		Prefix  string `yaml:"prefix"`  // 默认 "leadwatch:lock:"

		Redis struct {
			Addr     string `yaml:"addr"`      // 默认 localhost:6379
			Password string `yaml:"password"`  // 可用 REDIS_PASSWORD 覆盖
			DB       int    `yaml:"db"`        // 默认0
			PoolSize int    `yaml:"pool_size"` // 默认10
		} `yaml:"redis"`
	} `yaml:"distributed_lock"`

	// 通知配置
	Notifications struct {
		Enabled bool `yaml:"enabled"`

		PushPlus struct {
			Enabled bool   `yaml:"enabled"`
			Token   string `yaml:"token"`   // 可用 PUSHPLUS_TOKEN 覆盖
			Channel string `yaml:"channel"` // 默认 wechat
		} `yaml:"pushplus"`

		Telegram struct {
			Enabled  bool   `yaml:"enabled"`
			BotToken string `yaml:"bot_token"` // 可用 TELEGRAM_BOT_TOKEN 覆盖
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`

		Webhook struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
			Timeout int    `yaml:"timeout"` // 超时时间（秒，默认3）
		} `yaml:"webhook"`

		Kafka struct {
			Enabled bool     `yaml:"enabled"`
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"notifications"`

	Web struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"` // 默认 0.0.0.0
		Port    int    `yaml:"port"` // 默认 8080
	} `yaml:"web"`
}

// LoadConfig 加载配置文件，同目录或工作目录下的 .env 会先被加载
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

// applyEnv 使用环境变量覆盖敏感配置
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PUSHPLUS_TOKEN"); v != "" {
		c.Notifications.PushPlus.Token = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.DistributedLock.Redis.Password = v
	}
}

// AlertingEnabled 是否启用异动检测
func (c *Config) AlertingEnabled() bool {
	return c.Collector.EnableAlerting == nil || *c.Collector.EnableAlerting
}

// AccurateAssetEnabled 是否使用 trade-data 接口的带单员资产
func (c *Config) AccurateAssetEnabled() bool {
	return c.Collector.AccurateAsset == nil || *c.Collector.AccurateAsset
}

// CollectorInterval 采集间隔
func (c *Config) CollectorInterval() time.Duration {
	return time.Duration(c.Collector.Interval) * time.Second
}

// LockTTL 采集锁过期时间
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Collector.LockTTL) * time.Second
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
	if c.System.LogDir == "" {
		c.System.LogDir = "logs"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "Asia/Shanghai"
	}
	if c.System.Language == "" {
		c.System.Language = "zh-CN"
	}
	if c.System.Language != "zh-CN" && c.System.Language != "en-US" {
		return fmt.Errorf("不支持的语言: %s (可选 zh-CN, en-US)", c.System.Language)
	}

	// 数据库
	c.Database.Type = strings.ToLower(c.Database.Type)
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		if c.Database.Type != "sqlite" {
			return fmt.Errorf("数据库 %s 必须配置 dsn", c.Database.Type)
		}
		c.Database.DSN = "./data/leadwatch.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	// OKX
	if c.OKX.BaseURL == "" {
		c.OKX.BaseURL = "https://www.okx.com"
	}
	c.OKX.BaseURL = strings.TrimRight(c.OKX.BaseURL, "/")
	if c.OKX.Timeout <= 0 {
		c.OKX.Timeout = 10
	}
	if c.OKX.RateLimit < 0 {
		return fmt.Errorf("okx.rate_limit 不能为负数")
	}
	if c.OKX.RateLimit == 0 {
		c.OKX.RateLimit = 5
	}
	if c.OKX.Burst <= 0 {
		c.OKX.Burst = 2
	}

	// 采集
	if c.Collector.Interval <= 0 {
		c.Collector.Interval = 300
	}
	if c.Collector.Interval < 60 {
		return fmt.Errorf("collector.interval 不能小于60秒")
	}
	if c.Collector.Offset < 0 {
		return fmt.Errorf("collector.offset 不能为负数")
	}
	if c.Collector.Offset == 0 {
		c.Collector.Offset = 5
	}
	if c.Collector.Concurrency <= 0 {
		c.Collector.Concurrency = 2
	}
	if c.Collector.ChunkSize <= 0 {
		c.Collector.ChunkSize = 90
	}
	if c.Collector.Threshold < 0 || c.Collector.Threshold >= 1 {
		return fmt.Errorf("collector.threshold 必须在 [0, 1) 之间")
	}
	if c.Collector.Threshold == 0 {
		c.Collector.Threshold = 0.05
	}
	if c.Collector.LockTTL <= 0 {
		c.Collector.LockTTL = 240
	}

	// 分布式锁
	if c.DistributedLock.Type == "" {
		c.DistributedLock.Type = "redis"
	}
	if c.DistributedLock.Prefix == "" {
		c.DistributedLock.Prefix = "leadwatch:lock:"
	}
	if c.DistributedLock.Redis.Addr == "" {
		c.DistributedLock.Redis.Addr = "localhost:6379"
	}
	if c.DistributedLock.Redis.PoolSize <= 0 {
		c.DistributedLock.Redis.PoolSize = 10
	}

	// 通知
	if c.Notifications.PushPlus.Channel == "" {
		c.Notifications.PushPlus.Channel = "wechat"
	}
	if c.Notifications.Webhook.Timeout <= 0 {
		c.Notifications.Webhook.Timeout = 3
	}
	if c.Notifications.Kafka.Enabled {
		if len(c.Notifications.Kafka.Brokers) == 0 || c.Notifications.Kafka.Topic == "" {
			return fmt.Errorf("启用 Kafka 通知时必须配置 brokers 和 topic")
		}
	}

	// Web
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port 无效: %d", c.Web.Port)
	}

	return nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
