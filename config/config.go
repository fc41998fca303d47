package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Competitive CompetitiveConfig `mapstructure:"competitive"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type QueueConfig struct {
	BatchQueue string `mapstructure:"batch_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type CrawlerConfig struct {
	TimeoutMs    int    `mapstructure:"timeout_ms"`     // 单页抓取超时（毫秒）
	UserAgent    string `mapstructure:"user_agent"`     // 抓取 UA
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // 响应体大小上限
}

type LLMConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`       // 单页 AEO 分析模型
	BatchModel string `mapstructure:"batch_model"` // 竞争格局汇总模型
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type CompetitiveConfig struct {
	MaxConcurrent     int `mapstructure:"max_concurrent"`     // 批次内并发分析数，默认 3
	MinSuccess        int `mapstructure:"min_success"`        // 批次成功所需的最少完成数，默认 2
	ProcessingTimeout int `mapstructure:"processing_timeout"` // 批次处理超时（分钟），由 cron 兜底
	RetentionDays     int `mapstructure:"retention_days"`     // 批次数据保留天数
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Crawler.TimeoutMs <= 0 {
		c.Crawler.TimeoutMs = 30000
	}
	if c.Crawler.MaxBodyBytes <= 0 {
		c.Crawler.MaxBodyBytes = 5 << 20
	}
	if c.Competitive.MaxConcurrent <= 0 {
		c.Competitive.MaxConcurrent = 3
	}
	if c.Competitive.MinSuccess <= 0 {
		c.Competitive.MinSuccess = 2
	}
	if c.Competitive.ProcessingTimeout <= 0 {
		c.Competitive.ProcessingTimeout = 30
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Queue.BatchQueue == "" {
		c.Queue.BatchQueue = "competitive_batches"
	}
	if c.Queue.MaxWorkers <= 0 {
		c.Queue.MaxWorkers = 2
	}
}
