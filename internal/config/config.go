package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式：debug / release / test
}

// DatabaseConfig 数据库配置
// Driver 为 mysql 时使用 MySQL，sqlite 用于本地开发（Path 可以是 :memory:）
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	BalanceChanged       string `mapstructure:"balance_changed"`
	TransactionCompleted string `mapstructure:"transaction_completed"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LedgerConfig 转账相关的业务限制
type LedgerConfig struct {
	MaxTransferAmount float64 `mapstructure:"max_transfer_amount"`
	MemoMaxLength     int     `mapstructure:"memo_max_length"`
}

// JobsConfig 定时任务配置
// 通胀与利息都在每月 DayOfMonth 号执行，时间分别为 InflationHour / InterestHour 点
type JobsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DayOfMonth      int           `mapstructure:"day_of_month"`
	InflationHour   int           `mapstructure:"inflation_hour"`
	InterestHour    int           `mapstructure:"interest_hour"`
	OutboxInterval  time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize int           `mapstructure:"outbox_batch_size"`
	MaxRetryCount   int           `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("kafka.topic.balance_changed", "rispay.balance_changed")
	v.SetDefault("kafka.topic.transaction_completed", "rispay.transaction_completed")
	v.SetDefault("ledger.max_transfer_amount", 1000000)
	v.SetDefault("ledger.memo_max_length", 200)
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.day_of_month", 1)
	v.SetDefault("jobs.inflation_hour", 0)
	v.SetDefault("jobs.interest_hour", 1)
	v.SetDefault("jobs.outbox_interval", 100*time.Millisecond)
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.max_retry_count", 5)
}

// Load 读取配置文件，环境变量 RISPAY_<SECTION>_<KEY> 优先
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("rispay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	config, err := Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	GlobalConfig = config
	return config
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Jobs.DayOfMonth < 1 || c.Jobs.DayOfMonth > 28 {
		return fmt.Errorf("jobs.day_of_month 必须在 1-28 之间: %d", c.Jobs.DayOfMonth)
	}
	if c.Jobs.InflationHour < 0 || c.Jobs.InflationHour > 23 || c.Jobs.InterestHour < 0 || c.Jobs.InterestHour > 23 {
		return fmt.Errorf("jobs 执行小时必须在 0-23 之间")
	}
	if c.Ledger.MaxTransferAmount <= 0 {
		return fmt.Errorf("ledger.max_transfer_amount 必须大于 0")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret 不能为空")
	}
	return nil
}
