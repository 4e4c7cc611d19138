package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// 存储后端
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config SPC 服务配置
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	Store struct {
		Backend string `yaml:"backend"` // memory / postgres / redis
	} `yaml:"store"`

	SPC struct {
		DnaKeyPrefix    string `yaml:"dna_key_prefix"`    // Redis DNA 记录键前缀，如 "spc:dna:"
		SampleStream    string `yaml:"sample_stream"`     // 样本事件 Redis Stream，空表示不发布
		AlertTopic      string `yaml:"alert_topic"`       // MQTT 报警主题前缀
		DuePollInterval int    `yaml:"due_poll_interval"` // 到期检查轮询间隔（秒），默认 60
		SeriesLimit     int    `yaml:"series_limit"`      // 图表默认点数，默认 50
	} `yaml:"spc"`

	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	Log struct {
		Level       string `yaml:"level"`
		Format      string `yaml:"format"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"log"`
}

// Load 加载配置：默认值 → 配置文件（SPC_CONFIG_FILE）→ 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("SPC_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "qp"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "qp-spc"
	cfg.MQTT.QoS = 1

	cfg.Store.Backend = BackendMemory

	cfg.SPC.DnaKeyPrefix = "spc:dna:"
	cfg.SPC.SampleStream = "spc:samples"
	cfg.SPC.AlertTopic = "spc/alerts"
	cfg.SPC.DuePollInterval = 60
	cfg.SPC.SeriesLimit = 50

	cfg.HTTP.Addr = ":8090"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Log.ServiceName = "qp-spc"

	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)

	c.MQTT.Enabled = getEnv("MQTT_ENABLED", strconv.FormatBool(c.MQTT.Enabled)) == "true"
	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("MQTT_PASSWORD", c.MQTT.Password)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)

	c.SPC.DnaKeyPrefix = getEnv("SPC_DNA_KEY_PREFIX", c.SPC.DnaKeyPrefix)
	c.SPC.SampleStream = getEnv("SPC_SAMPLE_STREAM", c.SPC.SampleStream)
	c.SPC.AlertTopic = getEnv("SPC_ALERT_TOPIC", c.SPC.AlertTopic)
	c.SPC.DuePollInterval = getEnvInt("SPC_DUE_POLL_INTERVAL", c.SPC.DuePollInterval)
	c.SPC.SeriesLimit = getEnvInt("SPC_SERIES_LIMIT", c.SPC.SeriesLimit)

	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}
	if c.SPC.DuePollInterval <= 0 {
		return fmt.Errorf("due poll interval must be positive, got %d", c.SPC.DuePollInterval)
	}
	if c.SPC.SeriesLimit <= 0 {
		return fmt.Errorf("series limit must be positive, got %d", c.SPC.SeriesLimit)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
