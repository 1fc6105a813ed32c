package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Realtime       RealtimeConfig       `mapstructure:"realtime"`
	Dashboard      DashboardConfig      `mapstructure:"dashboard"`
	Management     ManagementConfig     `mapstructure:"management"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Families       []FamilyConfig       `mapstructure:"families"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type MQTTConfig struct {
	URL            string        `mapstructure:"url"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	QoS            byte          `mapstructure:"qos"`
	KeepAlive      time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// Topics are consumed when the bus is Kafka. Forwarded messages carry
	// their MQTT topic in a header.
	Topics []string `mapstructure:"topics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RealtimeConfig struct {
	RecordChannel string `mapstructure:"record_channel"`
	LogChannel    string `mapstructure:"log_channel"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
	KafkaTopic    string `mapstructure:"kafka_topic"`
	RecentSize    int    `mapstructure:"recent_size"`
}

type DashboardConfig struct {
	Family string `mapstructure:"family"`
	Limit  int    `mapstructure:"limit"`
}

type ManagementConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// FamilyConfig is the rule set bound to one group of device topics.
type FamilyConfig struct {
	Name               string   `mapstructure:"name"`
	Mode               string   `mapstructure:"mode"`
	Topics             []string `mapstructure:"topics"`
	Table              string   `mapstructure:"table"`
	ConnectionLogTable string   `mapstructure:"connection_log_table"`
	DeviceFrom         string   `mapstructure:"device_from"`
	// Tables maps further record kinds to tables, e.g. for auto mode.
	Tables map[string]string `mapstructure:"tables"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
