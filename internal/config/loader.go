package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"wisegate/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	applyFamilyDefaults(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3000)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)

	viper.SetDefault("database.postgres.driver", constants.DriverPQ)
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.sslmode", "disable")
	viper.SetDefault("database.postgres.max_open_conns", 10)

	viper.SetDefault("broker.type", constants.BusMQTT)
	viper.SetDefault("broker.mqtt.client_id", "wisegate-ingest")
	viper.SetDefault("broker.mqtt.keep_alive", constants.MQTTKeepAlive)
	viper.SetDefault("broker.mqtt.connect_timeout", 10*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("realtime.record_channel", constants.DefaultRecordChannel)
	viper.SetDefault("realtime.log_channel", constants.DefaultLogChannel)
	viper.SetDefault("realtime.recent_size", constants.DefaultRecentSize)

	viper.SetDefault("dashboard.limit", constants.DefaultQueryLimit)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", time.Minute)
	viper.SetDefault("circuit_breaker.timeout", 30*time.Second)
	viper.SetDefault("circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("circuit_breaker.min_requests", 5)
}

func bindEnvVariables() {
	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.mqtt.url", "BROKER_MQTT_URL", "MQTT_BROKER")
	viper.BindEnv("broker.mqtt.client_id", "BROKER_MQTT_CLIENT_ID")
	viper.BindEnv("broker.mqtt.username", "BROKER_MQTT_USERNAME")
	viper.BindEnv("broker.mqtt.password", "BROKER_MQTT_PASSWORD")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("realtime.kafka_topic", "REALTIME_KAFKA_TOPIC")
	viper.BindEnv("realtime.redis_prefix", "REALTIME_REDIS_PREFIX")

	viper.BindEnv("database.postgres.driver", "DATABASE_POSTGRES_DRIVER")
	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST", "PG_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT", "PG_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER", "PG_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD", "PG_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME", "PG_DATABASE")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func applyFamilyDefaults(cfg *Config) {
	for i := range cfg.Families {
		if cfg.Families[i].DeviceFrom == "" {
			cfg.Families[i].DeviceFrom = constants.DeviceFromFamily
		}
	}
	if cfg.Dashboard.Family == "" && len(cfg.Families) > 0 {
		cfg.Dashboard.Family = cfg.Families[0].Name
	}
}
