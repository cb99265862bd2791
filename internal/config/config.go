package config

import "time"

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Collector      CollectorConfig
	Profile        ProfileConfig
	Filtering      FilteringConfig
	CircuitBreaker CircuitBreakerConfig
	RateLimit      RateLimitConfig
	Retry          RetryConfig
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
	MongoDB  MongoDBConfig
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	GroupID     string   `mapstructure:"group_id"`
	InputTopic  string   `mapstructure:"input_topic"`
	OutputTopic string   `mapstructure:"output_topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CollectorConfig holds the runtime settings stamped onto new device stores.
type CollectorConfig struct {
	Debug       bool   `mapstructure:"debug"`
	BridgedMode bool   `mapstructure:"bridged_mode"`
	SDKVersion  string `mapstructure:"sdk_version"`
}

type ProfileConfig struct {
	Provider        string `mapstructure:"provider"` // cache, mongodb, postgresql
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	MongoCollection string `mapstructure:"mongo_collection"`
	PostgresTable   string `mapstructure:"postgres_table"`
}

type FilterRule struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

type FilteringConfig struct {
	Rules []FilterRule `mapstructure:"rules"`
}

type CircuitBreakerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxRequests     uint32        `mapstructure:"max_requests"`
	Interval        time.Duration `mapstructure:"interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	FailureRatio    float64       `mapstructure:"failure_ratio"`
	MinimumRequests uint32        `mapstructure:"minimum_requests"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
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
