package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	MetricsPort         string `mapstructure:"metrics_port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	RateLimitPerMin     int    `mapstructure:"rate_limit_per_min"`
}

type DatabaseCfg struct {
	DSN string `mapstructure:"dsn"`
}

type RedisCfg struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTCfg struct {
	Secret string `mapstructure:"secret"`
}

type StorageCfg struct {
	Backend   string `mapstructure:"backend"` // "local" or "s3"
	LocalDir  string `mapstructure:"local_dir"`
	PublicURL string `mapstructure:"public_url"`
	S3Region  string `mapstructure:"s3_region"`
	S3Bucket  string `mapstructure:"s3_bucket"`
}

type Config struct {
	AppEnv   string      `mapstructure:"app_env"`
	Server   ServerCfg   `mapstructure:"server"`
	Database DatabaseCfg `mapstructure:"database"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Kafka    KafkaCfg    `mapstructure:"kafka"`
	JWT      JWTCfg      `mapstructure:"jwt"`
	Storage  StorageCfg  `mapstructure:"storage"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *Config) Development() bool { return c.AppEnv != "production" }

// Load reads the YAML config at path. Any key can be overridden through the
// environment, e.g. MESSENGER_SERVER_PORT or MESSENGER_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MESSENGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.metrics_port", "9090")
	v.SetDefault("server.rate_limit_per_min", 300)
	v.SetDefault("database.dsn", "messenger.db")
	v.SetDefault("redis.prefix", "msgr")
	v.SetDefault("kafka.topic", "messenger.events")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.public_url", "/uploads")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	return &cfg, nil
}
