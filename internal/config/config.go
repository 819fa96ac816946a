package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenTTLMinutes int    `mapstructure:"token_ttl_minutes"`
	ShutdownSeconds int    `mapstructure:"shutdown_seconds"`
}

type StorageConfig struct {
	// "mongo" (default) or "memory" for single-node dev.
	Backend string `mapstructure:"backend"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers             []string `mapstructure:"brokers"`
	TopicMessageCreated string   `mapstructure:"topic_message_created"`
}

type AWSConfig struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
	PresignTTL int    `mapstructure:"presign_ttl_seconds"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type FanoutConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	AWS     AWSConfig     `mapstructure:"aws"`
	WS      WSConfig      `mapstructure:"ws"`
	Fanout  FanoutConfig  `mapstructure:"fanout"`

	// derived
	TokenTTL        time.Duration
	ShutdownTimeout time.Duration
	PingInterval    time.Duration
	WriteDeadline   time.Duration
	PresignTTL      time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("CHATCORE")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.App.TokenTTLMinutes == 0 {
		cfg.App.TokenTTLMinutes = 24 * 60
	}
	if cfg.App.ShutdownSeconds == 0 {
		cfg.App.ShutdownSeconds = 10
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "mongo"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "chatcore"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "chatcore:appends"
	}
	if cfg.WS.PingIntervalSeconds == 0 {
		cfg.WS.PingIntervalSeconds = 25
	}
	if cfg.WS.WriteDeadlineSeconds == 0 {
		cfg.WS.WriteDeadlineSeconds = 10
	}
	if cfg.WS.MaxMessageSizeBytes == 0 {
		cfg.WS.MaxMessageSizeBytes = 65536
	}
	if cfg.Fanout.BufferSize == 0 {
		cfg.Fanout.BufferSize = 256
	}
	if cfg.AWS.PresignTTL == 0 {
		cfg.AWS.PresignTTL = 600
	}

	cfg.TokenTTL = time.Duration(cfg.App.TokenTTLMinutes) * time.Minute
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSeconds) * time.Second
	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.WS.WriteDeadlineSeconds) * time.Second
	cfg.PresignTTL = time.Duration(cfg.AWS.PresignTTL) * time.Second

	return &cfg, nil
}
