// Package config loads process configuration the way the teacher does:
// typed structs populated by viper, with defaults for every field and
// an optional config file/env override on top. Grounded on
// adred-codev-ws_poc/go-server-3/internal/config/config.go.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the broker process.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Topic   TopicConfig   `mapstructure:"topic"`
	Control ControlConfig `mapstructure:"control"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains network level settings for the duplex WebSocket
// listener.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Path              string        `mapstructure:"path"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	OutboundQueueSize int           `mapstructure:"outbound_queue_size"`
}

// TopicConfig mirrors topic.Config. Kept separate so the config package
// doesn't need to import internal/topic just to carry default values;
// cmd/broker copies these fields into a topic.Config at startup.
type TopicConfig struct {
	ReplayCapacity   int           `mapstructure:"replay_capacity"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	BatchSize        int           `mapstructure:"batch_size"`
	BatchTimeout     time.Duration `mapstructure:"batch_timeout"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	MetricsSampleCap int           `mapstructure:"metrics_sample_cap"`
}

// ControlConfig controls the request/response control-plane listener
// (topic admin, health, stats, metrics, dashboard).
type ControlConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	ShutdownGrace     time.Duration `mapstructure:"shutdown_grace"`
	SystemSampleEvery time.Duration `mapstructure:"system_sample_every"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables and an optional
// config file.
func Load() (Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8900)
	v.SetDefault("server.path", "/ws")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.outbound_queue_size", 256)

	v.SetDefault("topic.replay_capacity", 100)
	v.SetDefault("topic.queue_capacity", 10000)
	v.SetDefault("topic.batch_size", 10)
	v.SetDefault("topic.batch_timeout", 20*time.Millisecond)
	v.SetDefault("topic.send_timeout", 500*time.Millisecond)
	v.SetDefault("topic.metrics_sample_cap", 1000)

	v.SetDefault("control.listen_addr", ":8901")
	v.SetDefault("control.shutdown_grace", 500*time.Millisecond)
	v.SetDefault("control.system_sample_every", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("broker")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BROKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Attempt to read config file (optional)
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Topic.BatchSize <= 0 {
		cfg.Topic.BatchSize = 10
	}
	if cfg.Server.OutboundQueueSize <= 0 {
		cfg.Server.OutboundQueueSize = 256
	}

	return cfg, nil
}
