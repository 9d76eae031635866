package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the dashboard, the gateway hub and the tick pipeline.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Hub       HubConfig       `mapstructure:"hub"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

type AppConfig struct {
	Env string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level    string `mapstructure:"level"`    // debug, info, warn, error
	Encoding string `mapstructure:"encoding"` // json or console
}

// HubConfig describes how the dashboard reaches the push hub.
type HubConfig struct {
	URL             string          `mapstructure:"url"`
	WithCredentials bool            `mapstructure:"with_credentials"`
	AccessToken     string          `mapstructure:"access_token"`
	SkipNegotiation bool            `mapstructure:"skip_negotiation"`
	Event           string          `mapstructure:"event"`
	ReconnectDelays []time.Duration `mapstructure:"reconnect_delays"`

	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	ServerTimeout     time.Duration `mapstructure:"server_timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
}

// ServerConfig is the gateway side of the hub.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
}

type GeneratorConfig struct {
	Tickers  []string      `mapstructure:"tickers"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env values become real env vars so HUB_URL and friends resolve below
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat env vars (HUB_URL) only reach nested keys (hub.url) once bound
	bindEnv(v, "app.env", "logger.level", "logger.encoding")
	bindEnv(v, "hub.url", "hub.with_credentials", "hub.access_token", "hub.skip_negotiation", "hub.event",
		"hub.reconnect_delays", "hub.keep_alive_interval", "hub.server_timeout", "hub.handshake_timeout")
	bindEnv(v, "server.port", "server.path", "server.allowed_origins")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id")
	bindEnv(v, "processor.num_workers", "generator.tickers", "generator.interval")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("hub.url", "http://localhost:5174/stockhub")
	v.SetDefault("hub.with_credentials", true)
	v.SetDefault("hub.access_token", "")
	v.SetDefault("hub.skip_negotiation", false)
	v.SetDefault("hub.event", "ReceiveStockUpdate")
	v.SetDefault("hub.reconnect_delays", []string{"0s", "2s", "10s", "30s"})
	v.SetDefault("hub.keep_alive_interval", "15s")
	v.SetDefault("hub.server_timeout", "30s")
	v.SetDefault("hub.handshake_timeout", "15s")

	v.SetDefault("server.port", ":5174")
	v.SetDefault("server.path", "/stockhub")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "market_ticks")
	v.SetDefault("kafka.group_id", "stock-processor-group")

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("generator.tickers", []string{"AAPL", "GOOG", "TSLA", "AMZN"})
	v.SetDefault("generator.interval", "100ms")
}

func (c *Config) validate() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("hub url cannot be empty")
	}
	if c.Hub.KeepAliveInterval <= 0 || c.Hub.ServerTimeout <= c.Hub.KeepAliveInterval {
		return fmt.Errorf("hub server_timeout (%s) must exceed keep_alive_interval (%s)",
			c.Hub.ServerTimeout, c.Hub.KeepAliveInterval)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("processor num_workers must be positive, got %d", c.Processor.NumWorkers)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
