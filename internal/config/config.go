package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	Redis  RedisConfig
	Log    LogConfig
}

var (
	ConfigInstance *Config
	configErr      error
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gte=0"`
	WriteTimeout time.Duration `validate:"gte=0"`
	IdleTimeout  time.Duration `validate:"gte=0"`
	GinMode      string        `validate:"oneof=debug release test"`
}

// ChatConfig holds the WebSocket transport and relay limits.
type ChatConfig struct {
	Path               string        `validate:"required,startswith=/"`
	MaxMessageSize     int64         `validate:"gt=0"`
	IdleTimeout        time.Duration `validate:"gt=0"`
	WriteTimeout       time.Duration `validate:"gt=0"`
	SendBuffer         int           `validate:"gt=0"`
	DedupCapacity      int           `validate:"gt=0"`
	AllowedOrigins     []string
	HandshakeRateLimit int           `validate:"gte=0"`
	HandshakeWindow    time.Duration `validate:"gte=0"`
}

type RedisConfig struct {
	URL          string `validate:"omitempty,url"`
	MaxRetries   int    `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int `validate:"gte=0"`
	MinIdleConns int `validate:"gte=0"`
}

// Enabled reports whether a Redis URL was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// LoadConfig loads the process configuration once and caches it.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		// Load .env file
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}
		ConfigInstance, configErr = Load(viper.New())
	})
	return ConfigInstance, configErr
}

// Load reads configuration from v, which is populated from the environment.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:         v.GetString("CHAT_HOST"),
			Port:         v.GetString("CHAT_PORT"),
			ReadTimeout:  v.GetDuration("CHAT_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("CHAT_WRITE_TIMEOUT"),
			IdleTimeout:  v.GetDuration("CHAT_HTTP_IDLE_TIMEOUT"),
			GinMode:      v.GetString("GIN_MODE"),
		},
		Chat: ChatConfig{
			Path:               v.GetString("CHAT_PATH"),
			MaxMessageSize:     v.GetInt64("CHAT_MAX_MESSAGE_SIZE"),
			IdleTimeout:        v.GetDuration("CHAT_IDLE_TIMEOUT"),
			WriteTimeout:       v.GetDuration("CHAT_WS_WRITE_TIMEOUT"),
			SendBuffer:         v.GetInt("CHAT_SEND_BUFFER"),
			DedupCapacity:      v.GetInt("CHAT_DEDUP_CAPACITY"),
			AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
			HandshakeRateLimit: v.GetInt("CHAT_HANDSHAKE_RATE_LIMIT"),
			HandshakeWindow:    v.GetDuration("CHAT_HANDSHAKE_RATE_WINDOW"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			MaxRetries:   v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CHAT_HOST", "")
	v.SetDefault("CHAT_PORT", "8080")
	v.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("CHAT_HTTP_IDLE_TIMEOUT", 120*time.Second)
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("CHAT_PATH", "/chat")
	v.SetDefault("CHAT_MAX_MESSAGE_SIZE", 512*1024)
	v.SetDefault("CHAT_IDLE_TIMEOUT", 120*time.Second)
	v.SetDefault("CHAT_WS_WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("CHAT_SEND_BUFFER", 256)
	v.SetDefault("CHAT_DEDUP_CAPACITY", 100)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("CHAT_HANDSHAKE_RATE_LIMIT", 30)
	v.SetDefault("CHAT_HANDSHAKE_RATE_WINDOW", time.Minute)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	v.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	v.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
