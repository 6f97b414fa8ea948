package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Heartbeat HeartbeatConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type HeartbeatConfig struct {
	Interval time.Duration
}

var (
	configInstance *Config
	once           sync.Once
)

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
		viper.AddConfigPath(".")

		viper.SetDefault("DISCUSS_HOST", "0.0.0.0")
		viper.SetDefault("DISCUSS_PORT", "8080")
		viper.SetDefault("DISCUSS_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("DISCUSS_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("DISCUSS_IDLE_TIMEOUT", 120*time.Second)
		viper.SetDefault("DISCUSS_JWT_SECRET", "secret")
		viper.SetDefault("DISCUSS_JWT_EXPIRE", "24h")
		viper.SetDefault("DISCUSS_HEARTBEAT_INTERVAL", 30*time.Second)
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("POSTGRES_USER", "postgres")
		viper.SetDefault("POSTGRES_PASSWORD", "password")
		viper.SetDefault("POSTGRES_HOST", "localhost")
		viper.SetDefault("POSTGRES_PORT", "5432")
		viper.SetDefault("POSTGRES_DB", "discussions")
		viper.SetDefault("POSTGRES_SSLMODE", "disable")
		viper.AutomaticEnv()

		// A missing .env file is fine; env vars and defaults still apply.
		_ = viper.ReadInConfig()

		configInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("DISCUSS_HOST"),
				Port:         viper.GetString("DISCUSS_PORT"),
				ReadTimeout:  viper.GetDuration("DISCUSS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("DISCUSS_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("DISCUSS_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				URL: viper.GetString("REDIS_URL"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("DISCUSS_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("DISCUSS_JWT_EXPIRE"),
			},
			Heartbeat: HeartbeatConfig{
				Interval: viper.GetDuration("DISCUSS_HEARTBEAT_INTERVAL"),
			},
		}
	})

	return configInstance, nil
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}
