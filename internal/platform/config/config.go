// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the GORM/pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres:// URL used by the migration runner.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// KafkaConfig holds broker and consumer-group settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// GatewayConfig holds payment-gateway settings. KeyID is the public key the
// client side embeds; KeySecret authenticates API calls and keys callback
// signature verification.
type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Currency  string
	Timeout   time.Duration
	UseMock   bool
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port    string
	AppEnv  string
	DB      DatabaseConfig
	JWT     JWTConfig
	Kafka   KafkaConfig
	Gateway GatewayConfig
}

// Load reads configuration from the environment and returns a ServiceConfig.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", ":8084")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "servilink-")
	v.SetDefault("GATEWAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("GATEWAY_CURRENCY", "INR")
	v.SetDefault("GATEWAY_TIMEOUT_SECONDS", 15)

	cfg := &ServiceConfig{
		Port:   normalizePort(v.GetString("SERVICE_PORT")),
		AppEnv: v.GetString("APP_ENV"),
		DB: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Gateway: GatewayConfig{
			BaseURL:   v.GetString("GATEWAY_BASE_URL"),
			KeyID:     v.GetString("GATEWAY_KEY_ID"),
			KeySecret: v.GetString("GATEWAY_KEY_SECRET"),
			Currency:  v.GetString("GATEWAY_CURRENCY"),
			Timeout:   time.Duration(v.GetInt("GATEWAY_TIMEOUT_SECONDS")) * time.Second,
			UseMock:   v.GetBool("GATEWAY_USE_MOCK"),
		},
	}

	if cfg.DB.DBName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if !cfg.Gateway.UseMock && cfg.Gateway.KeySecret == "" {
		return nil, fmt.Errorf("GATEWAY_KEY_SECRET is required unless GATEWAY_USE_MOCK is set")
	}

	return cfg, nil
}

func normalizePort(p string) string {
	if p == "" {
		return ":8084"
	}
	if !strings.HasPrefix(p, ":") {
		return ":" + p
	}
	return p
}
