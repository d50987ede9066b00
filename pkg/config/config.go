package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int

	MySQLDSN  string
	RedisAddr string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	WorkerCount   int
	QueueSize     int
	MaxConcurrent int

	StoreTimeout   time.Duration
	ReceiptRetries int
	CleanupRetries int
	RetryBackoff   time.Duration
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),

		MySQLDSN:  getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/sorapc?parseTime=true"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),

		WorkerCount:   getEnvInt("RECEIPT_WORKERS", 4),
		QueueSize:     getEnvInt("RECEIPT_QUEUE_SIZE", 1000),
		MaxConcurrent: getEnvInt("CHECKOUT_MAX_CONCURRENT", 10),

		StoreTimeout:   time.Duration(getEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
		ReceiptRetries: getEnvInt("RECEIPT_RETRIES", 3),
		CleanupRetries: getEnvInt("CART_CLEANUP_RETRIES", 3),
		RetryBackoff:   time.Duration(getEnvInt("RETRY_BACKOFF_MS", 200)) * time.Millisecond,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}
