package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	DatabaseURL string

	RedisURL string

	JWTSecret string

	ResendAPIKey string
	FromEmail    string
	Domain       string

	SMSGatewayURL string
	SMSAPIKey     string
	SMSSenderID   string

	FirebaseCredentialsFile string
	FirebaseProjectID       string

	ChannelTimeout     time.Duration
	ProcessorInterval  time.Duration
	ProcessorBatchSize int

	CORSOrigins string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@talktime.app"),
		Domain:       getEnv("DOMAIN", "localhost:5173"),

		SMSGatewayURL: getEnv("SMS_GATEWAY_URL", ""),
		SMSAPIKey:     getEnv("SMS_API_KEY", ""),
		SMSSenderID:   getEnv("SMS_SENDER_ID", "TALKTIME"),

		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),

		ChannelTimeout:     getDurationEnv("CHANNEL_TIMEOUT", 8*time.Second),
		ProcessorInterval:  getDurationEnv("PROCESSOR_INTERVAL", time.Minute),
		ProcessorBatchSize: getIntEnv("PROCESSOR_BATCH_SIZE", 100),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
