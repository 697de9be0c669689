package config

import (
	"os"
	"strconv"
)

type Config struct {
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	RedisHost         string
	RedisPort         string
	SessionSecret     string
	TokenSecret       string
	TokenTTLMinutes   int
	InvitationTTLDays int
	GinMode           string
	OpenAIAPIKey      string
}

func Load() *Config {
	return &Config{
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "compliance"),
		DBPassword:        getEnv("DB_PASSWORD", "compliance"),
		DBName:            getEnv("DB_NAME", "compliance_audit"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		SessionSecret:     getEnv("SESSION_SECRET", "default-secret-key-change-me"),
		TokenSecret:       getEnv("TOKEN_SECRET", "default-token-secret-change-me"),
		TokenTTLMinutes:   getEnvInt("TOKEN_TTL_MINUTES", 60),
		InvitationTTLDays: getEnvInt("INVITATION_TTL_DAYS", 7),
		GinMode:           getEnv("GIN_MODE", "debug"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
