package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port    string
	BaseURL string

	MongoURI string
	DBName   string

	JWTSecret      string
	AccessTokenTTL time.Duration
	ResetCodeTTL   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	StripeSecretKey     string
	StripeWebhookSecret string

	UploadDir string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		BaseURL:             getEnvOrDefault("BASE_URL", "http://localhost:8080"),
		MongoURI:            getEnvOrDefault("MONGO_URI", ""),
		DBName:              getEnvOrDefault("DB_NAME", "ecommerce"),
		JWTSecret:           getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:      getDurationEnv("ACCESS_TOKEN_TTL", 90, 24*time.Hour),
		ResetCodeTTL:        getDurationEnv("RESET_CODE_TTL", 10, time.Minute),
		SMTPHost:            getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:            getIntEnv("SMTP_PORT", 587),
		SMTPUser:            getEnvOrDefault("SMTP_USER", ""),
		SMTPPassword:        getEnvOrDefault("SMTP_PASSWORD", ""),
		EmailFrom:           getEnvOrDefault("EMAIL_FROM", "E-Commerce App <no-reply@localhost>"),
		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		UploadDir:           getEnvOrDefault("UPLOAD_DIR", "uploads"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
