package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
	Links  LinksConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port          string
	FrontendURL   string
	BodyLimitMB   int
	MaxUploadSize int64
}

type LinksConfig struct {
	MaxTokenAttempts int
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first and never overrides variables that
// are already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "pickbox"),
			Password: getEnv("DB_PASSWORD", "pickbox_secret"),
			Name:     getEnv("DB_NAME", "pickbox"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "pickbox.db"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "pickbox"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "pickbox_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "pickbox"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
			BodyLimitMB:   getEnvAsInt("SERVER_BODY_LIMIT_MB", 1024),
			MaxUploadSize: int64(getEnvAsInt("MAX_UPLOAD_SIZE_MB", 100)) * 1024 * 1024,
		},
		Links: LinksConfig{
			MaxTokenAttempts: getEnvAsInt("LINK_TOKEN_ATTEMPTS", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
