package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost string
	HTTPPort string
	AppEnv   string

	MySQLDSN string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ResetTokenTTL    time.Duration

	FrontendURL string

	Storage StorageConfig
	Upload  UploadPolicy

	LogLevel  string
	LogFormat string
}

type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	Timeout       time.Duration
}

type UploadPolicy struct {
	MaxBytes     int64
	AllowedMIMEs []string
}

func (p UploadPolicy) AllowsMIME(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, allowed := range p.AllowedMIMEs {
		if allowed == mime {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	accessSecret := os.Getenv("JWT_ACCESS_SECRET")
	if accessSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET environment variable is required")
	}

	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		return nil, errors.New("JWT_REFRESH_SECRET environment variable is required")
	}
	if refreshSecret == accessSecret {
		return nil, errors.New("JWT_REFRESH_SECRET must differ from JWT_ACCESS_SECRET")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	storageCfg, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:         getEnv("HTTP_HOST", ""),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "production"),
		MySQLDSN:         mysqlDSN,
		JWTAccessSecret:  accessSecret,
		JWTRefreshSecret: refreshSecret,
		AccessTokenTTL:   getDurationEnv("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getDurationEnv("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetTokenTTL:    getDurationEnv("RESET_TOKEN_TTL", 1*time.Hour),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		Storage:          storageCfg,
		Upload:           loadUploadPolicy(),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func loadStorageConfig() (StorageConfig, error) {
	endpoint := os.Getenv("STORAGE_ENDPOINT")
	if endpoint == "" {
		return StorageConfig{}, errors.New("STORAGE_ENDPOINT environment variable is required")
	}

	accessKey := os.Getenv("STORAGE_ACCESS_KEY")
	if accessKey == "" {
		return StorageConfig{}, errors.New("STORAGE_ACCESS_KEY environment variable is required")
	}

	secretKey := os.Getenv("STORAGE_SECRET_KEY")
	if secretKey == "" {
		return StorageConfig{}, errors.New("STORAGE_SECRET_KEY environment variable is required")
	}

	useSSL := getBoolEnv("STORAGE_USE_SSL", false)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return StorageConfig{
		Endpoint:      endpoint,
		AccessKey:     accessKey,
		SecretKey:     secretKey,
		Bucket:        getEnv("STORAGE_BUCKET", "gallery"),
		UseSSL:        useSSL,
		PublicBaseURL: getEnv("STORAGE_PUBLIC_URL", scheme+"://"+endpoint),
		Timeout:       getDurationEnv("STORAGE_TIMEOUT", 10*time.Second),
	}, nil
}

func loadUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxBytes: getInt64Env("UPLOAD_MAX_BYTES", 5*1024*1024),
		AllowedMIMEs: []string{
			"image/jpeg",
			"image/jpg",
			"image/png",
			"image/gif",
			"image/webp",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
