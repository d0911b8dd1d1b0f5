package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrJWTSecretRequired is returned when a production environment runs without
// its own JWT_SECRET.
var ErrJWTSecretRequired = errors.New("config: JWT_SECRET must be set in production")

const devJWTSecret = "changeme"

const defaultPostgresDSN = "host=localhost user=postgres password=postgres dbname=cafe port=5432 sslmode=disable"

type Config struct {
	AppEnv   string
	Port     string
	GinMode  string
	LogLevel string

	DBDriver   string
	DBSource   string
	DBLogLevel string

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	MenuCacheTTL  time.Duration

	StorageDisk string
	UploadDir   string
	UploadURL   string
	S3Bucket    string
	S3Region    string
	S3Key       string
	S3Secret    string
	S3Endpoint  string
	S3URL       string

	BatchConcurrency int
	FrontendDir      string
}

// Load reads .env (if present) and the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	driver := strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	dsn := getEnv("DATABASE_DSN", "")
	if dsn == "" {
		switch driver {
		case "sqlite":
			dsn = "cafe.db"
		case "mysql":
			dsn = "root:root@tcp(127.0.0.1:3306)/cafe?charset=utf8mb4&parseTime=True&loc=Local"
		default:
			dsn = defaultPostgresDSN
		}
	}

	origins := []string{"http://localhost:3000"}
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "local"),
		Port:             getEnv("PORT", "8083"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBDriver:         driver,
		DBSource:         dsn,
		DBLogLevel:       getEnv("DB_LOG_LEVEL", "warn"),
		JWTSecret:        getEnv("JWT_SECRET", devJWTSecret),
		AccessTTL:        getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       getDuration("JWT_REFRESH_TTL", 12*time.Hour),
		AllowedOrigins:   origins,
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		MenuCacheTTL:     getDuration("MENU_CACHE_TTL", 5*time.Minute),
		StorageDisk:      strings.ToLower(getEnv("STORAGE_DISK", "local")),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		UploadURL:        getEnv("UPLOAD_URL", "/uploads"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "us-east-1"),
		S3Key:            getEnv("S3_KEY", ""),
		S3Secret:         getEnv("S3_SECRET", ""),
		S3Endpoint:       getEnv("S3_ENDPOINT", ""),
		S3URL:            getEnv("S3_URL", ""),
		BatchConcurrency: getInt("BATCH_CONCURRENCY", 8),
		FrontendDir:      getEnv("FRONTEND_DIR", "./frontend/build"),
	}
	if cfg.Production() && (cfg.JWTSecret == "" || cfg.JWTSecret == devJWTSecret) {
		return nil, ErrJWTSecretRequired
	}
	return cfg, nil
}

func (c *Config) Production() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
