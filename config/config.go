package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Store backends
const (
	BackendSQL   = "sql"
	BackendFile  = "file"
	BackendMongo = "mongo"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port string

	StoreBackend  string
	DBDriver      string
	DBDSN         string
	MigrationsDir string

	FileStorePath  string
	FileStoreMinio bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioObject    string
	MinioUseSSL    bool

	MongoURI string
	MongoDB  string

	CacheType     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string

	TokenSecret string
	TokenTTL    time.Duration // 0 issues tokens without exp (legacy)
	BcryptCost  int

	LegacyQueryToken  bool
	ExposeSecretRoute bool
	CORSOrigins       []string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := &envReader{}
	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		StoreBackend:   getenv("STORE_BACKEND", BackendSQL),
		DBDriver:       getenv("DB_DRIVER", "sqlite3"),
		DBDSN:          getenv("DB_DSN", "./todo_service.db"),
		MigrationsDir:  getenv("MIGRATIONS_DIR", ""),
		FileStorePath:  getenv("FILE_STORE_PATH", "./db.json"),
		FileStoreMinio: env.getBool("FILE_STORE_MINIO", false),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "todo-service"),
		MinioObject:    getenv("MINIO_OBJECT", "db.json"),
		MinioUseSSL:    env.getBool("MINIO_USE_SSL", false),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "todo_service"),
		CacheType:      getenv("CACHE_TYPE", "none"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        env.getInt("REDIS_DB", 0),
		NatsURL:        getenv("NATS_URL", ""),
		TokenSecret:    getenv("TOKEN_SECRET", ""),
		TokenTTL:       env.getDuration("TOKEN_TTL", 24*time.Hour),
		BcryptCost:     env.getInt("BCRYPT_COST", 12),

		LegacyQueryToken:  env.getBool("LEGACY_QUERY_TOKEN", false),
		ExposeSecretRoute: env.getBool("EXPOSE_SECRET_ROUTE", false),
		CORSOrigins:       splitList(getenv("CORS_ORIGINS", "*")),
	}

	if len(env.errs) > 0 {
		return nil, errors.Join(env.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("TOKEN_TTL must not be negative, got %s", c.TokenTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	switch c.StoreBackend {
	case BackendSQL:
		switch c.DBDriver {
		case "sqlite3", "postgres", "mysql":
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
		}
	case BackendFile, BackendMongo:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.CacheType {
	case "none", "redis":
	case "memory":
		// go-utils MemoryCache evicts expired entries under a read lock.
		return errors.New("CACHE_TYPE memory is not supported, use none or redis")
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.CacheType)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envReader parses typed variables and collects every malformed value,
// so a typo never silently falls back to the default.
type envReader struct {
	errs []error
}

func (e *envReader) fail(key, value, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s: invalid %s %q", key, want, value))
}

func (e *envReader) getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "integer")
		return fallback
	}
	return i
}

func (e *envReader) getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "boolean")
		return fallback
	}
	return b
}

// getDuration accepts Go durations ("90m") and a bare "0".
func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "duration")
		return fallback
	}
	return d
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
