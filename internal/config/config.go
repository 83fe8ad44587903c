package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML file layered between defaults and the environment.
const FileEnv = "STOREFRONT_CONFIG"

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type HTTPSection struct {
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	SecureCookies      bool          `yaml:"secure_cookies"`
}

type StoreSection struct {
	// Backend holds products, categories and orders: memory, redis or postgres.
	Backend string `yaml:"backend"`
}

type CartSection struct {
	// Backend holds cart blobs: memory, redis or mongo.
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisSection struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresSection struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	User              string `yaml:"user"`
	Password          string `yaml:"password"`
	DBName            string `yaml:"dbname"`
	MigrationsDirPath string `yaml:"migrations_dir"`
}

type MongoSection struct {
	URI                    string        `yaml:"uri"`
	Database               string        `yaml:"database"`
	MaxPoolSize            int           `yaml:"max_pool_size"`
	MinPoolSize            int           `yaml:"min_pool_size"`
	ConnectTimeout         time.Duration `yaml:"connect_timeout"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout"`
}

type KafkaSection struct {
	Brokers []string `yaml:"brokers"`
}

type SMTPSection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func (s SMTPSection) Enabled() bool {
	return s.Host != ""
}

type NotifySection struct {
	Timeout         time.Duration `yaml:"timeout"`
	TrackingURL     string        `yaml:"tracking_url"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

type Config struct {
	HTTP      HTTPSection     `yaml:"http"`
	Store     StoreSection    `yaml:"store"`
	Cart      CartSection     `yaml:"cart"`
	Redis     RedisSection    `yaml:"redis"`
	Postgres  PostgresSection `yaml:"postgres"`
	Mongo     MongoSection    `yaml:"mongo"`
	Kafka     KafkaSection    `yaml:"kafka"`
	SMTP      SMTPSection     `yaml:"smtp"`
	Notify    NotifySection   `yaml:"notify"`
	JWTSecret string          `yaml:"jwt_secret"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

func Default() Config {
	return Config{
		HTTP: HTTPSection{
			Port:               "8080",
			RequestTimeout:     30 * time.Second,
			ReadTimeout:        10 * time.Second,
			WriteTimeout:       10 * time.Second,
			IdleTimeout:        60 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestBodySize: 1 << 20,
		},
		Store: StoreSection{Backend: BackendMemory},
		Cart:  CartSection{Backend: BackendMemory, TTL: 30 * 24 * time.Hour},
		Redis: RedisSection{Addr: "localhost:6379"},
		Postgres: PostgresSection{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Password:          "postgres",
			DBName:            "storefront",
			MigrationsDirPath: "internal/store/migrations",
		},
		Mongo: MongoSection{
			URI:                    "mongodb://localhost:27017",
			Database:               "storefront",
			MaxPoolSize:            100,
			MinPoolSize:            10,
			ConnectTimeout:         10 * time.Second,
			ServerSelectionTimeout: 5 * time.Second,
		},
		SMTP: SMTPSection{Port: 587, From: "no-reply@storefront.local"},
		Notify: NotifySection{
			Timeout:         5 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load builds the configuration from defaults, an optional .env file, the YAML
// file named by STOREFRONT_CONFIG and finally the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(filepath.Clean(path), &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("HTTP_PORT", &cfg.HTTP.Port)
	e.duration("REQUEST_TIMEOUT", &cfg.HTTP.RequestTimeout)
	e.duration("SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	e.boolean("SECURE_COOKIES", &cfg.HTTP.SecureCookies)

	e.str("STORE_BACKEND", &cfg.Store.Backend)
	e.str("CART_BACKEND", &cfg.Cart.Backend)
	e.duration("CART_TTL", &cfg.Cart.TTL)

	e.str("REDIS_ADDR", &cfg.Redis.Addr)
	e.str("REDIS_PASSWORD", &cfg.Redis.Password)
	e.integer("REDIS_DB", &cfg.Redis.DB)

	e.str("DB_HOST", &cfg.Postgres.Host)
	e.integer("DB_PORT", &cfg.Postgres.Port)
	e.str("DB_USER", &cfg.Postgres.User)
	e.str("DB_PASSWORD", &cfg.Postgres.Password)
	e.str("DB_NAME", &cfg.Postgres.DBName)
	e.str("MIGRATIONS_DIR", &cfg.Postgres.MigrationsDirPath)

	e.str("MONGO_URI", &cfg.Mongo.URI)
	e.str("MONGO_DB_NAME", &cfg.Mongo.Database)
	e.integer("MONGO_MAX_POOL_SIZE", &cfg.Mongo.MaxPoolSize)
	e.integer("MONGO_MIN_POOL_SIZE", &cfg.Mongo.MinPoolSize)
	e.duration("MONGO_CONNECT_TIMEOUT", &cfg.Mongo.ConnectTimeout)
	e.duration("MONGO_SERVER_SELECTION_TIMEOUT", &cfg.Mongo.ServerSelectionTimeout)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}

	e.str("SMTP_HOST", &cfg.SMTP.Host)
	e.integer("SMTP_PORT", &cfg.SMTP.Port)
	e.str("SMTP_USERNAME", &cfg.SMTP.Username)
	e.str("SMTP_PASSWORD", &cfg.SMTP.Password)
	e.str("SMTP_FROM", &cfg.SMTP.From)

	e.duration("NOTIFY_TIMEOUT", &cfg.Notify.Timeout)
	e.str("TRACKING_URL", &cfg.Notify.TrackingURL)

	e.str("JWT_SECRET", &cfg.JWTSecret)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FORMAT", &cfg.LogFormat)

	return e.err
}

// Validate rejects unknown backends and settings the chosen backends cannot run without.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Cart.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown cart backend %q", c.Cart.Backend)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Notify.TrackingURL != "" && strings.Count(c.Notify.TrackingURL, "%s") != 1 {
		return fmt.Errorf("tracking url %q must contain exactly one %%s", c.Notify.TrackingURL)
	}
	if c.Mongo.MinPoolSize < 0 || c.Mongo.MaxPoolSize < 0 {
		return errors.New("mongo pool sizes must not be negative")
	}
	if c.Mongo.MaxPoolSize > 0 && c.Mongo.MinPoolSize > c.Mongo.MaxPoolSize {
		return fmt.Errorf("mongo min pool size %d exceeds max %d", c.Mongo.MinPoolSize, c.Mongo.MaxPoolSize)
	}
	return nil
}

type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
