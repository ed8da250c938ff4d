package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	Environment    string
	Host           string
	Port           string
	AllowedOrigins []string

	Database DatabaseConfig
	Redis    RedisConfig
	Keys     KeyConfig
	Cookie   CookieConfig
	TTL      TTLConfig

	BcryptCost           int
	DefaultPhoto         string
	CleanupInterval      time.Duration
	MigrationsDir        string
	RunMigrationsOnStart bool
	LogLevel             string
	LogFormat            string
	KafkaBrokers         []string
	KafkaTopic           string
	OTLPEndpoint         string
	OTLPInsecure         bool
}

type DatabaseConfig struct {
	URL                string
	Driver             string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KeyConfig struct {
	APIKey        string
	AccessJWTKey  string
	RefreshJWTKey string
	CookieKey     string
}

type CookieConfig struct {
	Domain   string
	SameSite string
	Secure   bool
	HTTPOnly bool
}

type TTLConfig struct {
	Session        time.Duration
	AccessTokenAge time.Duration
	Cache          time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// MigrateConfig is the subset of settings the migration tool needs.
type MigrateConfig struct {
	Database      DatabaseConfig
	MigrationsDir string
	LogLevel      string
	LogFormat     string
}

func newViper() *viper.Viper {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads .env files (if present) and the process environment into a Config.
func Load() (*Config, error) {
	v := newViper()

	env := strings.ToLower(v.GetString("APP_ENV"))
	isProd := env == EnvProduction

	cfg := &Config{
		Environment:    env,
		Host:           v.GetString("HOST"),
		Port:           v.GetString("PORT"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		Database:       loadDatabase(v),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keys: KeyConfig{
			APIKey:        v.GetString("API_KEY"),
			AccessJWTKey:  v.GetString("ACCESS_JWT_KEY"),
			RefreshJWTKey: v.GetString("REFRESH_JWT_KEY"),
			CookieKey:     v.GetString("COOKIE_KEY"),
		},
		Cookie: CookieConfig{
			Domain:   v.GetString("COOKIE_DOMAIN"),
			SameSite: v.GetString("COOKIE_SAMESITE"),
			Secure:   isProd,
			HTTPOnly: isProd,
		},
		TTL: TTLConfig{
			Session:        v.GetDuration("SESSION_TTL"),
			AccessTokenAge: v.GetDuration("ACCESS_TOKEN_MAX_AGE"),
			Cache:          v.GetDuration("CACHE_TTL"),
		},
		BcryptCost:           v.GetInt("BCRYPT_COST"),
		DefaultPhoto:         v.GetString("STORAGE_DEFAULT_PHOTO"),
		CleanupInterval:      v.GetDuration("SESSION_CLEANUP_INTERVAL"),
		MigrationsDir:        v.GetString("MIGRATIONS_DIR"),
		RunMigrationsOnStart: v.GetBool("RUN_MIGRATIONS"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		KafkaBrokers:         splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:           v.GetString("KAFKA_TOPIC"),
		OTLPEndpoint:         v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:         v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}

	// Explicit overrides win over the environment-derived cookie flags.
	if v.IsSet("COOKIE_SECURE") {
		cfg.Cookie.Secure = v.GetBool("COOKIE_SECURE")
	}
	if v.IsSet("COOKIE_HTTP_ONLY") {
		cfg.Cookie.HTTPOnly = v.GetBool("COOKIE_HTTP_ONLY")
	}
	cfg.LogFormat = logFormat(cfg.LogFormat, isProd)
	if len(cfg.AllowedOrigins) == 0 {
		if isProd {
			cfg.AllowedOrigins = []string{"https://*." + strings.TrimPrefix(cfg.Cookie.Domain, ".")}
		} else {
			cfg.AllowedOrigins = []string{"*"}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMigrate reads only the database and logging settings, so the migration
// tool runs without the service keys.
func LoadMigrate() (*MigrateConfig, error) {
	v := newViper()

	isProd := strings.ToLower(v.GetString("APP_ENV")) == EnvProduction
	cfg := &MigrateConfig{
		Database:      loadDatabase(v),
		MigrationsDir: v.GetString("MIGRATIONS_DIR"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFormat:     logFormat(v.GetString("LOG_FORMAT"), isProd),
	}

	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDatabase(v *viper.Viper) DatabaseConfig {
	db := DatabaseConfig{
		URL:                v.GetString("DATABASE_URL"),
		Driver:             v.GetString("DB_DRIVER"),
		MaxOpenConns:       v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:       v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetimeMin: v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES"),
	}

	// Append simple_protocol for PgBouncer compatibility (pgx driver)
	if db.Driver == "pgx" && db.URL != "" {
		if u, err := url.Parse(db.URL); err == nil {
			q := u.Query()
			if q.Get("default_query_exec_mode") == "" {
				q.Set("default_query_exec_mode", "simple_protocol")
				u.RawQuery = q.Encode()
				db.URL = u.String()
			}
		}
	}
	return db
}

func logFormat(format string, isProd bool) string {
	if format != "" {
		return format
	}
	if isProd {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("HOST", "")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_DRIVER", "pgx")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("API_KEY", "apikey")
	v.SetDefault("ACCESS_JWT_KEY", "jwtkey")
	v.SetDefault("REFRESH_JWT_KEY", "jwtkey2")
	v.SetDefault("COOKIE_KEY", "12345678901234567890123456789012")
	v.SetDefault("COOKIE_DOMAIN", "localhost")
	v.SetDefault("COOKIE_SAMESITE", "None")
	v.SetDefault("SESSION_TTL", 30*24*time.Hour)
	v.SetDefault("ACCESS_TOKEN_MAX_AGE", 24*time.Hour)
	v.SetDefault("CACHE_TTL", time.Hour)
	v.SetDefault("SESSION_CLEANUP_INTERVAL", time.Hour)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("STORAGE_DEFAULT_PHOTO", "")
	v.SetDefault("MIGRATIONS_DIR", "script/migration")
	v.SetDefault("RUN_MIGRATIONS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("KAFKA_TOPIC", "user-events")
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if err := c.Database.validateDriver(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Keys.CookieKey) < 32 {
		errs = append(errs, errors.New("COOKIE_KEY must be at least 32 characters"))
	}
	if c.Keys.APIKey == "" || c.Keys.AccessJWTKey == "" || c.Keys.RefreshJWTKey == "" {
		errs = append(errs, errors.New("API_KEY, ACCESS_JWT_KEY and REFRESH_JWT_KEY are required"))
	}
	if c.IsProduction() && c.Keys.AccessJWTKey == c.Keys.RefreshJWTKey {
		errs = append(errs, errors.New("ACCESS_JWT_KEY and REFRESH_JWT_KEY must differ in production"))
	}
	switch c.Cookie.SameSite {
	case "Strict", "Lax", "None":
	default:
		errs = append(errs, fmt.Errorf("COOKIE_SAMESITE must be Strict, Lax or None, got %q", c.Cookie.SameSite))
	}
	if c.TTL.Session <= 0 || c.TTL.AccessTokenAge <= 0 || c.TTL.Cache < 0 {
		errs = append(errs, errors.New("SESSION_TTL and ACCESS_TOKEN_MAX_AGE must be positive, CACHE_TTL must not be negative"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost))
	}

	return errors.Join(errs...)
}

func (d DatabaseConfig) validateDriver() error {
	if d.Driver != "pgx" && d.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be pgx or postgres, got %q", d.Driver)
	}
	return nil
}

// Validate checks the settings needed to open a connection.
func (d DatabaseConfig) Validate() error {
	var errs []error
	if d.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if err := d.validateDriver(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
