package internal

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	StoreDriverMemory   = "memory"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"

	defaultMaxUploadSize = 10 << 20
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Roles         RolesConfig         `mapstructure:"roles"`
	Email         EmailConfig         `mapstructure:"email"`
	Uploads       UploadsConfig       `mapstructure:"uploads"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type StoreConfig struct {
	Driver  string        `mapstructure:"driver" validate:"oneof=memory redis postgres"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityConfig struct {
	SessionSecret    string        `mapstructure:"session_secret" validate:"required,min=32"`
	MagicLinkSecret  string        `mapstructure:"magic_link_secret" validate:"required,min=32"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	MagicLinkTTL     time.Duration `mapstructure:"magic_link_ttl"`
	MagicLinkPerHour int           `mapstructure:"magic_link_per_hour"`
	SuccessRedirect  string        `mapstructure:"success_redirect"`
	LoginPath        string        `mapstructure:"login_path"`
}

type RolesConfig struct {
	CEOEmails               []string `mapstructure:"ceo_emails"`
	PurchaserEmails         []string `mapstructure:"purchaser_emails"`
	ExternalRequesterEmails []string `mapstructure:"external_requester_emails"`
	OrganizationDomain      string   `mapstructure:"organization_domain"`
}

type EmailConfig struct {
	From            string `mapstructure:"from"`
	SMTPHost        string `mapstructure:"smtp_host"`
	SMTPPort        int    `mapstructure:"smtp_port"`
	SMTPUser        string `mapstructure:"smtp_user"`
	SMTPPassword    string `mapstructure:"smtp_password"`
	TestingOverride string `mapstructure:"testing_override"`
}

type UploadsConfig struct {
	BucketURL string `mapstructure:"bucket_url"`
	MaxSize   int64  `mapstructure:"max_size"`
}

type EventsConfig struct {
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// SMTPEnabled reports whether mail should go out over SMTP rather than to the log.
func (c *EmailConfig) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// ApplyDefaults fills zero values shared by the file and environment loaders.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverMemory
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 5 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.SessionTTL == 0 {
		c.Security.SessionTTL = 8 * time.Hour
	}
	if c.Security.MagicLinkTTL == 0 {
		c.Security.MagicLinkTTL = 15 * time.Minute
	}
	if c.Security.MagicLinkPerHour == 0 {
		c.Security.MagicLinkPerHour = 5
	}
	if c.Security.SuccessRedirect == "" {
		c.Security.SuccessRedirect = "/requests"
	}
	if c.Security.LoginPath == "" {
		c.Security.LoginPath = "/login"
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Uploads.BucketURL == "" {
		c.Uploads.BucketURL = "file:///tmp/procurement-uploads"
	}
	if c.Uploads.MaxSize == 0 {
		c.Uploads.MaxSize = defaultMaxUploadSize
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "procurement"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
		if c.IsProduction() {
			c.Observability.Logging.Format = "json"
		}
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables (container deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Environment: getEnv("APP_ENV", EnvProduction),
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", 8080),
			BaseURL:        getEnv("BASE_URL", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
			OpenAPIPath:    getEnv("OPENAPI_PATH", ""),
		},
		Database: DatabaseConfig{
			Source:       getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			SessionSecret:    getEnv("JWT_SECRET", ""),
			MagicLinkSecret:  getEnv("MAGIC_LINK_SECRET", ""),
			SessionTTL:       getEnvAsDuration("SESSION_TTL", 0),
			MagicLinkTTL:     getEnvAsDuration("MAGIC_LINK_TTL", 0),
			MagicLinkPerHour: getEnvAsInt("MAGIC_LINK_PER_HOUR", 0),
		},
		Roles: RolesConfig{
			CEOEmails:               getEnvAsList("CEO_EMAILS"),
			PurchaserEmails:         getEnvAsList("PURCHASER_EMAILS"),
			ExternalRequesterEmails: getEnvAsList("EXTERNAL_REQUESTER_EMAILS"),
			OrganizationDomain:      getEnv("ORGANIZATION_DOMAIN", ""),
		},
		Email: EmailConfig{
			From:            getEnv("EMAIL_FROM", ""),
			SMTPHost:        getEnv("SMTP_HOST", ""),
			SMTPPort:        getEnvAsInt("SMTP_PORT", 0),
			SMTPUser:        getEnv("SMTP_USER", ""),
			SMTPPassword:    getEnv("SMTP_PASS", ""),
			TestingOverride: getEnv("TESTING_EMAIL_OVERRIDE", ""),
		},
		Uploads: UploadsConfig{
			BucketURL: getEnv("UPLOADS_BUCKET_URL", ""),
			MaxSize:   int64(getEnvAsInt("UPLOADS_MAX_SIZE", 0)),
		},
		Events: EventsConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("EVENTS_SUBJECT_PREFIX", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", ""),
				Format: getEnv("LOG_FORMAT", ""),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if c.Environment != EnvProduction && c.Environment != EnvDevelopment && c.Environment != "test" {
		errs = append(errs, fmt.Sprintf("environment: unknown value %q", c.Environment))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("store config: %v", err))
	}

	if c.Store.Driver == StoreDriverPostgres {
		if err := c.Database.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("database config: %v", err))
		}
	}

	if c.Store.Driver == StoreDriverRedis {
		if err := c.Redis.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("redis config: %v", err))
		}
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Roles.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("roles config: %v", err))
	}

	if err := c.Email.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("email config: %v", err))
	}

	if err := c.Uploads.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("uploads config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL)
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case StoreDriverMemory, StoreDriverRedis, StoreDriverPostgres:
		return nil
	default:
		return fmt.Errorf("driver must be one of memory, redis, postgres; got %q", c.Driver)
	}
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *RedisConfig) Validate() error {
	if c.URL == "" && c.Addr == "" {
		return errors.New("url or addr is required")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if len(c.SessionSecret) < 32 {
		return errors.New("session secret must be at least 32 characters")
	}
	if len(c.MagicLinkSecret) < 32 {
		return errors.New("magic link secret must be at least 32 characters")
	}
	if c.SessionSecret == c.MagicLinkSecret {
		return errors.New("session and magic link secrets must differ")
	}
	if c.SessionTTL <= 0 || c.MagicLinkTTL <= 0 {
		return errors.New("token ttls must be positive")
	}
	if c.MagicLinkPerHour < 0 {
		return errors.New("magic_link_per_hour cannot be negative")
	}
	return nil
}

func (c *RolesConfig) Validate() error {
	if len(c.CEOEmails) == 0 {
		return errors.New("at least one ceo email is required")
	}
	if len(c.PurchaserEmails) == 0 {
		return errors.New("at least one purchaser email is required")
	}
	lists := [][]string{c.CEOEmails, c.PurchaserEmails, c.ExternalRequesterEmails}
	for _, list := range lists {
		for _, email := range list {
			if _, err := mail.ParseAddress(email); err != nil {
				return fmt.Errorf("invalid email %q: %w", email, err)
			}
		}
	}
	if strings.Contains(c.OrganizationDomain, "@") {
		return fmt.Errorf("organization_domain %q must be a bare domain", c.OrganizationDomain)
	}
	return nil
}

func (c *EmailConfig) Validate() error {
	if !c.SMTPEnabled() {
		return nil
	}
	if c.From == "" {
		return errors.New("from is required when smtp_host is set")
	}
	if c.SMTPPort <= 0 {
		return errors.New("smtp_port must be positive")
	}
	return nil
}

func (c *UploadsConfig) Validate() error {
	if _, err := url.Parse(c.BucketURL); err != nil {
		return fmt.Errorf("invalid bucket_url: %w", err)
	}
	if c.MaxSize <= 0 {
		return errors.New("max_size must be positive")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error; got %q", c.Level)
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("format must be json or text; got %q", c.Format)
	}
	return nil
}
