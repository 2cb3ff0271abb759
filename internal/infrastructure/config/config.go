package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Registration RegistrationConfig
	Store        StoreConfig
	Printer      PrinterConfig
	Chromedp     ChromedpConfig
	Images       ImagesConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Database     DatabaseConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodySize  int64
	// AgentAPIKey authenticates print agents on the websocket endpoint
	AgentAPIKey string
}

// RegistrationConfig holds the QR registration backend settings
type RegistrationConfig struct {
	Endpoint         string
	APIKey           string
	LocationEndpoint string
	TrackingBaseURL  string
	Timeout          time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
}

// StoreConfig is the default branding context for jobs
type StoreConfig struct {
	ID                 string
	Name               string
	LocationID         string
	LocationName       string
	DistributorLicense string
	ComplianceLines    []string
	LogoURL            string
	FallbackGlyph      string
	DefaultTier        string
}

// PrinterConfig holds the initial printer settings and sink options
type PrinterConfig struct {
	Destination    string
	AutoPrint      bool
	StartPosition  int
	DPI            float64
	Encoder        string // gofpdf, chromedp
	SocketTimeout  time.Duration
	OutputDir      string
	PreviewTimeout time.Duration
	ReprintTTL     time.Duration
}

// ChromedpConfig holds the headless Chrome encoder settings
type ChromedpConfig struct {
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
}

// ImagesConfig holds thumbnail prefetch settings
type ImagesConfig struct {
	Timeout    time.Duration
	CacheTTL   time.Duration
	MaxBytes   int64
	MaxEntries int
}

// RedisConfig holds Redis connection settings for the shared image cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds S3-compatible archive settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// DatabaseConfig holds job history database settings
type DatabaseConfig struct {
	Driver       string // sqlite, postgres
	DSN          string // postgres connection string
	Path         string // sqlite file
	MaxOpenConns int
	MaxIdleConns int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	SamplingRatio     float64
	ExportInterval    time.Duration
	ExportLogs        bool
	ProfilingEnabled  bool
	ProfilerAddress   string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LABELPRINT_ prefix (e.g., LABELPRINT_REGISTRATION_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from an explicit file, or searches the
// default locations when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/labelprint")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LABELPRINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodySize:  v.GetInt64("http.max_body_size"),
			AgentAPIKey:  v.GetString("http.agent_api_key"),
		},
		Registration: RegistrationConfig{
			Endpoint:         v.GetString("registration.endpoint"),
			APIKey:           v.GetString("registration.api_key"),
			LocationEndpoint: v.GetString("registration.location_endpoint"),
			TrackingBaseURL:  v.GetString("registration.tracking_base_url"),
			Timeout:          v.GetDuration("registration.timeout"),
			MaxAttempts:      v.GetInt("registration.max_attempts"),
			BaseDelay:        v.GetDuration("registration.base_delay"),
		},
		Store: StoreConfig{
			ID:                 v.GetString("store.id"),
			Name:               v.GetString("store.name"),
			LocationID:         v.GetString("store.location_id"),
			LocationName:       v.GetString("store.location_name"),
			DistributorLicense: v.GetString("store.distributor_license"),
			ComplianceLines:    v.GetStringSlice("store.compliance_lines"),
			LogoURL:            v.GetString("store.logo_url"),
			FallbackGlyph:      v.GetString("store.fallback_glyph"),
			DefaultTier:        v.GetString("store.default_tier"),
		},
		Printer: PrinterConfig{
			Destination:    v.GetString("printer.destination"),
			AutoPrint:      v.GetBool("printer.auto_print"),
			StartPosition:  v.GetInt("printer.start_position"),
			DPI:            v.GetFloat64("printer.dpi"),
			Encoder:        v.GetString("printer.encoder"),
			SocketTimeout:  v.GetDuration("printer.socket_timeout"),
			OutputDir:      v.GetString("printer.output_dir"),
			PreviewTimeout: v.GetDuration("printer.preview_timeout"),
			ReprintTTL:     v.GetDuration("printer.reprint_ttl"),
		},
		Chromedp: ChromedpConfig{
			RemoteURL: v.GetString("chromedp.remote_url"),
			NoSandbox: v.GetBool("chromedp.no_sandbox"),
			Timeout:   v.GetDuration("chromedp.timeout"),
		},
		Images: ImagesConfig{
			Timeout:    v.GetDuration("images.timeout"),
			CacheTTL:   v.GetDuration("images.cache_ttl"),
			MaxBytes:   v.GetInt64("images.max_bytes"),
			MaxEntries: v.GetInt("images.max_entries"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			DSN:          v.GetString("database.dsn"),
			Path:         v.GetString("database.path"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ServiceName:       v.GetString("telemetry.service_name"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
		},
	}
	// auto_print defaults to true, which a missing bool cannot express
	if !v.IsSet("printer.auto_print") {
		cfg.Printer.AutoPrint = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "labelprint"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 4 << 20 // 4MB
	}
	if cfg.Registration.Timeout == 0 {
		cfg.Registration.Timeout = 15 * time.Second
	}
	if cfg.Registration.MaxAttempts == 0 {
		cfg.Registration.MaxAttempts = 3
	}
	if cfg.Registration.BaseDelay == 0 {
		cfg.Registration.BaseDelay = time.Second
	}
	if cfg.Store.DefaultTier == "" {
		cfg.Store.DefaultTier = "1g"
	}
	if cfg.Printer.Destination == "" {
		cfg.Printer.Destination = "file://"
	}
	if cfg.Printer.DPI == 0 {
		cfg.Printer.DPI = 300
	}
	if cfg.Printer.Encoder == "" {
		cfg.Printer.Encoder = "gofpdf"
	}
	if cfg.Printer.SocketTimeout == 0 {
		cfg.Printer.SocketTimeout = 10 * time.Second
	}
	if cfg.Printer.OutputDir == "" {
		cfg.Printer.OutputDir = "spool"
	}
	if cfg.Printer.PreviewTimeout == 0 {
		cfg.Printer.PreviewTimeout = 10 * time.Minute
	}
	if cfg.Printer.ReprintTTL == 0 {
		cfg.Printer.ReprintTTL = 2 * time.Hour
	}
	if cfg.Chromedp.Timeout == 0 {
		cfg.Chromedp.Timeout = 30 * time.Second
	}
	if cfg.Images.Timeout == 0 {
		cfg.Images.Timeout = 5 * time.Second
	}
	if cfg.Images.CacheTTL == 0 {
		cfg.Images.CacheTTL = 24 * time.Hour
	}
	if cfg.Images.MaxBytes == 0 {
		cfg.Images.MaxBytes = 4 << 20
	}
	if cfg.Images.MaxEntries == 0 {
		cfg.Images.MaxEntries = 512
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "labels"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "labelprint.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "labelprint"
	}
	if cfg.Telemetry.ProfilerAddress == "" {
		cfg.Telemetry.ProfilerAddress = "http://localhost:4040"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Printer.StartPosition < 0 {
		return fmt.Errorf("printer.start_position cannot be negative")
	}
	if c.Printer.StartPosition > printing.MaxStartPosition {
		return fmt.Errorf("printer.start_position cannot exceed %d", printing.MaxStartPosition)
	}
	switch c.Printer.Encoder {
	case "gofpdf", "chromedp":
	default:
		return fmt.Errorf("printer.encoder must be gofpdf or chromedp, got %q", c.Printer.Encoder)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Registration.MaxAttempts < 1 {
		return fmt.Errorf("registration.max_attempts must be positive")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Registration.Endpoint == "" {
			return fmt.Errorf("registration.endpoint is required in production")
		}
		if c.Registration.APIKey == "" {
			return fmt.Errorf("registration.api_key is required in production")
		}
		u, err := url.Parse(c.Registration.TrackingBaseURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("registration.tracking_base_url must be an https URL in production")
		}
	}

	return nil
}

// Addr returns the HTTP listen address
func (a *AppConfig) Addr() string {
	return ":" + a.Port
}

// RedisAddr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
