package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SinkSupabase = "supabase"
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
)

type Config struct {
	Assets      []string      `yaml:"assets"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Schedule    string        `yaml:"schedule"`

	Sources SourcesConfig `yaml:"sources"`
	Sink    SinkConfig    `yaml:"sink"`
	Alert   AlertConfig   `yaml:"alert"`
	Cache   CacheConfig   `yaml:"cache"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

type SourcesConfig struct {
	BFX         BFXConfig      `yaml:"bfx"`
	Bluefin     BluefinConfig  `yaml:"bluefin"`
	Orderly     EndpointConfig `yaml:"orderly"`
	Hyperliquid EndpointConfig `yaml:"hyperliquid"`
}

type EndpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type BFXConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Markets []string      `yaml:"markets"`
	Delay   time.Duration `yaml:"delay"`
}

type BluefinConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Symbols []string `yaml:"symbols"`
}

type SinkConfig struct {
	Kind        string `yaml:"kind"`
	Table       string `yaml:"table"`
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type AlertConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	Message        string `yaml:"message"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// DefaultConfig returns the endpoints and asset lists the collector has
// always polled.
func DefaultConfig() *Config {
	return &Config{
		Assets:      []string{"BTC", "ETH", "SOL"},
		HTTPTimeout: 10 * time.Second,
		Sources: SourcesConfig{
			BFX: BFXConfig{
				Enabled: true,
				URL:     "https://api.bfx.trade/markets/fundingrate",
				Markets: []string{"BTC-USD", "ETH-USD", "SOL-USD"},
				Delay:   time.Second,
			},
			Bluefin: BluefinConfig{
				Enabled: true,
				URL:     "https://dapi.api.sui-prod.bluefin.io/fundingRate",
				Symbols: []string{"SOL-PERP", "ETH-PERP", "BTC-PERP"},
			},
			Orderly: EndpointConfig{
				Enabled: true,
				URL:     "https://api-evm.orderly.network/v1/public/funding_rates",
			},
			Hyperliquid: EndpointConfig{
				Enabled: true,
				URL:     "https://api.hyperliquid.xyz/info",
			},
		},
		Sink: SinkConfig{
			Kind:  SinkSupabase,
			Table: "Perpetuos",
		},
		Alert: AlertConfig{
			WebhookURL: "https://hook.eu2.make.com/yiddb9e1cm82pm756kd7tsbsfc12pe4t",
			Message:    "🚨 ALERT 🚨 - funding rate collector down",
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Archive: ArchiveConfig{
			Prefix: "funding-rates",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path when
// one is given and then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	cfg.Sink.Kind = getEnv("SINK_KIND", cfg.Sink.Kind)
	cfg.Sink.Table = getEnv("SINK_TABLE", cfg.Sink.Table)
	cfg.Sink.SupabaseURL = getEnv("SUPABASE_URL", cfg.Sink.SupabaseURL)
	cfg.Sink.SupabaseKey = getEnv("SUPABASE_KEY", cfg.Sink.SupabaseKey)
	cfg.Sink.PostgresDSN = getEnv("DATABASE_URL", cfg.Sink.PostgresDSN)
	cfg.Sink.SQLitePath = getEnv("SQLITE_PATH", cfg.Sink.SQLitePath)

	cfg.Alert.WebhookURL = getEnv("ALERT_WEBHOOK_URL", cfg.Alert.WebhookURL)
	cfg.Alert.TelegramToken = getEnv("TELEGRAM_TOKEN", cfg.Alert.TelegramToken)
	if v := getEnv("TELEGRAM_CHAT_ID", ""); v != "" {
		chatID, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return &ConfigError{Key: "TELEGRAM_CHAT_ID", Reason: err.Error()}
		}
		cfg.Alert.TelegramChatID = chatID
	}

	cfg.Cache.Addr = getEnv("REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = getEnv("REDIS_PASSWORD", cfg.Cache.Password)

	cfg.Archive.Bucket = getEnv("ARCHIVE_S3_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Prefix = getEnv("ARCHIVE_S3_PREFIX", cfg.Archive.Prefix)
	cfg.Archive.Region = getEnv("AWS_REGION", cfg.Archive.Region)
	cfg.Archive.AccessKeyID = strings.TrimSpace(getEnv("AWS_ACCESS_KEY_ID", cfg.Archive.AccessKeyID))
	cfg.Archive.SecretAccessKey = strings.TrimSpace(getEnv("AWS_SECRET_ACCESS_KEY", cfg.Archive.SecretAccessKey))

	cfg.Schedule = getEnv("SCHEDULE", cfg.Schedule)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	return nil
}

// Validate checks settings that do not depend on credentials. Missing sink
// credentials are reported when the sink is opened so the failure goes
// through the alerting path.
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return &ConfigError{Key: "assets", Reason: "at least one asset is required"}
	}
	if c.HTTPTimeout <= 0 {
		return &ConfigError{Key: "http_timeout", Reason: "must be greater than 0"}
	}
	if c.Sources.BFX.Delay < 0 {
		return &ConfigError{Key: "sources.bfx.delay", Reason: "must not be negative"}
	}
	switch strings.ToLower(c.Sink.Kind) {
	case SinkSupabase, SinkPostgres, SinkSQLite:
	default:
		return &ConfigError{Key: "sink.kind", Reason: fmt.Sprintf("unsupported sink %q", c.Sink.Kind)}
	}
	if strings.TrimSpace(c.Sink.Table) == "" {
		return &ConfigError{Key: "sink.table"}
	}
	return nil
}

// getEnv retrieves the value of the environment variable named by the key.
// It returns the value, which will be empty if the variable is not present.
// If the variable is not present and a default value is given, it returns the default value.
func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}
