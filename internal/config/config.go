package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string   `toml:"http_addr"`
	DatabaseURL          string   `toml:"database_url"`
	CORSAllowedOrigins   []string `toml:"cors_allowed_origins"`
	CORSAllowCredentials bool     `toml:"cors_allow_credentials"`

	JWTSecret string `toml:"jwt_secret"`

	DraftStorePath string   `toml:"draft_store_path"`
	DraftTTL       Duration `toml:"draft_ttl"`
	AutosaveDelay  Duration `toml:"autosave_delay"`

	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	WorkerPollInterval Duration `toml:"worker_poll_interval"`

	LogLevel string `toml:"log_level"`
	LogDev   bool   `toml:"log_dev"`
}

// Duration lets TOML files use "24h" style values.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Defaults() Config {
	return Config{
		HTTPAddr:           ":8080",
		DraftStorePath:     "brewlog-drafts.db",
		DraftTTL:           Duration{24 * time.Hour},
		AutosaveDelay:      Duration{10 * time.Second},
		KafkaTopic:         "brewlog.achievements",
		WorkerPollInterval: Duration{800 * time.Millisecond},
		LogLevel:           "info",
	}
}

// Load reads .env, then the optional TOML file named by BREWLOG_CONFIG,
// then environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getenv("BREWLOG_CONFIG", ""); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getenv("HTTP_ADDR", c.HTTPAddr)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.DraftStorePath = getenv("DRAFT_STORE_PATH", c.DraftStorePath)
	c.KafkaTopic = getenv("KAFKA_TOPIC", c.KafkaTopic)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)

	if v := getenv("CORS_ALLOW_CREDENTIALS", ""); v != "" {
		c.CORSAllowCredentials = v == "true"
	}
	if v := getenv("LOG_DEV", ""); v != "" {
		c.LogDev = v == "true"
	}
	if v := getenv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS", ""); v != "" {
		c.KafkaBrokers = splitList(v)
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"DRAFT_TTL", &c.DraftTTL},
		{"AUTOSAVE_DELAY", &c.AutosaveDelay},
		{"WORKER_POLL_INTERVAL", &c.WorkerPollInterval},
	}
	for _, d := range durations {
		v := getenv(d.key, "")
		if v == "" {
			continue
		}
		if err := d.dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("env %s: %w", d.key, err)
		}
	}
	return nil
}

func (c Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing DATABASE_URL"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing JWT_SECRET"))
	}
	if c.DraftTTL.Duration <= 0 {
		errs = append(errs, errors.New("DRAFT_TTL must be positive"))
	}
	if c.AutosaveDelay.Duration <= 0 {
		errs = append(errs, errors.New("AUTOSAVE_DELAY must be positive"))
	}
	if c.WorkerPollInterval.Duration <= 0 {
		errs = append(errs, errors.New("WORKER_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
