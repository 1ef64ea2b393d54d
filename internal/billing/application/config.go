package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines ledger settings.
type Config struct {
	DueDays              int           `yaml:"due_days"`
	PaymentRetryAttempts int           `yaml:"payment_retry_attempts"`
	Currency             string        `yaml:"currency"`
	DefaultPageSize      int           `yaml:"default_page_size"`
	MaxPageSize          int           `yaml:"max_page_size"`
	SuperAdmins          []string      `yaml:"super_admins"`
	BatchCacheTTL        time.Duration `yaml:"batch_cache_ttl"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		DueDays:              30,
		PaymentRetryAttempts: 3,
		Currency:             "INR",
		DefaultPageSize:      10,
		MaxPageSize:          100,
		BatchCacheTTL:        5 * time.Minute,
	}
}

// LoadConfig loads config from the BILLING_CONFIG yaml file, then env.
func LoadConfig() (Config, error) {
	return LoadConfigFile(os.Getenv("BILLING_CONFIG"))
}

// LoadConfigFile loads config from path when set. Env vars fill unset fields.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if value := getenvIntDefault("BILLING_DUE_DAYS", 0); value > 0 {
		cfg.DueDays = value
	}
	if value := getenvIntDefault("BILLING_PAYMENT_RETRIES", 0); value > 0 {
		cfg.PaymentRetryAttempts = value
	}
	if value := os.Getenv("CURRENCY"); value != "" {
		cfg.Currency = value
	}
	if value := os.Getenv("BATCH_CACHE_TTL"); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			cfg.BatchCacheTTL = parsed
		}
	}
	if len(cfg.SuperAdmins) == 0 {
		cfg.SuperAdmins = splitCSV(os.Getenv("SUPER_ADMIN_IDS"))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the ledger cannot run with.
func (c Config) Validate() error {
	if c.DueDays < 0 {
		return errors.New("billing config: negative due_days")
	}
	if c.PaymentRetryAttempts < 1 {
		return errors.New("billing config: payment_retry_attempts must be at least 1")
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		return errors.New("billing config: invalid page sizes")
	}
	return nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
