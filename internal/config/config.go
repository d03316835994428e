// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// EnvProduction is the PAGESDNS_ENV value that enforces webhook signatures.
	EnvProduction = "production"

	minEncryptionKeyLength = 32
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string `validate:"required"`
	DBPath     string `validate:"required"`
	Env        string `validate:"required"`
	LogLevel   string `validate:"oneof=debug info warn error"`
	LogFormat  string `validate:"oneof=json text"`

	WebhookSecret string
	AdminToken    string

	GitHubAppID          int64  `validate:"gt=0"`
	GitHubInstallationID int64  `validate:"gt=0"`
	GitHubPrivateKey     []byte `validate:"required"`
	GitHubFallbackToken  string
	GitHubAPIURL         string `validate:"omitempty,url"`

	CloudflareAPIURL       string `validate:"omitempty,url"`
	CloudflareZoneID       string `validate:"required"`
	CloudflareAPIToken     string `validate:"required"`
	CloudflareTargetDomain string `validate:"required,fqdn"`

	EncryptionKey string
	DNSResolver   string

	TokenCheckInterval time.Duration `validate:"gt=0"`
	TokenRefreshBuffer time.Duration `validate:"gt=0"`
	UpstreamTimeout    time.Duration `validate:"gt=0"`
}

// IsProduction reports whether the service runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// HasEncryptionKey reports whether installation credentials can be stored.
func (c *Config) HasEncryptionKey() bool {
	return c.EncryptionKey != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// An optional dotenv file (PAGESDNS_ENV_FILE, default .env) is loaded first; variables
// already present in the environment win. Required: PAGESDNS_GITHUB_APP_ID,
// PAGESDNS_GITHUB_INSTALLATION_ID, PAGESDNS_GITHUB_APP_PRIVATE_KEY or
// PAGESDNS_GITHUB_APP_PRIVATE_KEY_PATH, PAGESDNS_CLOUDFLARE_ZONE_ID,
// PAGESDNS_CLOUDFLARE_API_TOKEN and PAGESDNS_CLOUDFLARE_TARGET_DOMAIN.
func Load() (*Config, error) {
	envFile := ".env"
	if v, ok := os.LookupEnv("PAGESDNS_ENV_FILE"); ok && v != "" {
		envFile = v
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{
		ListenAddr:          lookup("PAGESDNS_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:              lookup("PAGESDNS_DB_PATH", "pagesdns.db"),
		Env:                 strings.ToLower(lookup("PAGESDNS_ENV", EnvProduction)),
		LogLevel:            strings.ToLower(lookup("PAGESDNS_LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(lookup("PAGESDNS_LOG_FORMAT", "json")),
		WebhookSecret:       os.Getenv("PAGESDNS_WEBHOOK_SECRET"),
		AdminToken:          os.Getenv("PAGESDNS_ADMIN_TOKEN"),
		GitHubFallbackToken: os.Getenv("PAGESDNS_GITHUB_APP_TOKEN"),
		GitHubAPIURL:        os.Getenv("PAGESDNS_GITHUB_API_URL"),
		CloudflareAPIURL:    os.Getenv("PAGESDNS_CLOUDFLARE_API_URL"),
		CloudflareZoneID:    strings.TrimSpace(os.Getenv("PAGESDNS_CLOUDFLARE_ZONE_ID")),
		CloudflareAPIToken:  strings.TrimSpace(os.Getenv("PAGESDNS_CLOUDFLARE_API_TOKEN")),
		CloudflareTargetDomain: strings.TrimSuffix(
			strings.ToLower(strings.TrimSpace(os.Getenv("PAGESDNS_CLOUDFLARE_TARGET_DOMAIN"))), "."),
		EncryptionKey: os.Getenv("PAGESDNS_ENCRYPTION_KEY"),
		DNSResolver:   os.Getenv("PAGESDNS_DNS_RESOLVER"),
	}

	var err error
	if cfg.GitHubAppID, err = requiredInt("PAGESDNS_GITHUB_APP_ID"); err != nil {
		return nil, err
	}
	if cfg.GitHubInstallationID, err = requiredInt("PAGESDNS_GITHUB_INSTALLATION_ID"); err != nil {
		return nil, err
	}
	if cfg.GitHubPrivateKey, err = loadPrivateKey(); err != nil {
		return nil, err
	}

	if cfg.TokenCheckInterval, err = duration("PAGESDNS_TOKEN_CHECK_INTERVAL", 45*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenRefreshBuffer, err = duration("PAGESDNS_TOKEN_REFRESH_BUFFER", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = duration("PAGESDNS_UPSTREAM_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) < minEncryptionKeyLength {
		return nil, fmt.Errorf("PAGESDNS_ENCRYPTION_KEY must be at least %d characters", minEncryptionKeyLength)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NormalizePrivateKey turns literal "\n" sequences, as written by most
// secret managers and dotenv files, into real newlines.
func NormalizePrivateKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.Trim(key, `"`)
	return strings.ReplaceAll(key, `\n`, "\n")
}

func loadPrivateKey() ([]byte, error) {
	if v := os.Getenv("PAGESDNS_GITHUB_APP_PRIVATE_KEY"); strings.TrimSpace(v) != "" {
		return []byte(NormalizePrivateKey(v)), nil
	}

	path := os.Getenv("PAGESDNS_GITHUB_APP_PRIVATE_KEY_PATH")
	if path == "" {
		return nil, errors.New("PAGESDNS_GITHUB_APP_PRIVATE_KEY or PAGESDNS_GITHUB_APP_PRIVATE_KEY_PATH is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("PAGESDNS_GITHUB_APP_PRIVATE_KEY_PATH: %w", err)
	}
	return []byte(NormalizePrivateKey(string(data))), nil
}

func lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func requiredInt(key string) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

// envNames maps struct fields to the variables they come from, for error
// messages.
var envNames = map[string]string{
	"ListenAddr":             "PAGESDNS_LISTEN_ADDR",
	"DBPath":                 "PAGESDNS_DB_PATH",
	"Env":                    "PAGESDNS_ENV",
	"LogLevel":               "PAGESDNS_LOG_LEVEL",
	"LogFormat":              "PAGESDNS_LOG_FORMAT",
	"GitHubAppID":            "PAGESDNS_GITHUB_APP_ID",
	"GitHubInstallationID":   "PAGESDNS_GITHUB_INSTALLATION_ID",
	"GitHubPrivateKey":       "PAGESDNS_GITHUB_APP_PRIVATE_KEY",
	"GitHubAPIURL":           "PAGESDNS_GITHUB_API_URL",
	"CloudflareAPIURL":       "PAGESDNS_CLOUDFLARE_API_URL",
	"CloudflareZoneID":       "PAGESDNS_CLOUDFLARE_ZONE_ID",
	"CloudflareAPIToken":     "PAGESDNS_CLOUDFLARE_API_TOKEN",
	"CloudflareTargetDomain": "PAGESDNS_CLOUDFLARE_TARGET_DOMAIN",
	"EncryptionKey":          "PAGESDNS_ENCRYPTION_KEY",
	"TokenCheckInterval":     "PAGESDNS_TOKEN_CHECK_INTERVAL",
	"TokenRefreshBuffer":     "PAGESDNS_TOKEN_REFRESH_BUFFER",
	"UpstreamTimeout":        "PAGESDNS_UPSTREAM_TIMEOUT",
}

func validate(cfg *Config) error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.StructField()]
		if name == "" {
			name = fe.StructField()
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", name, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", name, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
