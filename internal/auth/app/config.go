package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SUPPORTCHAT_BASE_URL.
const EnvPrefix = "SUPPORTCHAT"

type Config struct {
	BaseURL  string `mapstructure:"BASE_URL"`  // Required: auth backend base URL
	TenantID string `mapstructure:"TENANT_ID"` // Required: sent as X-Tenant-ID

	AppName      string `mapstructure:"APP_NAME"`      // User-Agent product (default: SupportChat)
	AppVersion   string `mapstructure:"APP_VERSION"`   // User-Agent version (default: BuildVersion)
	AppType      string `mapstructure:"APP_TYPE"`      // X-App-Type (default: support-assistant)
	ClientSource string `mapstructure:"CLIENT_SOURCE"` // X-Client-Source (default: mobile-app)
	Platform     string `mapstructure:"PLATFORM"`      // X-Platform (default: runtime.GOOS)
	DeviceName   string `mapstructure:"DEVICE_NAME"`   // Sent with biometric registration (default: hostname)
	DeviceModel  string `mapstructure:"DEVICE_MODEL"`  // Sent with biometric registration

	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`     // Per attempt timeout (default: 30s)
	ValidationInterval time.Duration `mapstructure:"VALIDATION_INTERVAL"` // Session validation throttle (default: 30m)
	ResendInterval     time.Duration `mapstructure:"RESEND_INTERVAL"`     // Minimum gap between OTP deliveries (default: 30s)

	DataDir       string `mapstructure:"DATA_DIR"`        // Directory for the store and key (default: <user config dir>/supportchat)
	DatabaseFile  string `mapstructure:"DATABASE_FILE"`   // Relative to DataDir unless absolute (default: auth.db)
	MasterKeyFile string `mapstructure:"MASTER_KEY_FILE"` // Relative to DataDir unless absolute (default: master.key)
	Namespace     string `mapstructure:"NAMESPACE"`       // Store namespace, one per app install (default: default)

	Env       string `mapstructure:"ENV"`        // Environment (dev, staging, prod) (default: prod)
	LogLevel  string `mapstructure:"LOG_LEVEL"`  // Log level (debug, info, warn, error) (default: warn)
	LogFormat string `mapstructure:"LOG_FORMAT"` // Log format (json, text) (default: text)
}

// LoadConfig reads an optional .env file from the working directory, then the
// SUPPORTCHAT_ prefixed environment, which wins. Keys in .env are written
// without the prefix.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read .env: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	hostname, _ := os.Hostname()

	v.SetDefault("BASE_URL", "")
	v.SetDefault("TENANT_ID", "")
	v.SetDefault("APP_NAME", "SupportChat")
	v.SetDefault("APP_VERSION", BuildVersion)
	v.SetDefault("APP_TYPE", "support-assistant")
	v.SetDefault("CLIENT_SOURCE", "mobile-app")
	v.SetDefault("PLATFORM", "")
	v.SetDefault("DEVICE_NAME", hostname)
	v.SetDefault("DEVICE_MODEL", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("VALIDATION_INTERVAL", "30m")
	v.SetDefault("RESEND_INTERVAL", "30s")
	v.SetDefault("DATA_DIR", defaultDataDir())
	v.SetDefault("DATABASE_FILE", "auth.db")
	v.SetDefault("MASTER_KEY_FILE", "master.key")
	v.SetDefault("NAMESPACE", "default")
	v.SetDefault("ENV", "prod")
	v.SetDefault("LOG_LEVEL", "warn")
	v.SetDefault("LOG_FORMAT", "text")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "supportchat")
	}
	return ".supportchat"
}

// Validate rejects configurations the app cannot start with.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("config: BASE_URL must be set"))
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("config: BASE_URL %q must be an http(s) URL", c.BaseURL))
	}
	if strings.TrimSpace(c.TenantID) == "" {
		errs = append(errs, errors.New("config: TENANT_ID must be set"))
	}

	for name, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":     c.RequestTimeout,
		"VALIDATION_INTERVAL": c.ValidationInterval,
		"RESEND_INTERVAL":     c.ResendInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive", name))
		}
	}

	if c.DataDir == "" {
		errs = append(errs, errors.New("config: DATA_DIR must be set"))
	}

	return errors.Join(errs...)
}

// DatabasePath resolves DatabaseFile against DataDir.
func (c Config) DatabasePath() string { return c.resolve(c.DatabaseFile) }

// MasterKeyPath resolves MasterKeyFile against DataDir.
func (c Config) MasterKeyPath() string { return c.resolve(c.MasterKeyFile) }

func (c Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
