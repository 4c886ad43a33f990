package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shaun/chatsync/internal/publish"
	"github.com/spf13/viper"
)

const (
	DefaultAddr         = ":8080"
	DefaultUserAgent    = "Gemini-Next-Chat-Mod"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
	DefaultLogLevel     = "info"
)

// Keys double as environment variable names once upper-cased.
const (
	KeyToken          = "github_pat"
	KeyOwner          = "github_owner"
	KeyRepo           = "github_repo"
	KeyBranch         = "github_branch"
	KeyAPIURL         = "github_api_url"
	KeyUserAgent      = "github_user_agent"
	KeyMessagePrefix  = "commit_message_prefix"
	KeyAddr           = "addr"
	KeyPort           = "port"
	KeyHTTPTimeout    = "http_timeout"
	KeyMaxBodyBytes   = "max_body_bytes"
	KeyBasicAuthUser  = "basic_auth_user"
	KeyBasicAuthPass  = "basic_auth_pass"
	KeyMetricsEnabled = "metrics_enabled"
	KeyLogLevel       = "log_level"
)

type Config struct {
	Token         string
	Owner         string
	Repo          string
	Branch        string
	APIURL        string
	UserAgent     string
	MessagePrefix string

	Addr           string
	HTTPTimeout    time.Duration
	MaxBodyBytes   int64
	BasicAuthUser  string
	BasicAuthPass  string
	MetricsEnabled bool
	LogLevel       slog.Level
}

// NewViper returns a viper instance with defaults set and environment
// lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeyMessagePrefix, publish.DefaultMessagePrefix)
	v.SetDefault(KeyHTTPTimeout, DefaultHTTPTimeout)
	v.SetDefault(KeyMaxBodyBytes, DefaultMaxBodyBytes)
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.AutomaticEnv()
	return v
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	level, err := ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Token:          strings.TrimSpace(v.GetString(KeyToken)),
		Owner:          strings.TrimSpace(v.GetString(KeyOwner)),
		Repo:           strings.TrimSpace(v.GetString(KeyRepo)),
		Branch:         strings.TrimSpace(v.GetString(KeyBranch)),
		APIURL:         strings.TrimSpace(v.GetString(KeyAPIURL)),
		UserAgent:      v.GetString(KeyUserAgent),
		MessagePrefix:  v.GetString(KeyMessagePrefix),
		Addr:           v.GetString(KeyAddr),
		HTTPTimeout:    v.GetDuration(KeyHTTPTimeout),
		MaxBodyBytes:   v.GetInt64(KeyMaxBodyBytes),
		BasicAuthUser:  v.GetString(KeyBasicAuthUser),
		BasicAuthPass:  v.GetString(KeyBasicAuthPass),
		MetricsEnabled: v.GetBool(KeyMetricsEnabled),
		LogLevel:       level,
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
		if p := v.GetString(KeyPort); p != "" {
			cfg.Addr = ":" + p
		}
	}
	return cfg, nil
}

// Validate checks the settings the server needs to start.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("listen address is required")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative, got %s", c.HTTPTimeout)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if (c.BasicAuthUser == "") != (c.BasicAuthPass == "") {
		return errors.New("basic auth user and password must be set together")
	}
	return nil
}

// ValidateRemote reports the GitHub settings that are missing, named by
// their environment variables.
func (c *Config) ValidateRemote() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, envName(KeyToken))
	}
	if c.Owner == "" {
		missing = append(missing, envName(KeyOwner))
	}
	if c.Repo == "" {
		missing = append(missing, envName(KeyRepo))
	}
	if len(missing) > 0 {
		return &publish.ConfigurationError{Missing: missing}
	}
	return nil
}

func (c *Config) Publish() publish.Config {
	return publish.Config{
		Owner:         c.Owner,
		Repo:          c.Repo,
		Branch:        c.Branch,
		MessagePrefix: c.MessagePrefix,
	}
}

func envName(key string) string { return strings.ToUpper(key) }

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %s (valid levels are debug|info|warn|error)", s)
	}
}
