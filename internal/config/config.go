// Package config loads this gateway's settings with the precedence
// environment > config file > built-in default, grounded on
// recreate-run-mix/internal/config/config.go's configureViper/setDefaults
// sequence, narrowed to the handful of keys this gateway actually needs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const appName = "anthropic-oauth-proxy"

// Config holds every setting this gateway reads at startup. Fields
// mirror the configuration-keys table, plus the extra MODELS key for
// /v1/models; there is no nesting.
type Config struct {
	Port             int    `mapstructure:"port"`
	LogLevel         string `mapstructure:"log_level"`
	AnthropicVersion string `mapstructure:"anthropic_version"`
	AnthropicBeta    string `mapstructure:"anthropic_beta"`
	APIBase          string `mapstructure:"api_base"`
	AuthBase         string `mapstructure:"auth_base"`
	ClientID         string `mapstructure:"client_id"`
	RedirectURI      string `mapstructure:"redirect_uri"`
	Scope            string `mapstructure:"scope"`
	TokenFile        string `mapstructure:"token_file"`
	DefaultModel     string `mapstructure:"default_model"`
	DefaultMaxTokens int64  `mapstructure:"default_max_tokens"`
	Models           string `mapstructure:"models"`
}

// AnthropicBetaFeatures splits the comma-joined ANTHROPIC_BETA value,
// trimming blanks, for callers that need it as a slice.
func (c *Config) AnthropicBetaFeatures() []string {
	return splitCommaList(c.AnthropicBeta)
}

// ModelList splits the comma-joined MODELS value for the /v1/models
// endpoint, falling back to just DefaultModel when unset so the
// endpoint always has something to advertise.
func (c *Config) ModelList() []string {
	if models := splitCommaList(c.Models); len(models) > 0 {
		return models
	}
	return []string{c.DefaultModel}
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	mu       sync.RWMutex
	instance *Config
)

// Load reads configuration from the environment, an optional config
// file (XDG_CONFIG_HOME/anthropic-oauth-proxy/config.yaml by default,
// overridable with the configFile argument), and built-in defaults, in
// that precedence order, and caches the result for Get.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	configureViper(v, configFile)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()

	return cfg, nil
}

// Get returns the most recently Load-ed configuration, or nil if Load
// has not been called yet.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8081)
	v.SetDefault("log_level", "info")
	v.SetDefault("anthropic_version", "2023-06-01")
	v.SetDefault("anthropic_beta", "")
	v.SetDefault("api_base", "https://api.anthropic.com")
	v.SetDefault("auth_base", "https://claude.ai")
	v.SetDefault("client_id", "9d1c250a-e61b-44d9-88ed-5944d1962f5e")
	v.SetDefault("redirect_uri", "https://console.anthropic.com/oauth/code/callback")
	v.SetDefault("scope", "org:create_api_key user:profile user:inference")
	v.SetDefault("token_file", defaultTokenFile())
	v.SetDefault("default_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("default_max_tokens", 4096)
	v.SetDefault("models", "")
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anthropic-oauth-proxy/tokens.json"
	}
	return filepath.Join(home, ".anthropic-oauth-proxy", "tokens.json")
}

func configureViper(v *viper.Viper, configFile string) {
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(appName, "-", "_")))
	v.AutomaticEnv()
	// Environment variables name each key directly (PORT, LOG_LEVEL, ...)
	// rather than prefixed, per spec.md's configuration table.
	for _, key := range []string{
		"port", "log_level", "anthropic_version", "anthropic_beta",
		"api_base", "auth_base", "client_id", "redirect_uri", "scope",
		"token_file", "default_model", "default_max_tokens", "models",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		return
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", appName))
	}
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if errors.As(err, &notFound) || errors.As(err, &pathErr) {
			return nil
		}
		return fmt.Errorf("config: reading config file: %w", err)
	}
	return nil
}
