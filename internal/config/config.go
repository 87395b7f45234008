package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is the KEY=VALUE file read when no path is given.
const DefaultFile = "config.txt"

// Settings is the typed view of the configuration.
type Settings struct {
	BotToken      string        `mapstructure:"bot_token"`
	AllowedUsers  string        `mapstructure:"telegram_allowed_users"`
	ToolsDir      string        `mapstructure:"tools_dir"`
	PluginCache   string        `mapstructure:"plugin_cache"`
	PluginWatch   bool          `mapstructure:"plugin_watch"`
	CacheFlush    string        `mapstructure:"plugin_cache_flush"`
	VerifyWorkers int           `mapstructure:"verify_workers"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout"`
	ServerAddr    string        `mapstructure:"server_addr"`
	ServerAPIKey  string        `mapstructure:"server_api_key"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFormat     string        `mapstructure:"log_format"`
	HTTPUserAgent string        `mapstructure:"http_user_agent"`
	TLSCertFile   string        `mapstructure:"tls_cert_file"`
	TLSKeyFile    string        `mapstructure:"tls_key_file"`
}

// Config holds all application settings. Values come from a simple
// KEY=VALUE text file, overridden by environment variables of the same name.
type Config struct {
	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot_token", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_allowed_users", "*")
	v.SetDefault("tools_dir", "./tools")
	v.SetDefault("plugin_cache", "reload")
	v.SetDefault("plugin_watch", false)
	v.SetDefault("plugin_cache_flush", "")
	v.SetDefault("verify_workers", 8)
	v.SetDefault("verify_timeout", 5*time.Minute)
	v.SetDefault("server_addr", "")
	v.SetDefault("server_api_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("http_user_agent", "Mozilla/5.0 (verifikator)")
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")
}

// LoadConfig reads filePath if it exists. A missing file is not an error:
// defaults and the environment still apply.
func LoadConfig(filePath string) (*Config, error) {
	if filePath == "" {
		filePath = DefaultFile
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigFile(filePath)
	v.SetConfigType("env")

	conf := &Config{v: v}
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conf, nil
		}
		return conf, fmt.Errorf("read %s: %w", filePath, err)
	}
	return conf, nil
}

// Get returns the value for a key, or an empty string if not found.
func (c *Config) Get(key string) string {
	return c.v.GetString(strings.ToLower(key))
}

// GetWithDefault returns the value for a key, or the provided default if not set.
func (c *Config) GetWithDefault(key, defaultValue string) string {
	if val := c.Get(key); val != "" {
		return val
	}
	return defaultValue
}

// Set overrides a key for the lifetime of the process.
func (c *Config) Set(key, value string) {
	c.v.Set(strings.ToLower(key), value)
}

// Settings decodes the configuration into its typed form.
func (c *Config) Settings() (Settings, error) {
	var s Settings
	if err := c.v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode config: %w", err)
	}
	if s.BotToken == "" {
		s.BotToken = c.v.GetString("telegram_token")
	}
	if s.VerifyWorkers < 1 {
		s.VerifyWorkers = 1
	}
	return s, nil
}

// AllSettings returns a copy of all current settings.
func (c *Config) AllSettings() map[string]string {
	out := make(map[string]string)
	for _, k := range c.v.AllKeys() {
		out[strings.ToUpper(k)] = c.v.GetString(k)
	}
	return out
}
