package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the resolved tracelink settings.
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	SourceMap SourceMapConfig `mapstructure:"sourcemap"`
	Editor    EditorConfig    `mapstructure:"editor"`
	Server    ServerConfig    `mapstructure:"server"`
	UI        UIConfig        `mapstructure:"ui"`
}

// SourceMapConfig configures map lookup.
type SourceMapConfig struct {
	// Endpoint is the dev server that serves bundles and their maps.
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Ignore   []string      `mapstructure:"ignore"`
}

// EditorConfig configures the open-in-editor helper.
type EditorConfig struct {
	URL     string            `mapstructure:"url"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type UIConfig struct {
	// ShowUnavailable renders a placeholder for stacks that failed to resolve.
	ShowUnavailable bool `mapstructure:"show_unavailable"`
}

const (
	configName = "tracelink"
	envPrefix  = "TRACELINK"
)

// NewDefaultConfig returns the settings used when nothing overrides them.
func NewDefaultConfig() *Config {
	return &Config{
		SourceMap: SourceMapConfig{
			Endpoint: "http://localhost:3000",
			Timeout:  10 * time.Second,
			Ignore:   []string{"node_modules", "webpack/runtime", "<anonymous>"},
		},
		Editor: EditorConfig{
			URL:     "http://localhost:3000/api/open-in-editor",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{Port: 3000},
	}
}

// InitViper returns a viper instance with defaults, the optional config file
// and TRACELINK_ environment variables applied. An empty configFile searches
// the working directory and $HOME/.config/tracelink for tracelink.yaml.
//
// Precedence, highest first: bound flags, environment, file, defaults.
func InitViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when searching, defaults apply.
		if configFile != "" || !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("debug", d.Debug)

	v.SetDefault("sourcemap.endpoint", d.SourceMap.Endpoint)
	v.SetDefault("sourcemap.timeout", d.SourceMap.Timeout)
	v.SetDefault("sourcemap.ignore", d.SourceMap.Ignore)

	v.SetDefault("editor.url", d.Editor.URL)
	v.SetDefault("editor.timeout", d.Editor.Timeout)
	v.SetDefault("editor.headers", map[string]string{})

	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("ui.show_unavailable", d.UI.ShowUnavailable)
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if err := validateURL("sourcemap.endpoint", cfg.SourceMap.Endpoint); err != nil {
		return err
	}
	if err := validateURL("editor.url", cfg.Editor.URL); err != nil {
		return err
	}
	if cfg.SourceMap.Timeout <= 0 {
		return fmt.Errorf("sourcemap.timeout must be positive, got %s", cfg.SourceMap.Timeout)
	}
	if cfg.Editor.Timeout <= 0 {
		return fmt.Errorf("editor.timeout must be positive, got %s", cfg.Editor.Timeout)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", key, raw)
	}
	return nil
}
