// Package config loads levelset settings from defaults, a YAML file, a
// .env file and LEVELSET_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LEVELSET"

// ErrConfigExists is returned by WriteDefault when the file is already present.
var ErrConfigExists = errors.New("config file already exists")

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Upstream  UpstreamConfig  `mapstructure:"upstream" yaml:"upstream"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Printer   PrinterConfig   `mapstructure:"printer" yaml:"printer"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen" validate:"required,hostname_port"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// UpstreamConfig configures the chat-completions endpoint.
type UpstreamConfig struct {
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Model            string  `mapstructure:"model" yaml:"model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Temperature      float32 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	HeartbeatSeconds int     `mapstructure:"heartbeat_seconds" yaml:"heartbeat_seconds" validate:"gte=1,lte=300"`
}

// Heartbeat returns the heartbeat interval.
func (u UpstreamConfig) Heartbeat() time.Duration {
	return time.Duration(u.HeartbeatSeconds) * time.Second
}

// AssistantConfig shapes the system prompt.
type AssistantConfig struct {
	Persona string `mapstructure:"persona" yaml:"persona,omitempty"`
}

// AuditConfig sizes the in-memory decision record.
type AuditConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity" validate:"gte=1,lte=100000"`
}

// PrinterConfig locates the print spool. Printed checklists replace
// last_print.txt in Dir; an empty Dir disables printing.
type PrinterConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Dir returns the levelset home directory, ~/.levelset.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".levelset"
	}
	return filepath.Join(home, ".levelset")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Listen: "127.0.0.1:7466"},
		Database: DatabaseConfig{Path: filepath.Join(Dir(), "levelset.db")},
		Upstream: UpstreamConfig{
			BaseURL:          "http://127.0.0.1:1234/v1",
			Model:            "local-model",
			Temperature:      0.7,
			HeartbeatSeconds: 15,
		},
		Audit:   AuditConfig{Capacity: 500},
		Printer: PrinterConfig{Dir: Dir()},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the config file at path from fs, applies LEVELSET_* environment
// overrides (e.g. LEVELSET_UPSTREAM_BASE_URL) and validates the result. A
// missing file is not an error.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		exists, err := afero.Exists(fs, path)
		if err != nil {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
		if exists {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Printer.Dir = expandHome(cfg.Printer.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WriteDefault writes the built-in configuration to path as YAML. An existing
// file is only replaced when force is set.
func WriteDefault(fs afero.Fs, path string, force bool) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("stat config file: %w", err)
	}
	if exists && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("upstream.base_url", d.Upstream.BaseURL)
	v.SetDefault("upstream.model", d.Upstream.Model)
	v.SetDefault("upstream.api_key", d.Upstream.APIKey)
	v.SetDefault("upstream.temperature", d.Upstream.Temperature)
	v.SetDefault("upstream.heartbeat_seconds", d.Upstream.HeartbeatSeconds)
	v.SetDefault("assistant.persona", d.Assistant.Persona)
	v.SetDefault("audit.capacity", d.Audit.Capacity)
	v.SetDefault("printer.dir", d.Printer.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
