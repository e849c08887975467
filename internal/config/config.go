// Package config loads BodhiCanon configuration: a YAML file overlaid with
// BODHI_* environment variables. Keys use single-word path segments so the
// env mapping stays unambiguous (BODHI_SERVER_PORT -> server.port).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Config is the top-level configuration, corresponding to bodhi.yml.
type Config struct {
	Bookcase BookcaseConfig `yaml:"bookcase" koanf:"bookcase"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Export   ExportConfig   `yaml:"export" koanf:"export"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

// BookcaseConfig locates the CBETA Bookcase drop and its sidecar data.
type BookcaseConfig struct {
	// Dir is the Bookcase root: the directory holding XML/, the navigation
	// trees, catalog.txt and bookdata.txt.
	Dir string `yaml:"dir" koanf:"dir"`
	// Gaiji is the rare-character table path. Empty derives the
	// cbeta_gaiji.json sibling of Dir.
	Gaiji string `yaml:"gaiji" koanf:"gaiji"`
}

// ServerConfig holds the reader API settings.
type ServerConfig struct {
	Host     string   `yaml:"host" koanf:"host"`
	Port     int      `yaml:"port" koanf:"port"`
	Cache    int      `yaml:"cache" koanf:"cache"`
	Origins  []string `yaml:"origins" koanf:"origins"`
	Userdata string   `yaml:"userdata" koanf:"userdata"`
}

// ExportConfig holds the vault export settings.
type ExportConfig struct {
	Output      string `yaml:"output" koanf:"output"`
	Workers     int    `yaml:"workers" koanf:"workers"`
	Compression string `yaml:"compression" koanf:"compression"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// DefaultConfig returns a Config with the stock defaults.
func DefaultConfig() *Config {
	return &Config{
		Bookcase: BookcaseConfig{
			Dir: filepath.Join("data", "cbeta"),
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8400,
			Cache:    256,
			Origins:  []string{"*"},
			Userdata: filepath.Join("data", "userdata"),
		},
		Export: ExportConfig{
			Output:      "vault",
			Workers:     4,
			Compression: "xz",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given YAML file if it exists, then
// overlays BODHI_* environment variables onto it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("BODHI_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "BODHI_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// GaijiTable returns the rare-character table path, deriving the
// cbeta_gaiji.json sibling of the Bookcase directory when unset.
func (b BookcaseConfig) GaijiTable() string {
	if b.Gaiji != "" {
		return b.Gaiji
	}
	if b.Dir == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(b.Dir), "cbeta_gaiji.json")
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validFormats = map[string]bool{"text": true, "json": true}

var validCompressions = map[string]bool{"": true, "xz": true, "gzip": true}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Bookcase.Dir == "" {
		return fmt.Errorf("bookcase.dir is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Cache < 0 {
		return fmt.Errorf("server.cache must be non-negative")
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("export.workers must be at least 1")
	}
	if !validCompressions[c.Export.Compression] {
		return fmt.Errorf("invalid export.compression %q: must be xz or gzip", c.Export.Compression)
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}
