package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	OutputDir    string   `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	RunnerBin    string   `json:"runner_bin" yaml:"runner_bin" toml:"runner_bin"`
	ForceCPU     bool     `json:"force_cpu" yaml:"force_cpu" toml:"force_cpu"`
	MaxTextChars int      `json:"max_text_chars" yaml:"max_text_chars" toml:"max_text_chars"`
	// DefaultModelSize is applied to requests that omit model_size
	// ("1.7B" or "0.6B").
	DefaultModelSize string `json:"default_model_size" yaml:"default_model_size" toml:"default_model_size"`
	LogLevel     string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
