// Package config handles ORE configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from -config) is checked first by FindConfig. Then:
// ./ore.yaml, ~/.config/ore/ore.yaml, /etc/ore/ore.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"ore.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ore", "ore.yaml"))
	}

	paths = append(paths, "/etc/ore/ore.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise the search paths are tried in order; no file found
// returns "" with no error, since ORE runs fine on defaults.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Config holds all ORE configuration.
type Config struct {
	Models    ModelsConfig  `yaml:"models"`
	DeepSeek  DeepSeekConfig `yaml:"deepseek"`
	Session   SessionConfig `yaml:"session"`
	ShellTool ShellConfig   `yaml:"shell_tool"`
	Fetch     FetchConfig   `yaml:"fetch"`
	Router    RouterConfig  `yaml:"router"`

	DataDir   string   `yaml:"data_dir"`
	SkillsDir string   `yaml:"skills_dir"`
	Workspace string   `yaml:"workspace"`
	Persona   string   `yaml:"persona"`
	Grants    []string `yaml:"grants"`
	LogLevel  string   `yaml:"log_level"`
}

// ModelsConfig defines the reasoning backend selection.
type ModelsConfig struct {
	// Backend is "ollama" (default) or "deepseek".
	Backend string `yaml:"backend"`
	// OllamaURL is the Ollama server (default http://localhost:11434).
	OllamaURL string `yaml:"ollama_url"`
	// Default is the model name; empty lets the Ollama backend pick
	// from what is installed.
	Default string `yaml:"default"`
}

// DeepSeekConfig defines DeepSeek API settings. An empty APIKey falls
// back to the DEEPSEEK_API_KEY environment variable.
type DeepSeekConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SessionConfig selects the persistence backend.
type SessionConfig struct {
	// Backend is "json" (one file per session, default) or "sqlite".
	Backend string `yaml:"backend"`
}

// ShellConfig defines the shell tool's policy screen. The shell
// permission still has to be granted for the tool to run at all.
type ShellConfig struct {
	WorkingDir        string   `yaml:"working_dir"`
	DeniedPatterns    []string `yaml:"denied_patterns"`
	DefaultTimeoutSec int      `yaml:"default_timeout_sec"`
}

// FetchConfig limits the fetch tool.
type FetchConfig struct {
	TimeoutSec int   `yaml:"timeout_sec"`
	MaxBytes   int64 `yaml:"max_bytes"`
}

// RouterConfig tunes intent routing.
type RouterConfig struct {
	// Disabled skips routing entirely; every turn goes straight to the
	// reasoner.
	Disabled bool `yaml:"disabled"`
	// Threshold is the minimum confidence to select a target. Zero
	// means the default (0.5).
	Threshold float64 `yaml:"threshold"`
}

// defaultPersona is injected as the system prompt when none is
// configured.
const defaultPersona = "You are Aya, the central AI assistant of the ORE. " +
	"You are intuitive, transparent, and focused on structured reasoning."

// Default returns the stock configuration.
func Default() *Config {
	dataDir := ".ore"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".ore")
	}
	return &Config{
		Models:   ModelsConfig{Backend: "ollama", OllamaURL: "http://localhost:11434"},
		Session:  SessionConfig{Backend: "json"},
		DataDir:  dataDir,
		Persona:  defaultPersona,
		LogLevel: "info",
	}
}

// Load reads the config file at path, layered over the defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Models.Backend {
	case "", "ollama", "deepseek":
	default:
		return fmt.Errorf("unknown models.backend %q (valid: ollama, deepseek)", c.Models.Backend)
	}
	switch c.Session.Backend {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("unknown session.backend %q (valid: json, sqlite)", c.Session.Backend)
	}
	if c.Router.Threshold < 0 || c.Router.Threshold > 1 {
		return fmt.Errorf("router.threshold %v out of [0, 1]", c.Router.Threshold)
	}
	return nil
}

// SessionsDir returns where the JSON session store lives.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// SessionsDBPath returns the SQLite session store database path.
func (c *Config) SessionsDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// SkillsRoot returns the configured skills directory, defaulting to
// <data_dir>/skills.
func (c *Config) SkillsRoot() string {
	if c.SkillsDir != "" {
		return c.SkillsDir
	}
	return filepath.Join(c.DataDir, "skills")
}

// FetchTimeout returns the fetch tool timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// ShellTimeout returns the shell tool default timeout as a duration.
func (c *Config) ShellTimeout() time.Duration {
	return time.Duration(c.ShellTool.DefaultTimeoutSec) * time.Second
}
