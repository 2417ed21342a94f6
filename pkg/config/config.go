// Package config loads Ember interpreter settings from YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/ember/pkg/diagnostics"
)

const (
	// ProjectFile is looked up in the working directory.
	ProjectFile = ".ember.yaml"
	// DefaultPrompt is the REPL prompt used when none is configured.
	DefaultPrompt = ">>> "
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Config holds interpreter settings. Zero numeric limits fall back to the
// evaluator's defaults.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	Pretty       bool   `yaml:"pretty"`
	Prompt       string `yaml:"prompt"`
	MaxCallDepth int    `yaml:"max_call_depth"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	ShowAST      bool   `yaml:"show_ast"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `yaml:"-"`
}

// Error reports a config file that exists but cannot be used.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Diagnostic renders the error as an E_CONFIG diagnostic.
func (e *Error) Diagnostic() diagnostics.Diagnostic {
	return diagnostics.MakeDiag(diagnostics.EConfig, e.Error(), nil, "run 'ember help config' for the supported keys")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{LogLevel: "info", Prompt: DefaultPrompt}
}

// UserPath returns ~/.ember/config.yaml, or "" when there is no home directory.
func UserPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ember", "config.yaml")
}

// Load reads settings with the precedence project (.ember.yaml in
// projectDir) → user (~/.ember/config.yaml) → defaults. Missing files are
// skipped; a file that exists but is malformed is an error.
func Load(projectDir string) (*Config, error) {
	paths := []string{filepath.Join(projectDir, ProjectFile)}
	if user := UserPath(); user != "" {
		paths = append(paths, user)
	}
	for _, path := range paths {
		cfg, err := LoadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return Default(), nil
}

// LoadFile reads one YAML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &Error{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.Source = path
	return cfg, nil
}

// Parse decodes YAML settings on top of the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if !logLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if c.MaxCallDepth < 0 {
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	}
	if c.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must not be negative, got %d", c.TimeoutMs)
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	return nil
}

// Timeout returns the evaluation time limit, zero meaning none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
