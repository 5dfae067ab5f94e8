// Package config handles reading and writing the bankctl YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file bankctl looks for in the working directory.
const DefaultPath = "bankctl.yaml"

// Config is the top-level structure for bankctl.yaml.
type Config struct {
	Database string        `yaml:"database"`
	LLM      LLMConfig     `yaml:"llm"`
	Chat     ChatConfig    `yaml:"chat"`
	Session  SessionConfig `yaml:"session"`
}

// LLMConfig selects the OpenAI-compatible provider.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Referer        string `yaml:"referer,omitempty"`
	Title          string `yaml:"title,omitempty"`
}

// ChatConfig controls the conversation pipeline.
type ChatConfig struct {
	HistoryLimit       int    `yaml:"history_limit"`
	MaxMessageLength   int    `yaml:"max_message_length"`
	PromptTemplateFile string `yaml:"prompt_template_file,omitempty"`
}

// SessionConfig controls login sessions.
type SessionConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// DefaultConfig returns a Config populated with defaults matching the
// hosted deployment.
func DefaultConfig() *Config {
	return &Config{
		Database: "bank.db",
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openai/gpt-4o-mini",
			APIKeyEnv:      "OPENROUTER_API_KEY",
			TimeoutSeconds: 30,
		},
		Chat: ChatConfig{
			HistoryLimit:     5,
			MaxMessageLength: 1000,
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
	}
}

// ReadConfig reads the config at path on top of DefaultConfig, so omitted
// keys keep their defaults. A missing file yields the defaults.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig writes cfg to path, creating parent directories as needed.
func WriteConfig(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate rejects values the chat pipeline cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("config: database must not be empty")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("config: llm.model must not be empty")
	}
	if c.LLM.TimeoutSeconds < 0 || c.Chat.HistoryLimit < 0 || c.Chat.MaxMessageLength < 0 || c.Session.TTLHours < 0 {
		return errors.New("config: numeric settings must not be negative")
	}
	return nil
}

// APIKey resolves the provider key from the environment variable named by
// llm.api_key_env.
func (c *Config) APIKey() (string, error) {
	name := strings.TrimSpace(c.LLM.APIKeyEnv)
	if name == "" {
		return "", errors.New("config: llm.api_key_env is not set")
	}
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("config: environment variable %s is empty", name)
	}
	return key, nil
}

// PromptTemplate returns the contents of chat.prompt_template_file, or "" when
// none is configured.
func (c *Config) PromptTemplate() (string, error) {
	if c.Chat.PromptTemplateFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Chat.PromptTemplateFile)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	return string(data), nil
}

func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}
