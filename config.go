package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Config Types ---

type Config struct {
	ListenAddr    string                `yaml:"listenAddr"`
	APIToken      string                `yaml:"apiToken"`
	DBPath        string                `yaml:"dbPath"`
	Classifier    ClassifierConfig      `yaml:"classifier"`
	Dispatch      DispatchConfig        `yaml:"dispatch"`
	Reminders     ReminderConfig        `yaml:"reminders"`
	Notifications []NotificationChannel `yaml:"notifications"`
	Logging       LoggingConfig         `yaml:"logging"`

	baseDir string `yaml:"-"`
}

// ClassifierConfig selects the intent classification model.
type ClassifierConfig struct {
	Model     string `yaml:"model"`     // default "gemini-2.0-flash"
	APIKeyEnv string `yaml:"apiKeyEnv"` // env var holding the key, default "GEMINI_API_KEY"
	ChatModel string `yaml:"chatModel"` // model for chat/content handlers, default = Model
}

func (c ClassifierConfig) modelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	return "gemini-2.0-flash"
}

func (c ClassifierConfig) chatModelOrDefault() string {
	if c.ChatModel != "" {
		return c.ChatModel
	}
	return c.modelOrDefault()
}

func (c ClassifierConfig) apiKey() string {
	env := c.APIKeyEnv
	if env == "" {
		env = "GEMINI_API_KEY"
	}
	return os.Getenv(env)
}

// DispatchConfig bounds task fan-out.
type DispatchConfig struct {
	MaxConcurrent int    `yaml:"maxConcurrent"` // default 4
	TaskTimeout   string `yaml:"taskTimeout"`   // default "60s"
}

func (d DispatchConfig) maxConcurrentOrDefault() int {
	if d.MaxConcurrent > 0 {
		return d.MaxConcurrent
	}
	return 4
}

func (d DispatchConfig) taskTimeoutOrDefault() time.Duration {
	if d.TaskTimeout != "" {
		if v, err := time.ParseDuration(d.TaskTimeout); err == nil && v > 0 {
			return v
		}
	}
	return 60 * time.Second
}

// ReminderConfig configures the reminder engine.
type ReminderConfig struct {
	Enabled       *bool  `yaml:"enabled"`       // default true
	CheckInterval string `yaml:"checkInterval"` // default "5s"
	MissedGrace   string `yaml:"missedGrace"`   // default "30m"
}

func (rc ReminderConfig) enabledOrDefault() bool {
	if rc.Enabled != nil {
		return *rc.Enabled
	}
	return true
}

func (rc ReminderConfig) checkIntervalOrDefault() time.Duration {
	if rc.CheckInterval != "" {
		if d, err := time.ParseDuration(rc.CheckInterval); err == nil && d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

func (rc ReminderConfig) missedGraceOrDefault() time.Duration {
	if rc.MissedGrace != "" {
		if d, err := time.ParseDuration(rc.MissedGrace); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Minute
}

// NotificationChannel describes one notification sink.
type NotificationChannel struct {
	Type       string `yaml:"type"` // "log", "webhook"
	WebhookURL string `yaml:"webhookUrl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// --- Loading ---

// defaultBaseDir is where config and data live unless overridden.
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".vist")
}

// loadConfig reads the YAML config file. A missing file is not an error:
// defaults cover every field so `vist serve` works out of the box.
func loadConfig(path string) (*Config, error) {
	baseDir := defaultBaseDir()
	if path == "" {
		path = filepath.Join(baseDir, "config.yaml")
	} else {
		baseDir = filepath.Dir(path)
	}

	cfg := &Config{baseDir: baseDir}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.baseDir = baseDir
	return cfg, nil
}

func (c *Config) listenAddrOrDefault() string {
	if c.ListenAddr != "" {
		return c.ListenAddr
	}
	return "127.0.0.1:5000"
}

func (c *Config) dbPathOrDefault() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.baseDir, "vist.db")
}
