package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultDirName         = ".apiprompt"
	defaultConfigRelPath   = defaultDirName + "/config.yaml"
	defaultDatabaseRelPath = defaultDirName + "/apiprompt.db"
)

type StoreConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	APITokens      []string      `yaml:"api_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type PromptConfig struct {
	DefaultPersona string `yaml:"default_persona"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type AssistantConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Output    OutputConfig    `yaml:"output"`
	Assistant AssistantConfig `yaml:"assistant"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultDir returns ~/.apiprompt.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultDirName), nil
}

// Load loads YAML config, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configPath = filepath.Join(home, defaultConfigRelPath)
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store.Path = filepath.Join(home, defaultDatabaseRelPath)
		} else {
			c.Store.Path = "apiprompt.db"
		}
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Prompt.DefaultPersona == "" {
		c.Prompt.DefaultPersona = "senior"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Assistant.BaseURL == "" {
		c.Assistant.BaseURL = "https://api.openai.com/v1"
	}
	if c.Assistant.Model == "" {
		c.Assistant.Model = "gpt-4o"
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = 4096
	}
	if c.Assistant.MaxRetries == 0 {
		c.Assistant.MaxRetries = 3
	}
	if c.Assistant.Timeout == 0 {
		c.Assistant.Timeout = 120 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path cannot be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 {
		return errors.New("server.request_timeout cannot be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json: %q", c.Log.Format)
	}
	return nil
}

// ValidateExport enforces export-specific requirements.
func (c *Config) ValidateExport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir cannot be empty")
	}
	if err := ensureWritableDir(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir not writable: %w", err)
	}
	return nil
}

// ValidateAssistant enforces the settings needed to send prompts.
func (c *Config) ValidateAssistant() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Assistant.BaseURL) == "" {
		return errors.New("assistant.base_url cannot be empty")
	}
	if strings.TrimSpace(c.Assistant.Model) == "" {
		return errors.New("assistant.model cannot be empty")
	}
	if c.Assistant.MaxRetries < 0 {
		return errors.New("assistant.max_retries cannot be negative")
	}
	return nil
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.Store.Path, "APIPROMPT_STORE_PATH")
	setString(&c.Server.Host, "APIPROMPT_SERVER_HOST")
	setInt(&c.Server.Port, "APIPROMPT_SERVER_PORT")
	setList(&c.Server.AllowedOrigins, "APIPROMPT_SERVER_ALLOWED_ORIGINS")
	setList(&c.Server.APITokens, "APIPROMPT_SERVER_API_TOKENS")
	setDuration(&c.Server.RequestTimeout, "APIPROMPT_SERVER_REQUEST_TIMEOUT")
	setString(&c.Prompt.DefaultPersona, "APIPROMPT_PROMPT_DEFAULT_PERSONA")
	setString(&c.Output.Dir, "APIPROMPT_OUTPUT_DIR")
	setString(&c.Assistant.BaseURL, "APIPROMPT_ASSISTANT_BASE_URL")
	setString(&c.Assistant.APIKey, "APIPROMPT_ASSISTANT_API_KEY")
	setString(&c.Assistant.Model, "APIPROMPT_ASSISTANT_MODEL")
	setString(&c.Log.Level, "APIPROMPT_LOG_LEVEL")
	setString(&c.Log.Format, "APIPROMPT_LOG_FORMAT")
	setString(&c.Log.File, "APIPROMPT_LOG_FILE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList reads a comma-separated value.
func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
