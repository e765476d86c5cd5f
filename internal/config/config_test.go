package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	if c.Server.Port != 3000 {
		t.Fatalf("expected port 3000")
	}
	if c.Server.Host != "127.0.0.1" {
		t.Fatalf("expected default host")
	}
	if c.Server.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", c.Server.RequestTimeout)
	}
	if c.Prompt.DefaultPersona != "senior" {
		t.Fatalf("expected senior persona")
	}
	if c.Log.Level != "info" || c.Log.Format != "auto" {
		t.Fatalf("unexpected log defaults %+v", c.Log)
	}
	if filepath.Base(c.Store.Path) != "apiprompt.db" {
		t.Fatalf("unexpected store path %s", c.Store.Path)
	}
}

func TestLoadFromYAML(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.yaml")
	data := "store:\n  path: " + filepath.Join(tmp, "x.db") + "\nserver:\n  port: 8080\n  request_timeout: 5s\n  api_tokens:\n    - s3cret\nprompt:\n  default_persona: staff\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Server.RequestTimeout)
	}
	if len(cfg.Server.APITokens) != 1 || cfg.Server.APITokens[0] != "s3cret" {
		t.Fatalf("unexpected tokens %v", cfg.Server.APITokens)
	}
	if cfg.Prompt.DefaultPersona != "staff" {
		t.Fatalf("unexpected persona %s", cfg.Prompt.DefaultPersona)
	}
	if cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3000 {
		t.Fatalf("expected defaults")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("APIPROMPT_SERVER_PORT", "9090")
	t.Setenv("APIPROMPT_SERVER_API_TOKENS", "a, b,,")
	t.Setenv("APIPROMPT_SERVER_REQUEST_TIMEOUT", "2m")
	t.Setenv("APIPROMPT_LOG_LEVEL", "debug")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", cfg.Server.Port)
	}
	if len(cfg.Server.APITokens) != 2 || cfg.Server.APITokens[1] != "b" {
		t.Fatalf("unexpected tokens %v", cfg.Server.APITokens)
	}
	if cfg.Server.RequestTimeout != 2*time.Minute {
		t.Fatalf("unexpected timeout %s", cfg.Server.RequestTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected level %s", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	c.Output.Dir = t.TempDir()
	if err := c.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if err := c.ValidateExport(); err != nil {
		t.Fatalf("validate export failed: %v", err)
	}
	c.Log.Format = "xml"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected log format error")
	}
	c.Log.Format = "json"
	c.Server.Port = 70000
	if err := c.Validate(); err == nil {
		t.Fatalf("expected port error")
	}
}

func TestAssistantDefaultsAndEnv(t *testing.T) {
	t.Setenv("APIPROMPT_ASSISTANT_API_KEY", "sk-test")
	t.Setenv("APIPROMPT_ASSISTANT_MODEL", "local-model")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Assistant.APIKey != "sk-test" || cfg.Assistant.Model != "local-model" {
		t.Fatalf("unexpected assistant config %+v", cfg.Assistant)
	}
	if cfg.Assistant.BaseURL != "https://api.openai.com/v1" || cfg.Assistant.MaxRetries != 3 {
		t.Fatalf("unexpected assistant defaults %+v", cfg.Assistant)
	}
	if err := cfg.ValidateAssistant(); err != nil {
		t.Fatalf("ValidateAssistant() error = %v", err)
	}
	cfg.Assistant.MaxRetries = -1
	if err := cfg.ValidateAssistant(); err == nil {
		t.Fatal("expected negative retries to fail")
	}
}
