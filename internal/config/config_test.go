package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JNZader/prgate/internal/rules"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Source.Kind != SourceLocal {
		t.Errorf("Source.Kind = %v, want local", cfg.Source.Kind)
	}
	if cfg.Source.BaseRef != "main" {
		t.Errorf("Source.BaseRef = %v, want main", cfg.Source.BaseRef)
	}
	if cfg.Thresholds.SizeFail != 1000 || cfg.Thresholds.SizeWarn != 600 || cfg.Thresholds.SizeInfo != 300 {
		t.Errorf("size thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Thresholds.MinDescription != 50 {
		t.Errorf("MinDescription = %d, want 50", cfg.Thresholds.MinDescription)
	}
	if cfg.Fetch.Concurrency != 5 || cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Fetch = %+v", cfg.Fetch)
	}
	if cfg.Output.FailOn != "fail" {
		t.Errorf("Output.FailOn = %v, want fail", cfg.Output.FailOn)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "github source", modify: func(c *Config) { c.Source.Kind = SourceGitHub }},
		{name: "unknown source", modify: func(c *Config) { c.Source.Kind = "bitbucket" }, errMsg: "source.kind"},
		{name: "inverted sizes", modify: func(c *Config) { c.Thresholds.SizeWarn = 2000 }, errMsg: "thresholds"},
		{name: "negative info size", modify: func(c *Config) { c.Thresholds.SizeInfo = -1 }, errMsg: "thresholds"},
		{name: "zero secret length", modify: func(c *Config) { c.Thresholds.SecretMinLength = 0 }, errMsg: "secret_min_length"},
		{name: "unknown preset", modify: func(c *Config) { c.Rules.Preset = "paranoid" }, errMsg: "rules.preset"},
		{name: "http inherit", modify: func(c *Config) { c.Rules.InheritFrom = []string{"http://example.com/r.yaml"} }, errMsg: "inherit_from"},
		{name: "negative cache ttl", modify: func(c *Config) { c.Rules.CacheTTL = -time.Minute }, errMsg: "rules.cache_ttl"},
		{name: "zero concurrency", modify: func(c *Config) { c.Fetch.Concurrency = 0 }, errMsg: "fetch.concurrency"},
		{name: "bad format", modify: func(c *Config) { c.Output.Format = "html" }, errMsg: "output.format"},
		{name: "fail on warn", modify: func(c *Config) { c.Output.FailOn = "warn" }},
		{name: "fail on info", modify: func(c *Config) { c.Output.FailOn = "info" }, errMsg: "output.fail_on"},
		{name: "fail on garbage", modify: func(c *Config) { c.Output.FailOn = "never" }, errMsg: "output.fail_on"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "verbose" }, errMsg: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error mentioning %q", tt.errMsg)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error %T is not a *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not mention %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateSource(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateSource(); err != nil {
		t.Errorf("local source rejected: %v", err)
	}

	cfg.Source.Kind = SourceGitHub
	if err := cfg.ValidateSource(); err == nil || !strings.Contains(err.Error(), "source.repo") {
		t.Errorf("missing repo not reported: %v", err)
	}

	cfg.Source.Owner, cfg.Source.Repo = "octo", "app"
	if err := cfg.ValidateSource(); err == nil || !strings.Contains(err.Error(), "source.number") {
		t.Errorf("missing number not reported: %v", err)
	}

	cfg.Source.Number = 3
	if err := cfg.ValidateSource(); err != nil {
		t.Errorf("complete github source rejected: %v", err)
	}
}

func TestSourceConfig_FullRepo(t *testing.T) {
	if got := (SourceConfig{Owner: "octo", Repo: "app"}).FullRepo(); got != "octo/app" {
		t.Errorf("FullRepo() = %q", got)
	}
	if got := (SourceConfig{Repo: "group/sub/app"}).FullRepo(); got != "group/sub/app" {
		t.Errorf("FullRepo() = %q", got)
	}
}

func TestSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.SizeFail = 2000
	cfg.Rules.UtilityLibraries = []string{"moment"}

	s := cfg.Settings()
	if s.SizeFail != 2000 {
		t.Errorf("SizeFail = %d, want 2000", s.SizeFail)
	}
	if len(s.UtilityLibraries) != 1 || s.UtilityLibraries[0] != "moment" {
		t.Errorf("UtilityLibraries = %v", s.UtilityLibraries)
	}

	cfg.Rules.UtilityLibraries = nil
	if got := cfg.Settings().UtilityLibraries; len(got) != len(rules.DefaultSettings().UtilityLibraries) {
		t.Errorf("empty list should fall back to defaults, got %v", got)
	}
}

func TestMasked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Token = "ghp_abcdefghijklmnopqrstuvwxyz"

	masked := cfg.Masked()
	if strings.Contains(masked.Source.Token, "klmnop") {
		t.Errorf("token not masked: %s", masked.Source.Token)
	}
	if cfg.Source.Token != "ghp_abcdefghijklmnopqrstuvwxyz" {
		t.Error("Masked must not modify the original")
	}

	cfg.Source.Token = "short"
	if got := cfg.Masked().Source.Token; got != "****" {
		t.Errorf("short token masked as %q", got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".prgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: github
  repo: octo/app
  number: 12
thresholds:
  size_fail: 1500
rules:
  preset: strict
  disabled: [LOG-001]
  ignore_patterns: ["dist/**"]
fetch:
  timeout: 10s
output:
  format: sarif
  fail_on: warn
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Source.Kind != SourceGitHub || cfg.Source.Repo != "octo/app" || cfg.Source.Number != 12 {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Thresholds.SizeFail != 1500 {
		t.Errorf("SizeFail = %d, want 1500", cfg.Thresholds.SizeFail)
	}
	if cfg.Thresholds.SizeWarn != 600 {
		t.Errorf("unset keys should keep defaults, SizeWarn = %d", cfg.Thresholds.SizeWarn)
	}
	if cfg.Rules.Preset != "strict" || len(cfg.Rules.Disabled) != 1 || cfg.Rules.Disabled[0] != "LOG-001" {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("Fetch.Timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Output.Format != "sarif" || cfg.Output.FailOn != "warn" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "output:\n  fail_on: fail\n")
	t.Setenv("PRGATE_OUTPUT_FAIL_ON", "warn")
	t.Setenv("PRGATE_LOG_LEVEL", "debug")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Output.FailOn != "warn" {
		t.Errorf("FailOn = %q, want env value warn", cfg.Output.FailOn)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "output:\n  format: html\n")
	_, err := LoadFromFile(path)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "output.format" {
		t.Errorf("LoadFromFile() error = %v, want output.format validation error", err)
	}
}

func TestApplyEnvironment(t *testing.T) {
	env := map[string]string{
		"GITHUB_TOKEN":         "gh-token",
		"GITHUB_REPOSITORY":    "octo/app",
		"GITHUB_REF":           "refs/pull/42/merge",
		"GITHUB_API_URL":       "https://api.github.com",
		"GITLAB_TOKEN":         "gl-token",
		"CI_PROJECT_PATH":      "group/app",
		"CI_MERGE_REQUEST_IID": "7",
		"CI_SERVER_URL":        "https://gitlab.example.com",
	}
	l := NewLoader()
	l.getenv = func(k string) string { return env[k] }

	gh := DefaultConfig()
	gh.Source.Kind = SourceGitHub
	l.applyEnvironment(gh)
	if gh.Source.Token != "gh-token" || gh.Source.Repo != "octo/app" || gh.Source.Number != 42 {
		t.Errorf("github source = %+v", gh.Source)
	}
	if gh.Source.BaseURL != "" {
		t.Errorf("public API should not set a base url, got %q", gh.Source.BaseURL)
	}

	gl := DefaultConfig()
	gl.Source.Kind = SourceGitLab
	gl.Source.Number = 9
	l.applyEnvironment(gl)
	if gl.Source.Token != "gl-token" || gl.Source.Repo != "group/app" || gl.Source.BaseURL != "https://gitlab.example.com" {
		t.Errorf("gitlab source = %+v", gl.Source)
	}
	if gl.Source.Number != 9 {
		t.Errorf("explicit number overridden: %d", gl.Source.Number)
	}

	local := DefaultConfig()
	l.applyEnvironment(local)
	if local.Source.Token != "" {
		t.Error("local sources take no token from the environment")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PRGATE_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRGATE_TEST_DOTENV", "")
	os.Unsetenv("PRGATE_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("PRGATE_TEST_DOTENV"); got != "loaded" {
		t.Errorf("PRGATE_TEST_DOTENV = %q, want loaded", got)
	}
}
