// Package config handles all configuration management for prgate.
//
// Configuration is loaded from multiple sources in order of precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (PRGATE_*)
// 3. Configuration file (.prgate.yaml)
// 4. Default values (lowest priority)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/rules"
)

// Source kinds.
const (
	SourceLocal  = "local"
	SourceGitHub = "github"
	SourceGitLab = "gitlab"
)

// Config is the main configuration structure for prgate.
type Config struct {
	// Source selects where the pull request comes from
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Thresholds tunes the built-in rules
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`

	// Rules configures the rule system
	Rules RulesConfig `mapstructure:"rules" yaml:"rules"`

	// Fetch configures diff resolution
	Fetch FetchConfig `mapstructure:"fetch" yaml:"fetch"`

	// Output configures reporting and the exit policy
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// SourceConfig configures the pull request source.
type SourceConfig struct {
	// Kind is "local", "github" or "gitlab"
	Kind string `mapstructure:"kind" yaml:"kind"`

	// RepoPath is the local repository (kind=local)
	RepoPath string `mapstructure:"repo_path" yaml:"repo_path"`

	// BaseRef is the branch the local change set is compared against
	BaseRef string `mapstructure:"base_ref" yaml:"base_ref"`

	// Owner and Repo identify the hosted repository. Repo may also hold
	// "owner/name" or a GitLab project path with Owner left empty.
	Owner string `mapstructure:"owner" yaml:"owner"`
	Repo  string `mapstructure:"repo" yaml:"repo"`

	// Number is the pull or merge request number
	Number int `mapstructure:"number" yaml:"number"`

	// Token authenticates against the host.
	// This should be set via environment variable, not config file
	Token string `mapstructure:"token" yaml:"token"`

	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	GraphQLURL string `mapstructure:"graphql_url" yaml:"graphql_url"`

	// DescriptionFile replaces the description for local runs
	DescriptionFile string `mapstructure:"description_file" yaml:"description_file"`
}

// FullRepo returns "owner/repo", or Repo alone when Owner is empty.
func (s SourceConfig) FullRepo() string {
	if s.Owner == "" {
		return s.Repo
	}
	return s.Owner + "/" + s.Repo
}

// ThresholdsConfig holds the limits of the built-in rules.
type ThresholdsConfig struct {
	SizeInfo        int `mapstructure:"size_info" yaml:"size_info"`
	SizeWarn        int `mapstructure:"size_warn" yaml:"size_warn"`
	SizeFail        int `mapstructure:"size_fail" yaml:"size_fail"`
	MinDescription  int `mapstructure:"min_description" yaml:"min_description"`
	SecretMinLength int `mapstructure:"secret_min_length" yaml:"secret_min_length"`
}

// RulesConfig configures the rule system.
type RulesConfig struct {
	// Preset is the rule preset to use: "standard", "strict", "minimal"
	Preset string `mapstructure:"preset" yaml:"preset"`

	// RulesDir is the directory containing custom rules
	RulesDir string `mapstructure:"rules_dir" yaml:"rules_dir"`

	// Enabled is the list of enabled rule IDs or globs (empty = all)
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`

	// Disabled is the list of disabled rule IDs or globs
	Disabled []string `mapstructure:"disabled" yaml:"disabled"`

	// IgnorePatterns are gitignore-style patterns removed from the change set
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`

	// UtilityLibraries are the modules IMP-001 refuses whole imports of
	UtilityLibraries []string `mapstructure:"utility_libraries" yaml:"utility_libraries"`

	// InheritFrom lists shared rule files (HTTPS URLs or paths)
	InheritFrom []string `mapstructure:"inherit_from" yaml:"inherit_from"`

	// CacheDir holds inherited rule files fetched over HTTPS
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// CacheTTL is how long a fetched rule file is reused (0 disables caching)
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// FetchConfig configures per-file diff fetching.
type FetchConfig struct {
	// Concurrency is the number of parallel fetches
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// Timeout bounds a single fetch (0 = no limit)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// OutputConfig configures output formatting.
type OutputConfig struct {
	// Format is the output format: "markdown", "json", "sarif"
	Format string `mapstructure:"format" yaml:"format"`

	// File is the output file path (empty = stdout)
	File string `mapstructure:"file" yaml:"file"`

	// Comment publishes the Markdown report on the pull request
	Comment bool `mapstructure:"comment" yaml:"comment"`

	// FailOn is the lowest decision that fails the gate: "warn" or "fail"
	FailOn string `mapstructure:"fail_on" yaml:"fail_on"`

	// MetricsFile receives gate metrics (.prom or .json)
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error"
	Level string `mapstructure:"level" yaml:"level"`
}

// Settings converts thresholds and rule options into rule settings.
func (c *Config) Settings() rules.Settings {
	s := rules.DefaultSettings()
	s.SizeInfo = c.Thresholds.SizeInfo
	s.SizeWarn = c.Thresholds.SizeWarn
	s.SizeFail = c.Thresholds.SizeFail
	s.MinDescription = c.Thresholds.MinDescription
	s.SecretMinLength = c.Thresholds.SecretMinLength
	if len(c.Rules.UtilityLibraries) > 0 {
		s.UtilityLibraries = append([]string(nil), c.Rules.UtilityLibraries...)
	}
	return s
}

// FailOnSeverity returns output.fail_on as a severity.
func (c *Config) FailOnSeverity() (rules.Severity, error) {
	return rules.ParseSeverity(c.Output.FailOn)
}

// Masked returns a copy safe to print.
func (c *Config) Masked() *Config {
	out := *c
	if out.Source.Token != "" {
		out.Source.Token = maskToken(out.Source.Token)
	}
	return &out
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceLocal, SourceGitHub, SourceGitLab:
	default:
		return &ValidationError{Field: "source.kind", Message: "invalid source, must be one of: local, github, gitlab"}
	}

	t := c.Thresholds
	if t.SizeInfo < 0 || t.SizeInfo > t.SizeWarn || t.SizeWarn > t.SizeFail {
		return &ValidationError{Field: "thresholds", Message: fmt.Sprintf(
			"size thresholds must satisfy 0 <= size_info <= size_warn <= size_fail, got %d/%d/%d",
			t.SizeInfo, t.SizeWarn, t.SizeFail)}
	}
	if t.MinDescription < 0 {
		return &ValidationError{Field: "thresholds.min_description", Message: "must not be negative"}
	}
	if t.SecretMinLength < 1 {
		return &ValidationError{Field: "thresholds.secret_min_length", Message: "must be positive"}
	}

	if c.Rules.Preset != "" {
		if _, err := rules.LookupPreset(c.Rules.Preset); err != nil {
			return &ValidationError{Field: "rules.preset", Message: fmt.Sprintf(
				"unknown preset %q, must be one of: %s", c.Rules.Preset, strings.Join(rules.PresetNames(), ", "))}
		}
	}
	if err := rules.ValidateInheritConfig(rules.InheritConfig{InheritFrom: c.Rules.InheritFrom}); err != nil {
		return &ValidationError{Field: "rules.inherit_from", Message: err.Error()}
	}

	if c.Fetch.Concurrency < 1 {
		return &ValidationError{Field: "fetch.concurrency", Message: "must be at least 1"}
	}
	if c.Rules.CacheTTL < 0 {
		return &ValidationError{Field: "rules.cache_ttl", Message: "must not be negative"}
	}
	if c.Fetch.Timeout < 0 {
		return &ValidationError{Field: "fetch.timeout", Message: "must not be negative"}
	}

	validFormats := map[string]bool{"markdown": true, "md": true, "json": true, "sarif": true}
	if !validFormats[c.Output.Format] {
		return &ValidationError{Field: "output.format", Message: "invalid format, must be one of: markdown, json, sarif"}
	}
	if sev, err := c.FailOnSeverity(); err != nil || sev == rules.SeverityInfo {
		return &ValidationError{Field: "output.fail_on", Message: "invalid threshold, must be one of: warn, fail"}
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}

	return nil
}

// ValidateSource checks the fields the configured source needs to fetch a
// pull request.
func (c *Config) ValidateSource() error {
	switch c.Source.Kind {
	case SourceLocal:
		if c.Source.BaseRef == "" {
			return &ValidationError{Field: "source.base_ref", Message: "base ref is required for local sources"}
		}
	case SourceGitHub, SourceGitLab:
		if c.Source.FullRepo() == "" {
			return &ValidationError{Field: "source.repo", Message: "repository is required for " + c.Source.Kind}
		}
		if c.Source.Number <= 0 {
			return &ValidationError{Field: "source.number", Message: "pull request number is required for " + c.Source.Kind}
		}
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
