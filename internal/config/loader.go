package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName(".prgate")
	v.SetConfigType("yaml")

	// Add search paths in order of priority
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath("/etc/prgate")

	// PRGATE_SOURCE_TOKEN -> source.token
	v.SetEnvPrefix("PRGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, getenv: os.Getenv}
}

// SetConfigFile sets a specific config file to use.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
	l.v.SetConfigFile(path)
}

// Load loads the configuration from all sources.
// Priority (highest to lowest):
// 1. Flags bound through GetViper().BindPFlag
// 2. Environment variables (PRGATE_*)
// 3. Config file (explicit or from the search paths)
// 4. Default values
//
// Host tokens and CI variables fill whatever is still empty afterwards.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setDefaults(cfg)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	l.applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// keys the config file does not mention.
func (l *Loader) setDefaults(cfg *Config) {
	l.v.SetDefault("source.kind", cfg.Source.Kind)
	l.v.SetDefault("source.repo_path", cfg.Source.RepoPath)
	l.v.SetDefault("source.base_ref", cfg.Source.BaseRef)
	l.v.SetDefault("source.owner", cfg.Source.Owner)
	l.v.SetDefault("source.repo", cfg.Source.Repo)
	l.v.SetDefault("source.number", cfg.Source.Number)
	l.v.SetDefault("source.token", cfg.Source.Token)
	l.v.SetDefault("source.base_url", cfg.Source.BaseURL)
	l.v.SetDefault("source.graphql_url", cfg.Source.GraphQLURL)
	l.v.SetDefault("source.description_file", cfg.Source.DescriptionFile)

	l.v.SetDefault("thresholds.size_info", cfg.Thresholds.SizeInfo)
	l.v.SetDefault("thresholds.size_warn", cfg.Thresholds.SizeWarn)
	l.v.SetDefault("thresholds.size_fail", cfg.Thresholds.SizeFail)
	l.v.SetDefault("thresholds.min_description", cfg.Thresholds.MinDescription)
	l.v.SetDefault("thresholds.secret_min_length", cfg.Thresholds.SecretMinLength)

	l.v.SetDefault("rules.preset", cfg.Rules.Preset)
	l.v.SetDefault("rules.rules_dir", cfg.Rules.RulesDir)
	l.v.SetDefault("rules.enabled", cfg.Rules.Enabled)
	l.v.SetDefault("rules.disabled", cfg.Rules.Disabled)
	l.v.SetDefault("rules.ignore_patterns", cfg.Rules.IgnorePatterns)
	l.v.SetDefault("rules.utility_libraries", cfg.Rules.UtilityLibraries)
	l.v.SetDefault("rules.inherit_from", cfg.Rules.InheritFrom)
	l.v.SetDefault("rules.cache_dir", cfg.Rules.CacheDir)
	l.v.SetDefault("rules.cache_ttl", cfg.Rules.CacheTTL)

	l.v.SetDefault("fetch.concurrency", cfg.Fetch.Concurrency)
	l.v.SetDefault("fetch.timeout", cfg.Fetch.Timeout)

	l.v.SetDefault("output.format", cfg.Output.Format)
	l.v.SetDefault("output.file", cfg.Output.File)
	l.v.SetDefault("output.comment", cfg.Output.Comment)
	l.v.SetDefault("output.fail_on", cfg.Output.FailOn)
	l.v.SetDefault("output.metrics_file", cfg.Output.MetricsFile)

	l.v.SetDefault("log.level", cfg.Log.Level)
}

var githubPullRef = regexp.MustCompile(`^refs/pull/(\d+)/`)

// applyEnvironment fills the source from well-known host variables: the
// token from GITHUB_TOKEN or GITLAB_TOKEN, and the repository and number
// from GitHub Actions or GitLab CI.
func (l *Loader) applyEnvironment(cfg *Config) {
	src := &cfg.Source
	switch src.Kind {
	case SourceGitHub:
		if src.Token == "" {
			src.Token = l.getenv("GITHUB_TOKEN")
		}
		if src.FullRepo() == "" {
			src.Repo = l.getenv("GITHUB_REPOSITORY")
		}
		if src.Number == 0 {
			if m := githubPullRef.FindStringSubmatch(l.getenv("GITHUB_REF")); m != nil {
				src.Number, _ = strconv.Atoi(m[1])
			}
		}
		if src.BaseURL == "" {
			if api := l.getenv("GITHUB_API_URL"); api != "" && api != "https://api.github.com" {
				src.BaseURL = api
			}
		}
	case SourceGitLab:
		if src.Token == "" {
			src.Token = l.getenv("GITLAB_TOKEN")
		}
		if src.FullRepo() == "" {
			src.Repo = l.getenv("CI_PROJECT_PATH")
		}
		if src.Number == 0 {
			src.Number, _ = strconv.Atoi(l.getenv("CI_MERGE_REQUEST_IID"))
		}
		if src.BaseURL == "" {
			src.BaseURL = l.getenv("CI_SERVER_URL")
		}
	}
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDotEnv loads variables from the given .env files without overriding
// the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}
