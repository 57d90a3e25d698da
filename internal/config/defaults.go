package config

import (
	"time"

	"github.com/JNZader/prgate/internal/rules"
)

// DefaultConfig returns a Config that evaluates the current branch against
// main with the standard preset.
func DefaultConfig() *Config {
	settings := rules.DefaultSettings()

	return &Config{
		Source: SourceConfig{
			Kind:     SourceLocal,
			RepoPath: ".",
			BaseRef:  "main",
		},
		Thresholds: ThresholdsConfig{
			SizeInfo:        settings.SizeInfo,
			SizeWarn:        settings.SizeWarn,
			SizeFail:        settings.SizeFail,
			MinDescription:  settings.MinDescription,
			SecretMinLength: settings.SecretMinLength,
		},
		Rules: RulesConfig{
			Preset:           "standard",
			RulesDir:         ".prgate/rules",
			UtilityLibraries: settings.UtilityLibraries,
			CacheDir:         ".prgate/cache",
			CacheTTL:         time.Hour,
		},
		Fetch: FetchConfig{
			Concurrency: 5,
			Timeout:     30 * time.Second,
		},
		Output: OutputConfig{
			Format: "markdown",
			FailOn: string(rules.SeverityFail),
		},
		Log: LogConfig{Level: "info"},
	}
}
