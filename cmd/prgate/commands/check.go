package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JNZader/prgate/internal/cache"
	"github.com/JNZader/prgate/internal/config"
	"github.com/JNZader/prgate/internal/gate"
	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/metrics"
	"github.com/JNZader/prgate/internal/pr"
	"github.com/JNZader/prgate/internal/profiler"
	"github.com/JNZader/prgate/internal/provider"
	"github.com/JNZader/prgate/internal/report"
	"github.com/JNZader/prgate/internal/rules"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a pull request against the quality rules",
	Long: `Evaluate a pull request and report findings with a pass, warn or fail
decision. The command exits with status 1 when the decision reaches
--fail-on, or when the pull request cannot be read.

Examples:
  # Current branch against main
  prgate check

  # Current branch against develop, description from a file
  prgate check --base develop --description-file PR.md

  # GitHub pull request, SARIF report
  prgate check --source github --repo octo/app --pr 42 -o report.sarif

  # GitLab merge request inside a pipeline, comment the report
  prgate check --source gitlab --comment`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

// checkFlags maps flags to configuration keys.
var checkFlags = map[string]string{
	"source":           "source.kind",
	"base":             "source.base_ref",
	"repo":             "source.repo",
	"pr":               "source.number",
	"description-file": "source.description_file",
	"preset":           "rules.preset",
	"format":           "output.format",
	"output":           "output.file",
	"comment":          "output.comment",
	"fail-on":          "output.fail_on",
	"metrics-file":     "output.metrics_file",
	"concurrency":      "fetch.concurrency",
}

func init() {
	rootCmd.AddCommand(checkCmd)

	f := checkCmd.Flags()
	f.String("source", "", "pull request source (local, github, gitlab)")
	f.String("base", "", "base ref for local sources")
	f.String("repo", "", "repository as owner/name or GitLab project path")
	f.Int("pr", 0, "pull or merge request number")
	f.String("description-file", "", "file holding the description (local sources)")
	f.String("preset", "", "rule preset (standard, strict, minimal)")
	f.StringP("format", "f", "", "output format (markdown, json, sarif)")
	f.StringP("output", "o", "", "write report to file")
	f.Bool("comment", false, "publish the report as a pull request comment")
	f.String("fail-on", "", "lowest decision that fails the gate (warn, fail)")
	f.String("metrics-file", "", "write gate metrics to file (.prom or .json)")
	f.Int("concurrency", 0, "parallel diff fetches")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, mapping map[string]string) error {
	for name, key := range mapping {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	loader := newLoader()
	if err := bindFlags(loader.GetViper(), cmd.Flags(), checkFlags); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file: %s", used)
	}

	if err := cfg.ValidateSource(); err != nil {
		return err
	}
	if !cmd.Flags().Changed("format") && cfg.Output.Format == "markdown" {
		if detected := DetectFormatFromPath(cfg.Output.File); detected != "" {
			cfg.Output.Format = detected
		}
	}
	reporter, err := report.NewReporter(cfg.Output.Format)
	if err != nil {
		return err
	}
	if sarif, ok := reporter.(*report.SARIFReporter); ok {
		sarif.Version = Version
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	active, preset, err := loadRules(ctx, cfg)
	if err != nil {
		return err
	}
	checkers, err := rules.Bind(active, cfg.Settings())
	if err != nil {
		return fmt.Errorf("binding rules: %w", err)
	}
	failOn, err := effectiveFailOn(cfg, preset)
	if err != nil {
		return err
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	filter, err := pr.NewPathFilter(cfg.Rules.IgnorePatterns)
	if err != nil {
		return err
	}

	collector := metrics.Current()
	g := gate.New(src, checkers, gate.ResolveOptions{
		Concurrency: cfg.Fetch.Concurrency,
		Timeout:     cfg.Fetch.Timeout,
		Filter:      filter,
	})
	ig := gate.NewInstrumentedGate(g, collector)
	result, runErr := ig.Run(ctx)
	if st := ig.Stats(); st.Fetches > 0 {
		logger.Debug("Diff fetches: %d (%.1f%% failed)", st.Fetches, st.FetchErrorRate())
	}

	if cfg.Output.MetricsFile != "" {
		profiler.Stats().Record(collector)
		if err := collector.WriteFile(cfg.Output.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics: %v", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	content, err := reporter.Generate(result)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := WriteOutput(content, cfg.Output.File, cmd.OutOrStdout()); err != nil {
		return err
	}

	if cfg.Output.Comment {
		if err := publish(ctx, src, result); err != nil {
			return err
		}
	}

	decision := result.Decision()
	if decision.Blocks(failOn) {
		logger.Error("Quality gate failed: decision %s reaches fail_on %s", decision, failOn)
		return ErrGateFailed
	}
	logger.Info("Quality gate passed with decision %s", decision)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadRules resolves the rule list: embedded, inherited and custom rules,
// narrowed by the preset and the enable/disable lists.
func loadRules(ctx context.Context, cfg *config.Config) ([]rules.Rule, *rules.Preset, error) {
	loader := rules.NewHierarchicalLoader(cfg.Rules.RulesDir)
	if cfg.Rules.CacheTTL > 0 && cfg.Rules.CacheDir != "" && len(cfg.Rules.InheritFrom) > 0 {
		fc, err := cache.NewFileCache(cfg.Rules.CacheDir, cfg.Rules.CacheTTL)
		if err != nil {
			logger.Default().Warn("rule cache disabled: %v", err)
		} else {
			loader.WithDiskCache(fc)
		}
	}
	all, err := loader.LoadWithInheritance(ctx, rules.InheritConfig{InheritFrom: cfg.Rules.InheritFrom})
	if err != nil {
		return nil, nil, fmt.Errorf("loading rules: %w", err)
	}

	preset, err := rules.LookupPreset(cfg.Rules.Preset)
	if err != nil {
		return nil, nil, err
	}
	active := rules.ApplyPreset(all, preset)
	active = rules.Select(active, rules.Selection{Enable: cfg.Rules.Enabled, Disable: cfg.Rules.Disabled})
	return active, preset, nil
}

// effectiveFailOn is the stricter of output.fail_on and the preset's.
func effectiveFailOn(cfg *config.Config, preset *rules.Preset) (rules.Severity, error) {
	failOn, err := cfg.FailOnSeverity()
	if err != nil {
		return "", err
	}
	if preset != nil && preset.FailOn.Valid() && preset.FailOn.Rank() < failOn.Rank() {
		failOn = preset.FailOn
	}
	return failOn, nil
}

func publish(ctx context.Context, src pr.Source, result *gate.Report) error {
	publisher, ok := src.(provider.Publisher)
	if !ok {
		logger.Warn("Source %s cannot publish comments, skipping", src.Name())
		return nil
	}
	body, err := (&report.MarkdownReporter{}).Generate(result)
	if err != nil {
		return fmt.Errorf("rendering comment: %w", err)
	}
	if err := publisher.PostComment(ctx, body); err != nil {
		return fmt.Errorf("publishing comment: %w", err)
	}
	return nil
}
