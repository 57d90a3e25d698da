// Package commands contains all CLI commands for prgate.
//
// Each command is defined in its own file and registered in init().
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JNZader/prgate/internal/config"
	"github.com/JNZader/prgate/internal/logger"
	"github.com/JNZader/prgate/internal/metrics"
	"github.com/JNZader/prgate/internal/profiler"
)

// ErrGateFailed is returned by check when the decision reaches fail_on.
// It has already been reported, so Execute does not print it.
var ErrGateFailed = errors.New("quality gate failed")

var (
	// cfgFile holds the path to the config file (from --config flag)
	cfgFile string

	// envFiles are loaded before the configuration
	envFiles []string

	verbose bool
	quiet   bool

	profileCfg profiler.Config
	prof       *profiler.Profiler
)

var rootCmd = &cobra.Command{
	Use:   "prgate",
	Short: "Quality gate for pull requests",
	Long: `prgate evaluates a pull request against a set of quality rules and
decides whether it passes, passes with warnings, or fails.

Examples:
  # Check the current branch against main
  prgate check

  # Check a GitHub pull request and comment the report on it
  prgate check --source github --repo octo/app --pr 42 --comment

  # List the rules of the strict preset
  prgate rules --preset strict`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		metrics.Init()
		if profileCfg.Enabled() && prof == nil {
			p, err := profiler.New(profileCfg)
			if err != nil {
				return err
			}
			prof = p
		}
		return nil
	},
}

// Execute runs the root command and prints operational errors.
func Execute() error {
	err := rootCmd.Execute()
	stopProfiler()
	if err != nil && !errors.Is(err, ErrGateFailed) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", logger.MaskSecrets(err.Error()))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .prgate.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")

	rootCmd.PersistentFlags().StringVar(&profileCfg.CPUProfile, "cpuprofile", "", "write a CPU profile to file")
	rootCmd.PersistentFlags().StringVar(&profileCfg.MemProfile, "memprofile", "", "write a heap profile to file")
	_ = rootCmd.PersistentFlags().MarkHidden("cpuprofile")
	_ = rootCmd.PersistentFlags().MarkHidden("memprofile")
}

func stopProfiler() {
	if prof == nil {
		return
	}
	logger.Debug("profiled %s, %s", prof.Duration(), profiler.Stats())
	if err := prof.Stop(); err != nil {
		logger.Warn("Failed to write profiles: %v", err)
	}
	prof = nil
}

// newLoader creates a config loader honouring --config.
func newLoader() *config.Loader {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	return loader
}

// setupLogging applies log.level, then --verbose and --quiet.
func setupLogging(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logger.LevelInfo
	}
	switch {
	case quiet:
		level = logger.LevelError
	case verbose:
		level = logger.LevelDebug
	}
	logger.SetLevel(level)
}
