package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JNZader/prgate/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active rules",
	Long: `List the rules check would evaluate, in evaluation order, after the
preset, custom rules and enable/disable lists are applied.

Examples:
  prgate rules
  prgate rules --preset minimal
  prgate rules --severity warn --category typing
  prgate rules --json`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

var rulesFlags = map[string]string{"preset": "rules.preset"}

var (
	rulesJSON     bool
	rulesSeverity string
	rulesCategory string
)

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().String("preset", "", "rule preset (standard, strict, minimal)")
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "output as JSON")
	rulesCmd.Flags().StringVar(&rulesSeverity, "severity", "", "only rules at or above this severity")
	rulesCmd.Flags().StringVar(&rulesCategory, "category", "", "only rules of this category")
}

func runRules(cmd *cobra.Command, args []string) error {
	loader := newLoader()
	if err := bindFlags(loader.GetViper(), cmd.Flags(), rulesFlags); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	active, preset, err := loadRules(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	// surface bad custom rules here rather than at check time
	if _, err := rules.Bind(active, cfg.Settings()); err != nil {
		return err
	}

	if rulesSeverity != "" {
		minSeverity, err := rules.ParseSeverity(rulesSeverity)
		if err != nil {
			return err
		}
		active = rules.GetRulesBySeverity(active, minSeverity)
	}
	if rulesCategory != "" {
		active = rules.GetRulesByCategory(active, rules.Category(rulesCategory))
	}

	out := cmd.OutOrStdout()
	if rulesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(active)
	}
	printRules(out, preset, active)
	return nil
}

func printRules(w io.Writer, preset *rules.Preset, active []rules.Rule) {
	fmt.Fprintf(w, "Preset %s: %d rules\n\n", preset.Name, len(active))
	fmt.Fprintf(w, "%-10s %-5s %-13s %s\n", "ID", "SEV", "CATEGORY", "NAME")
	for _, r := range active {
		name := r.Name
		if !rules.IsBuiltin(r.ID) {
			name += " (custom)"
		}
		fmt.Fprintf(w, "%-10s %-5s %-13s %s\n", r.ID, r.Severity, r.Category, name)
	}
}
