package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
)

// RulesOptions holds flags shared by the rules subcommands.
type RulesOptions struct {
	*RootOptions
	GuidelineIDs []string
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the compliance rule catalog",
	}
	cmd.PersistentFlags().StringSliceVar(&opts.GuidelineIDs, "guideline", nil,
		"limit to rules extracted from these guideline documents (repeatable)")

	cmd.AddCommand(newRulesListCommand(opts))
	cmd.AddCommand(newRulesDisableCommand(opts))
	cmd.AddCommand(newRulesEnableCommand(opts))
	cmd.AddCommand(newRulesRefineCommand(opts))
	cmd.AddCommand(newRulesCreateCommand(opts))
	cmd.AddCommand(newRulesEditCommand(opts))

	return cmd
}

func (o *RulesOptions) scope() catalog.Scope {
	if len(o.GuidelineIDs) == 0 {
		return catalog.ScopeAll()
	}
	return catalog.ScopeGuidelines(o.GuidelineIDs...)
}

func (o *RulesOptions) fetchView(cmd *cobra.Command) (*catalog.Synchronizer, *catalog.View, error) {
	sync, _, err := newSynchronizer(o.RootOptions)
	if err != nil {
		return nil, nil, err
	}
	view, err := sync.FetchScoped(cmd.Context(), o.scope())
	if err != nil {
		return nil, nil, err
	}
	if view.Truncated {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"warning: view truncated after %d pages; results are a prefix\n", view.PagesScanned)
	}
	return sync, view, nil
}

func newRulesListCommand(opts *RulesOptions) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules in the catalog",
		Example: `  brandguard rules list
  brandguard rules list --guideline 4f9f... --active`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, view, err := opts.fetchView(cmd)
			if err != nil {
				return err
			}
			for _, rule := range view.Rules {
				if activeOnly && !rule.IsActive {
					continue
				}
				printRule(cmd, rule)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "show only active rules")
	return cmd
}

// The single-rule commands below address the rule by id and hold no view,
// so they go straight to the client instead of paying for a catalog scan.

func newRulesDisableCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "disable <rule-id>",
		Short:        "Soft-delete a rule so scoring ignores it",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient(opts.RootOptions)
			if err != nil {
				return err
			}
			if err := client.DeactivateRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rule %s deactivated\n", args[0])
			return nil
		},
	}
}

func newRulesEnableCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "enable <rule-id>",
		Short:        "Restore a soft-deleted rule",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient(opts.RootOptions)
			if err != nil {
				return err
			}
			rule, err := client.ReactivateRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRule(cmd, rule)
			return nil
		},
	}
}

func newRulesRefineCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "refine <rule-id> <instruction>",
		Short:        "Rewrite a rule with a natural-language instruction",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient(opts.RootOptions)
			if err != nil {
				return err
			}
			rule, err := client.RefineRule(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printRule(cmd, rule)
			return nil
		},
	}
}

func newRulesCreateCommand(opts *RulesOptions) *cobra.Command {
	var (
		category string
		severity string
		points   float64
	)
	cmd := &cobra.Command{
		Use:          "create <rule text>",
		Short:        "Author a rule directly, outside any guideline document",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := api.Category(category)
			if !cat.Valid() {
				return fmt.Errorf("cli: unknown category %q", category)
			}
			sev := api.Severity(severity)
			if !sev.Valid() {
				return fmt.Errorf("cli: unknown severity %q", severity)
			}
			sync, view, err := opts.fetchView(cmd)
			if err != nil {
				return err
			}
			rule, err := sync.CreateRule(cmd.Context(), view, strings.Join(args, " "), cat, sev, points)
			if err != nil {
				return err
			}
			printRule(cmd, rule)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", string(api.CategoryBrand), "rule category (irdai|brand|seo)")
	cmd.Flags().StringVar(&severity, "severity", string(api.SeverityMedium), "rule severity (critical|high|medium|low)")
	cmd.Flags().Float64Var(&points, "points", 0, "points deducted when the rule is violated")
	return cmd
}

func newRulesEditCommand(opts *RulesOptions) *cobra.Command {
	var (
		text     string
		category string
		severity string
		points   float64
	)
	cmd := &cobra.Command{
		Use:          "edit <rule-id>",
		Short:        "Update rule fields in place",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch api.RulePatch
			if cmd.Flags().Changed("text") {
				patch.Text = &text
			}
			if cmd.Flags().Changed("category") {
				cat := api.Category(category)
				if !cat.Valid() {
					return fmt.Errorf("cli: unknown category %q", category)
				}
				patch.Category = &cat
			}
			if cmd.Flags().Changed("severity") {
				sev := api.Severity(severity)
				if !sev.Valid() {
					return fmt.Errorf("cli: unknown severity %q", severity)
				}
				patch.Severity = &sev
			}
			if cmd.Flags().Changed("points") {
				patch.PointsDeduction = &points
			}
			if patch.Empty() {
				return fmt.Errorf("cli: nothing to change, pass at least one of --text, --category, --severity, --points")
			}
			sync, view, err := opts.fetchView(cmd)
			if err != nil {
				return err
			}
			rule, err := sync.EditRule(cmd.Context(), view, args[0], patch)
			if err != nil {
				return err
			}
			printRule(cmd, rule)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "replacement rule text")
	cmd.Flags().StringVar(&category, "category", "", "new category (irdai|brand|seo)")
	cmd.Flags().StringVar(&severity, "severity", "", "new severity (critical|high|medium|low)")
	cmd.Flags().Float64Var(&points, "points", 0, "new points deduction")
	return cmd
}

func printRule(cmd *cobra.Command, rule api.Rule) {
	status := "active"
	if !rule.IsActive {
		status = "inactive"
	}
	source := rule.SourceGuidelineID
	if source == "" {
		source = "direct"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s/%s]  %-8s  %s  (source: %s)\n",
		rule.ID, rule.Category, rule.Severity, status, rule.Text, source)
}
