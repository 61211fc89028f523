// internal/cli/root.go
//
// Command-line surface for brandguard. Running the bare binary launches
// the TUI; the `rules` subcommands drive the catalog from scripts and CI
// without a terminal UI.

package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
	"brandguard/internal/config"
	"brandguard/internal/logging"
	"brandguard/internal/tui"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ProjectDir string
	Verbose    bool
}

// NewRootCommand creates the root command for the brandguard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "brandguard",
		Short: "Workspace setup and rule catalog for compliance analysis",
		Long: `brandguard sets up compliance workspaces against a rule-extraction
backend: a guided wizard creates the workspace, uploads a brand guideline
document, and reviews the extracted rules. The rules subcommands manage
the rule catalog directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return launchTUI(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ProjectDir, "project", "", "project directory (defaults to the working directory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewWorkspacesCommand(opts))

	return cmd
}

func launchTUI(opts *RootOptions) error {
	dir, err := opts.projectDir()
	if err != nil {
		return err
	}
	app, err := tui.NewApp(dir)
	if err != nil {
		return fmt.Errorf("cli: build app: %w", err)
	}
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("cli: run tui: %w", err)
	}
	return nil
}

func (o *RootOptions) projectDir() (string, error) {
	if o.ProjectDir != "" {
		return o.ProjectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cli: working directory: %w", err)
	}
	return cwd, nil
}

// newSynchronizer wires the catalog synchronizer for headless commands.
func newSynchronizer(opts *RootOptions) (*catalog.Synchronizer, *config.Config, error) {
	dir, err := opts.projectDir()
	if err != nil {
		return nil, nil, err
	}
	if err := config.InitBrandguardDir(dir); err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewFileOnly(cfg.LogsDir())
	if err != nil {
		return nil, nil, err
	}
	client, err := api.NewClient(cfg.BaseURL(), cfg.Token())
	if err != nil {
		return nil, nil, err
	}
	sync, err := catalog.New(client,
		catalog.WithLogger(logger),
		catalog.WithPageSize(cfg.PageSize()),
		catalog.WithMaxPages(cfg.MaxPages()),
	)
	if err != nil {
		return nil, nil, err
	}
	return sync, cfg, nil
}
