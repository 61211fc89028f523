package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"brandguard/internal/api"
	"brandguard/internal/config"
)

// newAPIClient wires a bare API client for commands that bypass the
// catalog synchronizer.
func newAPIClient(opts *RootOptions) (*api.Client, *config.Config, error) {
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
	client, err := api.NewClient(cfg.BaseURL(), cfg.Token())
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// NewWorkspacesCommand creates the workspaces command group.
func NewWorkspacesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Inspect compliance workspaces",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "list",
		Short:        "List workspaces",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient(rootOpts)
			if err != nil {
				return err
			}
			workspaces, err := client.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			for _, ws := range workspaces {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", ws.ID, ws.Name, ws.Description)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "guidelines <workspace-id>",
		Short:        "List guideline documents uploaded to a workspace",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newAPIClient(rootOpts)
			if err != nil {
				return err
			}
			guidelines, err := client.ListGuidelines(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, g := range guidelines {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", g.ID, g.Title)
			}
			return nil
		},
	})

	return cmd
}
