package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change application settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List application settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				svc := settings.NewService(store)
				if err := svc.Seed(cmd.Context()); err != nil {
					return err
				}
				all, err := svc.All(cmd.Context())
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(all))
				for _, setting := range all {
					rows = append(rows, []string{setting.Key, setting.Value, setting.Description})
				}
				table := renderTable([]column{
					{name: "Key"},
					{name: "Value"},
					{name: "Description"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change an application setting",
		Long: "Change a setting. The daemon reads settings from the catalog on " +
			"every use, so changes take effect without a restart.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				svc := settings.NewService(store)
				if err := svc.Set(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
