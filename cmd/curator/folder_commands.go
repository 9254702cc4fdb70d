package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
)

func newFolderCommand(ctx *commandContext) *cobra.Command {
	folderCmd := &cobra.Command{
		Use:   "folders",
		Short: "Manage library folders",
	}

	folderCmd.AddCommand(newFolderListCommand(ctx))
	folderCmd.AddCommand(newFolderAddCommand(ctx))
	folderCmd.AddCommand(newFolderRemoveCommand(ctx))
	folderCmd.AddCommand(newFolderEnableCommand(ctx, true))
	folderCmd.AddCommand(newFolderEnableCommand(ctx, false))

	return folderCmd
}

func newFolderListCommand(ctx *commandContext) *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				folders, err := store.Folders(cmd.Context(), !includeInactive)
				if err != nil {
					return err
				}
				if len(folders) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No folders configured")
					return nil
				}

				rows := make([][]string, 0, len(folders))
				for _, folder := range folders {
					scanned := "never"
					if folder.LastScanned != nil {
						scanned = folder.LastScanned.Local().Format(time.DateTime)
					}
					rows = append(rows, []string{
						strconv.FormatInt(folder.ID, 10),
						folder.Name,
						folder.Path,
						yesNo(folder.Active),
						scanned,
					})
				}
				table := renderTable([]column{
					{name: "ID", numeric: true},
					{name: "Name"},
					{name: "Path"},
					{name: "Active"},
					{name: "Last Scanned"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&includeInactive, "all", "a", false, "Include inactive folders")
	return cmd
}

func newFolderAddCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a library folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				folder, err := store.AddFolder(cmd.Context(), path, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added folder %d (%s)\n", folder.ID, folder.Path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the directory name)")
	return cmd
}

func newFolderRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a folder and its cataloged files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if err := store.RemoveFolder(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed folder %d\n", id)
				return nil
			})
		},
	}
}

func newFolderEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use, short := "enable <id>", "Resume scanning a folder"
	if !enable {
		use, short = "disable <id>", "Pause scanning a folder without removing its files"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if err := store.SetFolderActive(cmd.Context(), id, enable); err != nil {
					return err
				}
				state := "enabled"
				if !enable {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Folder %d %s\n", id, state)
				return nil
			})
		},
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}
