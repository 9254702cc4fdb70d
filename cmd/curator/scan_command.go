package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/scanner"
	"curator/internal/settings"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var folderID int64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan library folders now",
		Long: "Walk the configured folders and synchronize the catalog immediately, " +
			"without waiting for the daemon's periodic scan.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				svc := settings.NewService(store)
				if err := svc.Seed(cmd.Context()); err != nil {
					return err
				}
				scan := scanner.New(cfg, store, svc, logging.NewNop())

				if folderID > 0 {
					folder, err := store.FolderByID(cmd.Context(), folderID)
					if err != nil {
						return err
					}
					if err := scan.ScanFolder(cmd.Context(), folder); err != nil {
						return err
					}
				} else if err := scan.ScanAll(cmd.Context()); err != nil {
					return err
				}

				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scan complete: %d files cataloged (%d scanned, %d errors)\n",
					summary.Files, summary.FilesScanned, summary.FilesScanError)
				return nil
			})
		},
	}

	cmd.Flags().Int64VarP(&folderID, "folder", "f", 0, "Scan only this folder")
	return cmd
}
