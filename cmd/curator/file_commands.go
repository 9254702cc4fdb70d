package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect cataloged media files",
	}

	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesShowCommand(ctx))

	return filesCmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var mediaType string
	var search string
	var folderID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				var files []catalog.File
				var err error
				switch {
				case folderID > 0:
					files, err = store.FilesInFolder(cmd.Context(), folderID)
				default:
					filter := catalog.MediaType(strings.ToLower(strings.TrimSpace(mediaType)))
					if filter != "" && filter != catalog.MediaTypeMovie && filter != catalog.MediaTypeTV {
						return fmt.Errorf("unknown media type %q (movie or tv)", mediaType)
					}
					files, err = store.SearchFiles(cmd.Context(), filter, search)
				}
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files found")
					return nil
				}

				rows := make([][]string, 0, len(files))
				for _, file := range files {
					rows = append(rows, []string{
						strconv.FormatInt(file.ID, 10),
						file.Filename,
						string(file.MediaType),
						fileTitle(&file),
						file.Resolution,
						string(file.ScanStatus),
						string(file.ProcessStatus),
					})
				}
				table := renderTable([]column{
					{name: "ID", numeric: true},
					{name: "Filename"},
					{name: "Type"},
					{name: "Title"},
					{name: "Resolution"},
					{name: "Scan"},
					{name: "Process"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mediaType, "type", "t", "", "Filter by media type (movie or tv)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by title or filename substring")
	cmd.Flags().Int64VarP(&folderID, "folder", "f", 0, "List only files in this folder")
	return cmd
}

func newFilesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show file details and tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				file, err := store.FileByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				tracks, err := store.TracksForFile(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "File %d: %s\n", file.ID, file.Path)
				fmt.Fprintf(out, "  Title:      %s\n", fileTitle(file))
				fmt.Fprintf(out, "  Type:       %s\n", file.MediaType)
				fmt.Fprintf(out, "  Video:      %s %s\n", file.VideoCodec, file.Resolution)
				fmt.Fprintf(out, "  Duration:   %s\n", formatDuration(file.Duration))
				fmt.Fprintf(out, "  Size:       %s\n", formatBytes(file.Size))
				fmt.Fprintf(out, "  Scan:       %s\n", file.ScanStatus)
				fmt.Fprintf(out, "  Process:    %s\n", file.ProcessStatus)
				if file.ErrorMessage != "" {
					fmt.Fprintf(out, "  Error:      %s\n", file.ErrorMessage)
				}

				if len(tracks) == 0 {
					fmt.Fprintln(out, "No tracks recorded")
					return nil
				}
				fmt.Fprintln(out, renderTrackTable(tracks))
				return nil
			})
		},
	}
}

func fileTitle(file *catalog.File) string {
	if file.MediaType == catalog.MediaTypeTV && file.SeriesName != "" {
		return fmt.Sprintf("%s S%02dE%02d", file.SeriesName, file.Season, file.Episode)
	}
	return file.Title
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "unknown"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
