package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/settings"
	"curator/internal/transcode"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Extract track samples for listening or review",
	}

	previewCmd.AddCommand(newPreviewAudioCommand(ctx))
	previewCmd.AddCommand(newPreviewSubtitleCommand(ctx))

	return previewCmd
}

func newPreviewAudioCommand(ctx *commandContext) *cobra.Command {
	var start float64
	var destDir string

	cmd := &cobra.Command{
		Use:   "audio <file-id> <track-index>",
		Short: "Extract a 10-second MP3 sample of an audio track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, trackIndex, err := parsePreviewArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				file, err := store.FileByID(cmd.Context(), fileID)
				if err != nil {
					return err
				}
				dest, err := resolvePreviewDir(destDir)
				if err != nil {
					return err
				}
				worker := transcode.NewWorker(cfg, store, settings.NewService(store), logging.NewNop())
				output, err := worker.PreviewAudio(cmd.Context(), file, trackIndex, start, dest)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&start, "start", 0, "Offset into the file, in seconds")
	cmd.Flags().StringVarP(&destDir, "dir", "d", "", "Destination directory (defaults to the working directory)")
	return cmd
}

func newPreviewSubtitleCommand(ctx *commandContext) *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "subtitle <file-id> <track-index>",
		Short: "Extract a subtitle track as SRT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, trackIndex, err := parsePreviewArgs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				file, err := store.FileByID(cmd.Context(), fileID)
				if err != nil {
					return err
				}
				dest, err := resolvePreviewDir(destDir)
				if err != nil {
					return err
				}
				worker := transcode.NewWorker(cfg, store, settings.NewService(store), logging.NewNop())
				output, err := worker.PreviewSubtitle(cmd.Context(), file, trackIndex, dest)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&destDir, "dir", "d", "", "Destination directory (defaults to the working directory)")
	return cmd
}

func parsePreviewArgs(args []string) (int64, int, error) {
	fileID, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	trackIndex, err := strconv.Atoi(args[1])
	if err != nil || trackIndex < 0 {
		return 0, 0, fmt.Errorf("invalid track index %q", args[1])
	}
	return fileID, trackIndex, nil
}

func resolvePreviewDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return config.ExpandPath(dir)
}
