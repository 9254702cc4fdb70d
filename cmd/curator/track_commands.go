package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/language"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	trackCmd := &cobra.Command{
		Use:   "tracks",
		Short: "Inspect and edit track metadata",
	}

	trackCmd.AddCommand(newTrackListCommand(ctx))
	trackCmd.AddCommand(newTrackSetCommand(ctx))

	return trackCmd
}

func newTrackListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <file-id>",
		Short: "List tracks for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				tracks, err := store.TracksForFile(cmd.Context(), fileID)
				if err != nil {
					return err
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracks recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTrackTable(tracks))
				return nil
			})
		},
	}
}

func newTrackSetCommand(ctx *commandContext) *cobra.Command {
	var title string
	var lang string

	cmd := &cobra.Command{
		Use:   "set <track-id>",
		Short: "Stage a title or language edit for a track",
		Long: "Stage a metadata edit. Edits take effect when the file is processed " +
			"with `curator process`; languages are normalized to ISO 639-2 codes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("title") && !cmd.Flags().Changed("language") {
				return errors.New("nothing to change; pass --title and/or --language")
			}
			if lang != "" {
				normalized := language.ToISO3(lang)
				if normalized == language.Undetermined && lang != language.Undetermined {
					return fmt.Errorf("unrecognized language %q", lang)
				}
				lang = normalized
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if err := store.StageTrackEdit(cmd.Context(), trackID, title, lang); err != nil {
					return err
				}
				track, err := store.TrackByID(cmd.Context(), trackID)
				if err != nil {
					return err
				}
				summary := fmt.Sprintf("Staged edit for %s track %d of file %d", track.Kind, track.Index, track.FileID)
				if lang != "" {
					summary += fmt.Sprintf(" (language %s, %s)", lang, language.DisplayName(lang))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s; run `curator process %d` to apply\n", summary, track.FileID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New track title (empty clears the staged title)")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "New track language (name or code, e.g. english, en, eng)")
	return cmd
}

func renderTrackTable(tracks []catalog.Track) string {
	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		detail := track.Original.Codec
		if track.Kind == catalog.TrackAudio && track.Original.Channels > 0 {
			detail = fmt.Sprintf("%s %dch", detail, track.Original.Channels)
		}
		if track.Kind == catalog.TrackSubtitle && track.Original.Forced {
			detail += " forced"
		}

		title := track.Original.Title
		lang := track.Original.Language
		pending := ""
		if track.Edit.Modified {
			pending = "pending"
			if track.Edit.Title != "" {
				title = track.Edit.Title + " *"
			}
			if track.Edit.Language != "" {
				lang = track.Edit.Language + " *"
			}
		}

		rows = append(rows, []string{
			strconv.FormatInt(track.ID, 10),
			string(track.Kind),
			strconv.Itoa(track.Index),
			title,
			lang,
			detail,
			pending,
		})
	}
	return renderTable([]column{
		{name: "ID", numeric: true},
		{name: "Kind"},
		{name: "#", numeric: true},
		{name: "Title"},
		{name: "Lang"},
		{name: "Codec"},
		{name: "Edit"},
	}, rows)
}
