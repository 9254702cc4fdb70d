package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				summary, err := store.Summarize(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				running, err := daemonRunning(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Daemon:   %s\n", colorizeState(runningLabel(running), running, colorize))
				fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
				fmt.Fprintf(out, "Folders:  %d\n", summary.Folders)
				fmt.Fprintf(out, "Files:    %d (%d scanned, %d scanning, %d errors)\n",
					summary.Files, summary.FilesScanned, summary.FilesScanning, summary.FilesScanError)

				rows := make([][]string, 0, len(summary.Jobs))
				for _, status := range []catalog.JobStatus{catalog.JobQueued, catalog.JobProcessing, catalog.JobCompleted, catalog.JobFailed} {
					if count := summary.Jobs[status]; count > 0 {
						rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				table := renderTable([]column{{name: "Job Status"}, {name: "Count", numeric: true}}, rows)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

// daemonRunning probes the daemon's flock. TryLock succeeding means no daemon
// holds it; the probe releases the lock immediately.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "curatord.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

func colorizeState(label string, ok bool, colorize bool) string {
	if !colorize {
		return label
	}
	color := ansiYellow
	if ok {
		color = ansiGreen
	}
	return color + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
