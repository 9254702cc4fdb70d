package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file-id>",
		Short: "Queue a file so staged edits are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fileID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				job, err := store.EnqueueJob(cmd.Context(), fileID)
				if err != nil {
					if errors.Is(err, catalog.ErrActiveJobExists) {
						return fmt.Errorf("file %d already has an active job", fileID)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d for file %d\n", job.ID, fileID)
				return nil
			})
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage processing jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []catalog.JobStatus
			for _, raw := range statusFilters {
				status, ok := catalog.ParseJobStatus(raw)
				if !ok {
					return fmt.Errorf("unknown job status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				jobs, err := store.JobsByStatus(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}

				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						strconv.FormatInt(job.FileID, 10),
						string(job.Status),
						fmt.Sprintf("%.0f%%", job.Progress),
						job.CreatedAt.Local().Format(time.DateTime),
						job.ErrorMessage,
					})
				}
				table := renderTable([]column{
					{name: "ID", numeric: true},
					{name: "File", numeric: true},
					{name: "Status"},
					{name: "Progress", numeric: true},
					{name: "Created"},
					{name: "Error"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				job, err := store.RetryJob(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, catalog.ErrNotFound) {
						return fmt.Errorf("no failed job with id %d", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d requeued for file %d\n", job.ID, job.FileID)
				return nil
			})
		},
	}
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a completed or failed job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				if err := store.DeleteJob(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed job %d\n", id)
				return nil
			})
		},
	}
}
