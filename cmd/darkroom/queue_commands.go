package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"darkroom/internal/api"
	"darkroom/internal/services/objstore"
	"darkroom/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the job queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueuePruneCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]store.Status, 0, len(listStatuses))
			for _, value := range listStatuses {
				status, ok := store.ParseStatus(value)
				if !ok {
					return fmt.Errorf("invalid status %q", value)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: api.FromJobs(jobs)})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(jobs))
				for _, job := range api.FromJobs(jobs) {
					rows = append(rows, jobRow(job, colorize))
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Gallery", "Status", "Attempts", "Run at", "Last error"},
					rows,
					0, 3,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				health, err := st.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n", health.DBPath)
				fmt.Fprintf(out, "  Exists:    %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "  Readable:  %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "  Schema:    %s\n", health.SchemaVersion)
				integrity := "failed"
				if health.IntegrityCheck {
					integrity = "ok"
				}
				fmt.Fprintf(out, "  Integrity: %s\n", integrity)
				if len(health.MissingTables) > 0 {
					fmt.Fprintf(out, "  Missing tables: %v\n", health.MissingTables)
				}
				fmt.Fprintf(out, "  Archives:  %d\n", health.TotalArchives)
				fmt.Fprintf(out, "  Jobs:      %d\n", health.TotalJobs)
				if health.Error != "" {
					fmt.Fprintf(out, "  Error:     %s\n", health.Error)
					return errors.New("database health check failed")
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				updated, err := st.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"retried": updated})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed job(s) for retry\n", updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := 0
			for _, flag := range []bool{clearCompleted, clearFailed, clearAll} {
				if flag {
					selected++
				}
			}
			if selected != 1 {
				return errors.New("specify exactly one of --completed, --failed, or --all")
			}
			return ctx.withStore(func(st *store.Store) error {
				var removed int64
				var err error
				var label string
				switch {
				case clearCompleted:
					removed, err = st.ClearCompleted(cmd.Context())
					label = "completed job(s)"
				case clearFailed:
					removed, err = st.ClearFailed(cmd.Context())
					label = "failed job(s) and their archive records"
				default:
					removed, err = st.Clear(cmd.Context())
					label = "row(s)"
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed jobs (archive records are kept)")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed jobs and their archive records")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every job and archive record")
	return cmd
}

func newQueuePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop expired archives and delete their files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			blobs := objstore.NewFSStore(cfg.Library.ArchivesDir)
			return ctx.withStore(func(st *store.Store) error {
				locations, err := st.PruneExpiredArchives(cmd.Context())
				if err != nil {
					return err
				}
				removed := 0
				for _, location := range locations {
					if err := blobs.RemoveArchive(cmd.Context(), location); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: remove %s: %v\n", location, err)
						continue
					}
					removed++
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{
						"pruned":        len(locations),
						"files_removed": removed,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired archive(s), removed %d file(s)\n",
					len(locations), removed)
				return nil
			})
		},
	}
}
