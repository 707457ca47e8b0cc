package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"darkroom/internal/api"
	"darkroom/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				// Daemon down: answer from the database directly.
				return ctx.withStore(func(st *store.Store) error {
					health, healthErr := st.Health(cmd.Context())
					if healthErr != nil {
						return healthErr
					}
					if ctx.jsonOutput() {
						return writeJSON(cmd, api.StatusResponse{
							Running: false,
							DBPath:  st.Path(),
							Queue:   api.FromHealth(health),
						})
					}
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, "Daemon: not running")
					fmt.Fprintf(out, "Database: %s\n", st.Path())
					printQueueHealth(cmd, api.FromHealth(health))
					return nil
				})
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon: running (pid %d, %d workers)\n", status.PID, status.Workers)
			fmt.Fprintf(out, "Database: %s\n", status.DBPath)
			fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
			printQueueHealth(cmd, status.Queue)
			return nil
		},
	}
}

func printQueueHealth(cmd *cobra.Command, health api.QueueHealth) {
	rows := [][]string{
		{"pending", fmt.Sprintf("%d", health.Pending)},
		{"processing", fmt.Sprintf("%d", health.Processing)},
		{"completed", fmt.Sprintf("%d", health.Completed)},
		{"failed", fmt.Sprintf("%d", health.Failed)},
		{"total", fmt.Sprintf("%d", health.Total)},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Jobs"}, rows, 1))
}
