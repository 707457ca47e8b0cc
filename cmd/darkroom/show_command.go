package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"darkroom/internal/api"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Inspect archives and jobs",
	}

	showCmd.AddCommand(newShowArchiveCommand(ctx))
	showCmd.AddCommand(newShowJobCommand(ctx))
	showCmd.AddCommand(newShowArchivesCommand(ctx))

	return showCmd
}

func newShowArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <id>",
		Short: "Show one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid archive id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			archive, err := client.GetArchive(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ArchiveResponse{Archive: *archive})
			}
			printArchiveDetail(cmd, *archive)
			return nil
		},
	}
}

func newShowJobCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobResponse{Job: *job})
			}
			printJobDetail(cmd, *job)
			return nil
		},
	}
}

func newShowArchivesCommand(ctx *commandContext) *cobra.Command {
	var gallery string

	cmd := &cobra.Command{
		Use:   "archives",
		Short: "List archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			archives, err := client.ListArchives(cmd.Context(), gallery)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.ArchiveListResponse{Archives: archives})
			}
			if len(archives) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archives")
				return nil
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(archives))
			for _, archive := range archives {
				rows = append(rows, archiveRow(archive, colorize))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Gallery", "Version", "Status", "Images", "Size", "Hash"},
				rows,
				0, 4, 5,
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&gallery, "gallery", "g", "", "Only archives for this gallery")
	return cmd
}

func printArchiveDetail(cmd *cobra.Command, archive api.ArchiveView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archive %d: gallery %s v%d\n", archive.ID, archive.GalleryID, archive.Version)
	fmt.Fprintf(out, "  Status:       %s\n", archive.Status)
	fmt.Fprintf(out, "  Content hash: %s\n", archive.ContentHash)
	fmt.Fprintf(out, "  Images:       %d\n", archive.ImageCount)
	if archive.StorageLocation != "" {
		fmt.Fprintf(out, "  Location:     %s\n", archive.StorageLocation)
		fmt.Fprintf(out, "  Size:         %s\n", formatBytes(archive.SizeBytes))
		fmt.Fprintf(out, "  Checksum:     %s\n", archive.Checksum)
	}
	if archive.ExpiresAt != "" {
		fmt.Fprintf(out, "  Expires:      %s\n", archive.ExpiresAt)
	}
	if archive.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:        %s\n", archive.ErrorMessage)
	}
	if archive.NotifyRecipient != "" {
		fmt.Fprintf(out, "  Notify:       %s (sent: %s)\n", archive.NotifyRecipient, yesNo(archive.NotifySent))
	}
	fmt.Fprintf(out, "  Created:      %s\n", archive.CreatedAt)
	if archive.CompletedAt != "" {
		fmt.Fprintf(out, "  Completed:    %s\n", archive.CompletedAt)
	}
}

func printJobDetail(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d: gallery %s (archive %d)\n", job.ID, job.GalleryID, job.ArchiveID)
	fmt.Fprintf(out, "  Status:   %s\n", job.Status)
	fmt.Fprintf(out, "  Priority: %d\n", job.Priority)
	fmt.Fprintf(out, "  Attempts: %d/%d\n", job.Attempts, job.MaxAttempts)
	fmt.Fprintf(out, "  Run at:   %s\n", job.RunAt)
	if job.LeaseHolder != "" {
		fmt.Fprintf(out, "  Lease:    %s\n", job.LeaseHolder)
	}
	if job.LastError != "" {
		fmt.Fprintf(out, "  Error:    %s\n", job.LastError)
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
