package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"darkroom/internal/api"
	"darkroom/internal/store"
)

func newRequestCommand(ctx *commandContext) *cobra.Command {
	var priority int64
	var notifyEmail string
	var wait bool
	var waitTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "request <gallery-id>",
		Short: "Request a downloadable archive for a gallery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.RequestArchive(cmd.Context(), api.RequestArchiveRequest{
				GalleryID:   args[0],
				Priority:    priority,
				NotifyEmail: notifyEmail,
			})
			if err != nil {
				return err
			}

			if resp.Hit {
				return printArchiveResult(cmd, ctx, resp.Archive, "Cache hit")
			}

			out := cmd.OutOrStdout()
			if !ctx.jsonOutput() {
				if resp.Created {
					fmt.Fprintf(out, "Queued job %d for gallery %s (archive %d, v%d)\n",
						resp.Job.ID, args[0], resp.Archive.ID, resp.Archive.Version)
				} else {
					fmt.Fprintf(out, "Joined in-flight job %d for gallery %s\n", resp.Job.ID, args[0])
				}
			}
			if !wait {
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				return nil
			}

			archive, err := pollArchive(cmd, client, resp.Archive.ID, waitTimeout)
			if err != nil {
				return err
			}
			if archive.Status == string(store.StatusFailed) {
				return fmt.Errorf("archive generation failed: %s", archive.ErrorMessage)
			}
			return printArchiveResult(cmd, ctx, *archive, "Archive ready")
		},
	}

	cmd.Flags().Int64VarP(&priority, "priority", "p", 0, "Job priority (higher runs first)")
	cmd.Flags().StringVar(&notifyEmail, "notify", "", "Email address to notify when the archive is ready")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the archive to finish")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 10*time.Minute, "How long --wait polls before giving up")
	return cmd
}

func pollArchive(cmd *cobra.Command, client *api.Client, archiveID int64, timeout time.Duration) (*api.ArchiveView, error) {
	deadline := time.Now().Add(timeout)
	for {
		archive, err := client.GetArchive(cmd.Context(), archiveID)
		if err != nil {
			return nil, err
		}
		switch archive.Status {
		case string(store.StatusCompleted), string(store.StatusFailed):
			return archive, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for archive %d (still %s)", archiveID, archive.Status)
		}
		select {
		case <-cmd.Context().Done():
			return nil, cmd.Context().Err()
		case <-time.After(time.Second):
		}
	}
}

func printArchiveResult(cmd *cobra.Command, ctx *commandContext, archive api.ArchiveView, label string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.ArchiveResponse{Archive: archive})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: gallery %s v%d (%d images, %s)\n",
		label, archive.GalleryID, archive.Version, archive.ImageCount, formatBytes(archive.SizeBytes))
	fmt.Fprintf(out, "Location: %s\n", archive.StorageLocation)
	fmt.Fprintf(out, "Checksum: %s\n", archive.Checksum)
	return nil
}
