package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
	"mediaflow/internal/submission"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var name string

	cmd := &cobra.Command{
		Use:   "submit <file>...",
		Short: "Upload media files and queue them for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return errors.New("--name can only be used with a single file")
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				objects, err := ctx.objectStore(cmd.Context(), cfg)
				if err != nil {
					return fmt.Errorf("open object storage: %w", err)
				}
				svc := submission.New(objects, store, ctx.cliLogger(cfg))

				out := cmd.OutOrStdout()
				var failed int
				for _, path := range args {
					job, err := svc.Submit(cmd.Context(), submission.Request{Path: path, Owner: owner, Filename: name})
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						failed++
						continue
					}
					size := "unknown size"
					if info, err := os.Stat(path); err == nil {
						size = humanize.Bytes(uint64(info.Size()))
					}
					fmt.Fprintf(out, "Queued job %s for %s (%s)\n", job.ID, job.OriginalFilename, size)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d submissions failed", failed, len(args))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", submission.DefaultOwner, "Owner recorded on the job")
	cmd.Flags().StringVar(&name, "name", "", "Filename recorded on the job (single file only)")
	return cmd
}
