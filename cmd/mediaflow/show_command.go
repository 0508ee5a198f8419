package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaflow/internal/config"
	"mediaflow/internal/jobs"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var transcript bool
	var timed bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's record, run state and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				id := strings.TrimSpace(args[0])
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("load job: %w", err)
				}
				if job == nil {
					return fmt.Errorf("job %s not found", id)
				}
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("load run: %w", err)
				}
				checkpoints, err := store.ListCheckpoints(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("load checkpoints: %w", err)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				printJob(out, job, run, colorize)

				if len(checkpoints) > 0 {
					fmt.Fprintln(out)
					rows := make([][]string, 0, len(checkpoints))
					for _, cp := range checkpoints {
						rows = append(rows, []string{cp.Stage, humanize.Bytes(uint64(len(cp.Payload))), humanize.Time(cp.CreatedAt)})
					}
					fmt.Fprintln(out, renderTable([]column{
						{Header: "Checkpoint"},
						{Header: "Size", Align: alignRight},
						{Header: "Saved", Align: alignRight},
					}, rows))
				}

				if job.Summary != "" {
					printSection(out, "Summary", job.Summary, colorize)
				}
				if transcript && job.Transcript != "" {
					printSection(out, "Transcript", job.Transcript, colorize)
				}
				if timed && job.TimedTranscript != "" {
					printSection(out, "Timed transcript", job.TimedTranscript, colorize)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&transcript, "transcript", false, "Print the full transcript")
	cmd.Flags().BoolVar(&timed, "timed", false, "Print the timestamped transcript")
	return cmd
}

func printJob(out io.Writer, job *jobs.Job, run *jobs.Run, colorize bool) {
	progress := jobs.DeriveProgress(job, run)
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderField("File", job.OriginalFilename))
	fmt.Fprintln(out, renderField("Owner", job.OwnerID))
	fmt.Fprintln(out, renderField("Source", job.SourceKey))
	fmt.Fprintln(out, renderField("Status", string(job.Status)))
	fmt.Fprintln(out, renderStatusLine("Progress", progressKind(progress), string(progress), colorize))
	if run != nil {
		fmt.Fprintln(out, renderField("Cancel requested", yesNo(run.CancelRequested)))
		if run.LastHeartbeat != nil {
			beat := humanize.Time(*run.LastHeartbeat)
			if run.HeartbeatDetail != "" {
				beat += " (" + run.HeartbeatDetail + ")"
			}
			fmt.Fprintln(out, renderField("Last heartbeat", beat))
		}
	}
	if job.TokenCount != nil {
		fmt.Fprintln(out, renderField("Tokens", strconv.Itoa(*job.TokenCount)))
	}
	if job.ThumbnailKey != "" {
		fmt.Fprintln(out, renderField("Thumbnail", job.ThumbnailKey))
	}
	if job.VectorID != "" {
		fmt.Fprintln(out, renderField("Vector", job.VectorID))
	}
	if job.FailureReason != "" {
		fmt.Fprintln(out, renderStatusLine("Failure", statusError, job.FailureReason, colorize))
	}
	fmt.Fprintln(out, renderField("Created", humanize.Time(job.CreatedAt)))
	fmt.Fprintln(out, renderField("Updated", humanize.Time(job.UpdatedAt)))
}

func printSection(out io.Writer, title, body string, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, strings.TrimSpace(body))
}
