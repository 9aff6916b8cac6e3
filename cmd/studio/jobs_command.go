package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"media-studio/internal/studio"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List generation jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchJobs(cmd.Context(), ctx, cmd.OutOrStdout(), os.Stdin, interval)
			}
			jobs, err := ctx.client().ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobsTable(studio.Render(jobs, ctx.resolver())))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling and redraw on every update; Enter refreshes now")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (default $STUDIO_POLL_INTERVAL)")
	cmd.AddCommand(newJobShowCommand(ctx))
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := studio.Render(jobsOf(job), ctx.resolver())
			fmt.Fprintln(cmd.OutOrStdout(), renderJobDetail(job, rows[0]))
			return nil
		},
	}
}

// watchJobs runs one poller session until interrupted. Every applied snapshot
// is redrawn; a line on in triggers an immediate refresh.
func watchJobs(parent context.Context, ctx *commandContext, out io.Writer, in io.Reader, interval time.Duration) error {
	if parent == nil {
		parent = context.Background()
	}
	runCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval <= 0 {
		interval = ctx.config().StudioPollInterval
	}
	poller := studio.NewPoller(ctx.client(), studio.WithInterval(interval), studio.WithLogger(ctx.log()))
	updates, unsubscribe := poller.Subscribe()
	defer unsubscribe()

	if err := poller.Start(runCtx); err != nil {
		return err
	}
	defer poller.Stop()

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if err := poller.Refresh(); err != nil {
				return
			}
		}
	}()

	resolver := ctx.resolver()
	redraw := isTerminal(out)
	for {
		select {
		case <-runCtx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if redraw {
				fmt.Fprint(out, "\033[H\033[2J")
			}
			fmt.Fprintln(out, renderWatchFrame(snap, studio.Render(snap.Jobs, resolver), interval))
		}
	}
}
