package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PageWatcher/internal/app"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run batch cycles on schedule and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(ctx context.Context, a *app.Application) error {
				opts.log.Info("Starting", "schedule", opts.cfg.Scheduler.Spec(), "storage", opts.cfg.Storage.Driver, "http", opts.cfg.HTTP.Addr)
				return a.Run(ctx)
			})
		},
	}
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	var rule string
	cmd := &cobra.Command{
		Use:   "add <owner> <url>",
		Short: "Start tracking a page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				created, err := a.Tracker().Register(ctx, args[0], args[1], rule)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.OutOrStdout(), "Now tracking %s\n", args[1])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Already tracking %s\n", args[1])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&rule, "rule", "r", "", "CSS selector limiting the compared content")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <owner>",
		Short: "List tracked pages with their positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				listing, err := a.Tracker().List(ctx, args[0])
				if err != nil {
					return err
				}
				renderListing(cmd.OutOrStdout(), listing)
				return nil
			})
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <owner> <position|url>",
		Short: "Stop tracking a page by list position or exact URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				removed, err := a.Tracker().Remove(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", removed.URL)
				return nil
			})
		},
	}
}

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <owner>",
		Short: "Check every page of an owner now and report each outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				outcomes, err := a.Checker().CheckOwner(ctx, args[0])
				if err != nil {
					return err
				}
				renderOutcomes(cmd.OutOrStdout(), outcomes)
				return nil
			})
		},
	}
}

func newPauseCommand(opts *rootOptions, pause bool) *cobra.Command {
	use, short := "resume <owner>", "Resume batch monitoring for an owner"
	if pause {
		use, short = "pause <owner>", "Pause batch monitoring for an owner"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				if pause {
					if err := a.Tracker().Pause(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Monitoring paused")
					return nil
				}
				if err := a.Tracker().Resume(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Monitoring resumed")
				return nil
			})
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations and print the schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), func(_ context.Context, a *app.Application) error {
				version, dirty, ok, err := a.SchemaVersion()
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Storage driver %q has no schema\n", opts.cfg.Storage.Driver)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty=%v)\n", version, dirty)
				return nil
			})
		},
	}
}
