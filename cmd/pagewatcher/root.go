package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"PageWatcher/internal/app"
	"PageWatcher/internal/config"
	"PageWatcher/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string

	cfg config.Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pagewatcher",
		Short:         "Watch web pages and notify owners when their content changes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (overrides PAGEWATCHER_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newServeCommand(opts),
		newAddCommand(opts),
		newListCommand(opts),
		newRemoveCommand(opts),
		newCheckCommand(opts),
		newPauseCommand(opts, true),
		newPauseCommand(opts, false),
		newMigrateCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}
	if o.configPath != "" {
		if err := os.Setenv("PAGEWATCHER_CONFIG", o.configPath); err != nil {
			return fmt.Errorf("set config path: %w", err)
		}
	}

	o.cfg = config.Load()
	o.log = logging.New(o.cfg.Logging)
	return nil
}

// withApp builds the application, runs fn and closes storage afterwards.
func (o *rootOptions) withApp(ctx context.Context, fn func(context.Context, *app.Application) error) error {
	application, err := app.New(ctx, o.cfg, o.log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			o.log.Warn("Close failed", "error", cerr)
		}
	}()
	return fn(ctx, application)
}
