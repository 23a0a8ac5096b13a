package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/3-lines-studio/ssrserve"
)

func serveCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		Long: "Run the server. NODE_ENV=production serves the build in CLIENT_DIR with the\n" +
			"compiled SERVER_ENTRY; anything else starts Vite in middleware mode.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}
}

func runServe(cmd *cobra.Command, f *flags) error {
	cfg, err := f.load(cmd)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := ssrserve.New(ctx, cfg, ssrserve.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(); err != nil {
			slog.Warn("Stopping render runtime", "err", err)
		}
	}()

	return app.Run(ctx)
}
